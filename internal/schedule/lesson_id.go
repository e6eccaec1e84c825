package schedule

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// LessonIDLength 稳定 ID 的十六进制长度
const LessonIDLength = 16

// StableID 由 (group, subgroup, evenness, day, pair, room, subject) 计算课程 ID。
// 任一字段变化（包括合并为 Always）都会得到新的 ID。
func StableID(l Lesson) string {
	room := l.ClassRoom
	if room == "" {
		room = "0"
	}
	key := fmt.Sprintf("%d_%d_%d_%d_%d_%s_%s",
		l.MenGroup, l.SubGroup, int(l.Evenness), int(l.DayOfWeek), l.PairNumber, room, l.SubjectName)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:LessonIDLength]
}

// AssignIDs 为每节课分配稳定 ID
func AssignIDs(lessons []Lesson) []Lesson {
	result := make([]Lesson, len(lessons))
	for i, l := range lessons {
		result[i] = l.WithID(StableID(l))
	}
	return result
}
