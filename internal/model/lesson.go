package model

import "strings"

// 数据来源
const (
	LessonSourceSheet = "sheet"
	LessonSourceAPI   = "api"
)

// Lesson 规范化后的课程记录，lesson_id 为内容哈希
type Lesson struct {
	LessonID         string   `gorm:"type:varchar(32);primaryKey"                                json:"lesson_id"`
	MenGroup         int      `gorm:"not null;index:idx_lessons_slot,priority:1"                 json:"men_group"`
	SubGroup         int      `gorm:"not null;default:0;index:idx_lessons_slot,priority:2"       json:"sub_group"`
	DayOfWeek        int      `gorm:"not null;index:idx_lessons_slot,priority:3"                 json:"day_of_week"`
	PairNumber       int      `gorm:"not null;index:idx_lessons_slot,priority:4"                 json:"pair_number"`
	Evenness         string   `gorm:"type:varchar(10);not null"                                  json:"evenness"`
	SubjectName      string   `gorm:"type:varchar(255);not null"                                 json:"subject_name"`
	SubjectKey       string   `gorm:"type:varchar(255);not null;index:idx_lessons_slot,priority:5" json:"-"`
	TeacherName      string   `gorm:"type:varchar(100);not null;default:''"                      json:"teacher_name"`
	ClassRoom        string   `gorm:"type:varchar(20);not null;default:''"                       json:"class_room"`
	AuditoryLocation string   `gorm:"type:varchar(100);not null;default:''"                      json:"auditory_location"`
	StartTime        string   `gorm:"type:varchar(5);not null;default:''"                        json:"start_time"`
	EndTime          *string  `gorm:"type:varchar(5)"                                            json:"end_time,omitempty"`
	ParityList       IntArray `json:"parity_list"`
	Source           string   `gorm:"type:varchar(10);not null"                                  json:"source"`
	BaseModel
}

// TableName 指定表名
func (Lesson) TableName() string {
	return "lessons"
}

// SubjectKey 课程名的大小写无关比较键
func SubjectKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SamePayload 判断可更新字段是否一致
func (l *Lesson) SamePayload(o *Lesson) bool {
	return l.SubjectName == o.SubjectName &&
		l.TeacherName == o.TeacherName &&
		l.ClassRoom == o.ClassRoom &&
		l.AuditoryLocation == o.AuditoryLocation &&
		l.StartTime == o.StartTime &&
		stringPtrEqual(l.EndTime, o.EndTime) &&
		l.ParityList.Equal(o.ParityList)
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
