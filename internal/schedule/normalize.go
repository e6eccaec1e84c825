package schedule

// ── 课程归并 ──────────────────────────────────────────────
//
// 两个纯函数：
//   - NormalizeSubgroups：同一时段内 1、2 子组完全相同的课合并为全组（subGroup=0）
//   - MergeByParity：奇周与偶周完全相同的课合并为每周（Always）
//
// 分组保持首次出现顺序，每个输入元素恰好落入一个分组，不会丢失或报错。
// ─────────────────────────────────────────────────────────────

type subgroupKey struct {
	Day      Weekday
	Pair     int
	Group    int
	Subject  string
	Teacher  string
	Room     string
	Evenness Evenness
	Location string
}

type parityKey struct {
	Day      Weekday
	Subject  string
	Teacher  string
	Room     string
	Pair     int
	SubGroup int
	Group    int
}

// NormalizeSubgroups 合并仅子组不同的重复课程
func NormalizeSubgroups(lessons []Lesson) []Lesson {
	groups := groupBy(lessons, func(l Lesson) subgroupKey {
		return subgroupKey{
			Day:      l.DayOfWeek,
			Pair:     l.PairNumber,
			Group:    l.MenGroup,
			Subject:  l.SubjectName,
			Teacher:  l.TeacherName,
			Room:     l.ClassRoom,
			Evenness: l.Evenness,
			Location: l.AuditoryLocation,
		}
	})

	result := make([]Lesson, 0, len(lessons))
	for _, members := range groups {
		hasFirst, hasSecond := false, false
		for _, m := range members {
			switch m.SubGroup {
			case 1:
				hasFirst = true
			case 2:
				hasSecond = true
			}
		}
		if hasFirst && hasSecond {
			result = append(result, members[0].WithSubGroup(SubGroupWhole))
			continue
		}
		for _, m := range members {
			result = append(result, m.clone())
		}
	}
	return result
}

// MergeByParity 合并仅奇偶不同的重复课程
func MergeByParity(lessons []Lesson) []Lesson {
	groups := groupBy(lessons, func(l Lesson) parityKey {
		return parityKey{
			Day:      l.DayOfWeek,
			Subject:  l.SubjectName,
			Teacher:  l.TeacherName,
			Room:     l.ClassRoom,
			Pair:     l.PairNumber,
			SubGroup: l.SubGroup,
			Group:    l.MenGroup,
		}
	})

	result := make([]Lesson, 0, len(lessons))
	for _, members := range groups {
		hasOdd, hasEven := false, false
		var parities []int
		for _, m := range members {
			switch m.Evenness {
			case Odd:
				hasOdd = true
			case Even:
				hasEven = true
			}
			parities = append(parities, m.ParityList...)
		}
		if hasOdd && hasEven {
			merged := members[0].WithEvenness(Always).WithParities(parities...).WithParities(0, 1)
			result = append(result, merged)
			continue
		}
		for _, m := range members {
			result = append(result, m.clone())
		}
	}
	return result
}

// Normalize 依次执行两轮归并并分配稳定 ID
func Normalize(lessons []Lesson) []Lesson {
	return AssignIDs(MergeByParity(NormalizeSubgroups(lessons)))
}

// groupBy 按 key 分组并保持首次出现顺序
func groupBy[K comparable](lessons []Lesson, keyFn func(Lesson) K) [][]Lesson {
	index := make(map[K]int)
	var groups [][]Lesson
	for _, l := range lessons {
		k := keyFn(l)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], l)
	}
	return groups
}
