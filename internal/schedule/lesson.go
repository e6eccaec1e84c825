package schedule

import (
	"slices"
	"strings"
)

// ── 枚举 ──

// Evenness 周次奇偶
type Evenness int

const (
	Even   Evenness = 0
	Odd    Evenness = 1
	Always Evenness = 2 // 每周
)

// String 返回持久化使用的文本值
func (e Evenness) String() string {
	switch e {
	case Even:
		return "even"
	case Odd:
		return "odd"
	default:
		return "always"
	}
}

// ParseEvenness 解析 even | odd | always，未知值按 always 处理
func ParseEvenness(s string) Evenness {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "even":
		return Even
	case "odd":
		return Odd
	default:
		return Always
	}
}

// Weekday ISO 星期：1=Monday … 7=Sunday，0 表示未知
type Weekday int

const (
	WeekdayUnknown Weekday = 0
	Monday         Weekday = 1
	Tuesday        Weekday = 2
	Wednesday      Weekday = 3
	Thursday       Weekday = 4
	Friday         Weekday = 5
	Saturday       Weekday = 6
	Sunday         Weekday = 7
)

var weekdayNames = map[Weekday]string{
	Monday:    "Понедельник",
	Tuesday:   "Вторник",
	Wednesday: "Среда",
	Thursday:  "Четверг",
	Friday:    "Пятница",
	Saturday:  "Суббота",
	Sunday:    "Воскресенье",
}

// Name 返回星期的俄文名称
func (d Weekday) Name() string { return weekdayNames[d] }

// ParseWeekday 按俄文名称（不区分大小写，允许缩写前缀如 "Пн"/"Понед"）识别星期
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return WeekdayUnknown, false
	}
	for d := Monday; d <= Sunday; d++ {
		name := strings.ToLower(weekdayNames[d])
		if strings.HasPrefix(s, name) || strings.HasPrefix(name, s) && len([]rune(s)) >= 3 {
			return d, true
		}
	}
	short := map[string]Weekday{
		"пн": Monday, "вт": Tuesday, "ср": Wednesday, "чт": Thursday,
		"пт": Friday, "сб": Saturday, "вс": Sunday,
	}
	if d, ok := short[strings.TrimRight(s, ". ")]; ok {
		return d, true
	}
	return WeekdayUnknown, false
}

// ── 子组 / 节次 ──

const (
	SubGroupUnknown = -1 // 采集时未知
	SubGroupWhole   = 0  // 全组
	PairUnresolved  = -1
)

// ── 上课地点 ──

const (
	LocationPrimary = "Главный корпус"
	LocationSecond  = "Второй корпус"
	LocationOnline  = "Онлайн"
)

// Source 课程来源
type Source string

const (
	SourceSheet Source = "sheet"
	SourceAPI   Source = "api"
)

// Lesson 流水线中的课程值对象。
// 各阶段均返回新值，不修改输入切片中的元素。
type Lesson struct {
	PairNumber       int
	SubjectName      string
	TeacherName      string
	ClassRoom        string
	AuditoryLocation string
	Begin            string // HH:MM，空表示未知
	End              string // HH:MM，空表示未给出（下游按 90 分钟处理）
	DayOfWeek        Weekday
	Evenness         Evenness
	SubGroup         int
	MenGroup         int
	ParityList       []int // 0=even, 1=odd
	LessonID         string
	Source           Source
}

// WithSubGroup 返回子组被替换后的副本
func (l Lesson) WithSubGroup(sub int) Lesson {
	c := l.clone()
	c.SubGroup = sub
	return c
}

// WithEvenness 返回奇偶被替换后的副本
func (l Lesson) WithEvenness(e Evenness) Lesson {
	c := l.clone()
	c.Evenness = e
	return c
}

// WithParities 返回合并了给定奇偶记录的副本（去重、升序）
func (l Lesson) WithParities(parities ...int) Lesson {
	c := l.clone()
	for _, p := range parities {
		if !slices.Contains(c.ParityList, p) {
			c.ParityList = append(c.ParityList, p)
		}
	}
	slices.Sort(c.ParityList)
	return c
}

// WithID 返回带稳定 ID 的副本
func (l Lesson) WithID(id string) Lesson {
	c := l.clone()
	c.LessonID = id
	return c
}

func (l Lesson) clone() Lesson {
	c := l
	c.ParityList = slices.Clone(l.ParityList)
	return c
}

// ParitiesOf 返回奇偶对应的初始 parityList
func ParitiesOf(e Evenness) []int {
	switch e {
	case Even:
		return []int{0}
	case Odd:
		return []int{1}
	default:
		return []int{0, 1}
	}
}
