package dto

// ── 课表查询 DTO ──

// LessonQuery 课表查询参数；date 缺省为今天，subgroup 为 0 时返回所有子组
type LessonQuery struct {
	Date     string `form:"date"`
	SubGroup int    `form:"subgroup" binding:"omitempty,oneof=0 1 2"`
}

// EvennessQuery 周次奇偶查询参数
type EvennessQuery struct {
	Date string `form:"date"`
}

// LessonItem 单节课
type LessonItem struct {
	LessonID   string `json:"lesson_id"`
	PairNumber int    `json:"pair_number"`
	Subject    string `json:"subject"`
	Teacher    string `json:"teacher,omitempty"`
	Room       string `json:"room,omitempty"`
	Location   string `json:"location,omitempty"`
	Begin      string `json:"begin"`
	End        string `json:"end"` // 缺失时为 begin + 90 分钟
	SubGroup   int    `json:"subgroup"`
	Evenness   string `json:"evenness"`
}

// DaySchedule 某天的课表
type DaySchedule struct {
	Date        string       `json:"date"` // "2025-09-01"
	Weekday     int          `json:"weekday"`
	WeekdayName string       `json:"weekday_name"`
	Evenness    string       `json:"evenness"`
	Lessons     []LessonItem `json:"lessons"`
}

// WeekSchedule 周一开始的一周课表
type WeekSchedule struct {
	Group     int           `json:"group"`
	SubGroup  int           `json:"subgroup"`
	WeekStart string        `json:"week_start"`
	Evenness  string        `json:"evenness"`
	Days      []DaySchedule `json:"days"`
}

// EvennessResponse 周次奇偶
type EvennessResponse struct {
	Date          string `json:"date"`
	Evenness      string `json:"evenness"`
	WeekNumber    int    `json:"week_number"` // 从学期首个周一起算，1 起
	SemesterStart string `json:"semester_start"`
}

// GroupListResponse 已入库的组号
type GroupListResponse struct {
	Groups []int `json:"groups"`
}
