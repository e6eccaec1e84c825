package sheet

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"notifiit/backend/internal/schedule"
)

// testSheet 两个组，第二组缺少子组表头；周一前两节，周二一节
func testSheet() *RawSheet {
	values := [][]string{
		{"Расписание занятий"},
		{"", "", "240801", "", "240802"},
		{"", "", "1 пг", "2 пг", ""},
		{"Понедельник", "I 9:00-10:30", "Математический анализ, Иванов А.Б., 528", "Математический анализ, Иванов А.Б., 528", "Физика, Петров П.П., 301"},
		{"", "", "Математический анализ, Иванов А.Б., 528", "Химия, Сидоров С.С., 410", ""},
		{"", "II 10:40-12:10", "Физкультура", "Физкультура", "Информатика Смирнов 215 (онлайн)"},
		{"Общая информация", "", "Консультация 100"},
		{"Вторник", "I 9:00-10:30", "История, Кузнецов К.К., 101"},
	}
	colors := make([][]Color, len(values))
	for i := range colors {
		colors[i] = make([]Color, 5)
	}
	colors[3][4] = DefaultPalette.SecondCampus

	return &RawSheet{
		Values: values,
		Colors: colors,
		Merges: []Merge{
			{StartRow: 1, EndRow: 2, StartCol: 2, EndCol: 4}, // 组号横向合并
			{StartRow: 3, EndRow: 6, StartCol: 0, EndCol: 1}, // 周一
			{StartRow: 3, EndRow: 5, StartCol: 1, EndCol: 2}, // 第一节
		},
	}
}

func TestIngester_Ingest(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ing := NewIngester(DefaultPalette, zap.New(core))

	lessons := ing.Ingest(testSheet())

	type expect struct {
		group    int
		sub      int
		subject  string
		day      schedule.Weekday
		pair     int
		evenness schedule.Evenness
		location string
	}
	want := []expect{
		{240801, 1, "Математический анализ", schedule.Monday, 1, schedule.Always, schedule.LocationPrimary},
		{240801, 2, "Математический анализ", schedule.Monday, 1, schedule.Odd, schedule.LocationPrimary},
		{240802, 1, "Физика", schedule.Monday, 1, schedule.Odd, schedule.LocationSecond},
		{240801, 1, "Математический анализ", schedule.Monday, 1, schedule.Even, schedule.LocationPrimary},
		{240801, 2, "Химия", schedule.Monday, 1, schedule.Even, schedule.LocationPrimary},
		{240801, 1, "Физкультура", schedule.Monday, 2, schedule.Always, ""},
		{240801, 2, "Физкультура", schedule.Monday, 2, schedule.Always, ""},
		{240802, 1, "Информатика", schedule.Monday, 2, schedule.Always, schedule.LocationOnline},
		{240801, 1, "История", schedule.Tuesday, 1, schedule.Always, schedule.LocationPrimary},
	}

	if len(lessons) != len(want) {
		t.Fatalf("期望 %d 节课, 实际 %d: %+v", len(want), len(lessons), lessons)
	}
	for i, w := range want {
		l := lessons[i]
		got := expect{l.MenGroup, l.SubGroup, l.SubjectName, l.DayOfWeek, l.PairNumber, l.Evenness, l.AuditoryLocation}
		if got != w {
			t.Errorf("第 %d 节课\n期望 %+v\n实际 %+v", i, w, got)
		}
	}

	first := lessons[0]
	if first.Begin != "09:00" || first.End != "10:30" {
		t.Errorf("时间期望 09:00-10:30, 实际 %s-%s", first.Begin, first.End)
	}
	if first.TeacherName != "Иванов А.Б." || first.ClassRoom != "528" {
		t.Errorf("教师/教室解析错误: %+v", first)
	}
	if first.Source != schedule.SourceSheet {
		t.Errorf("Source 期望 sheet, 实际 %s", first.Source)
	}

	// 240802 缺少子组表头，记录一条推断警告
	if n := logs.FilterMessage("子组表头缺失，按列序推断").Len(); n != 1 {
		t.Errorf("期望 1 条子组推断警告, 实际 %d", n)
	}
}

// 单元格与时间纵向合并两行：首行与下一行内容相同记为 Always，
// 续行只看上一行同一时段，记为 Even
func TestIngester_MergedContinuationRow(t *testing.T) {
	raw := &RawSheet{
		Values: [][]string{
			{},
			{"", "", "240801"},
			{"", "", "1"},
			{"Понедельник", "I 9:00-10:30", "Физика, Петров П.П., 301"},
			{"", "", ""},
		},
		Merges: []Merge{
			{StartRow: 3, EndRow: 5, StartCol: 0, EndCol: 1},
			{StartRow: 3, EndRow: 5, StartCol: 1, EndCol: 2},
			{StartRow: 3, EndRow: 5, StartCol: 2, EndCol: 3},
		},
	}

	lessons := NewIngester(DefaultPalette, zap.NewNop()).Ingest(raw)

	if len(lessons) != 2 {
		t.Fatalf("期望 2 节课, 实际 %d: %+v", len(lessons), lessons)
	}
	want := []schedule.Evenness{schedule.Always, schedule.Even}
	for i, l := range lessons {
		if l.SubjectName != "Физика" || l.PairNumber != 1 || l.Evenness != want[i] {
			t.Errorf("第 %d 节课期望 Физика pair=1 %v, 实际 %s pair=%d %v",
				i, want[i], l.SubjectName, l.PairNumber, l.Evenness)
		}
	}
}

func TestIngester_SkipsRowsBeforeDayAndTime(t *testing.T) {
	raw := &RawSheet{Values: [][]string{
		{},
		{"", "", "240801"},
		{"", "", "1"},
		{"", "", "Лекция без дня 101"},
		{"Среда", "", "Без времени 102"},
		{"", "9:00", "Алгебра 103"},
	}}

	lessons := NewIngester(DefaultPalette, zap.NewNop()).Ingest(raw)

	if len(lessons) != 1 {
		t.Fatalf("期望 1 节课, 实际 %d: %+v", len(lessons), lessons)
	}
	if lessons[0].SubjectName != "Алгебра" || lessons[0].DayOfWeek != schedule.Wednesday {
		t.Errorf("期望周三 Алгебра, 实际 %+v", lessons[0])
	}
	// 无罗马数字时按当天时段顺序编号
	if lessons[0].PairNumber != 1 {
		t.Errorf("期望节次 1, 实际 %d", lessons[0].PairNumber)
	}
}

func TestIngester_DeduplicatesWithinRun(t *testing.T) {
	raw := &RawSheet{Values: [][]string{
		{},
		{"", "", "240801", "240801"},
		{"", "", "1", "1"},
		{"Пятница", "III 13:00", "Философия 201", "Философия 305"},
	}}

	lessons := NewIngester(DefaultPalette, zap.NewNop()).Ingest(raw)

	if len(lessons) != 1 {
		t.Fatalf("相同去重键只保留首个, 实际 %d", len(lessons))
	}
	if lessons[0].ClassRoom != "201" || lessons[0].PairNumber != 3 {
		t.Errorf("应保留首个出现的课程, 实际 %+v", lessons[0])
	}
}

func TestIngester_NilSheet(t *testing.T) {
	if got := NewIngester(DefaultPalette, zap.NewNop()).Ingest(nil); got != nil {
		t.Errorf("期望 nil, 实际 %+v", got)
	}
}

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		in         string
		begin, end string
		ok         bool
	}{
		{"9:00-10:30", "09:00", "10:30", true},
		{"I 08.30 – 10.00", "08:30", "10:00", true},
		{"13:00", "13:00", "", true},
		{"02.09", "", "", false},
		{"пара", "", "", false},
	}
	for _, tt := range tests {
		b, e, ok := parseTimeRange(tt.in)
		if b != tt.begin || e != tt.end || ok != tt.ok {
			t.Errorf("parseTimeRange(%q) = (%q, %q, %v), 期望 (%q, %q, %v)", tt.in, b, e, ok, tt.begin, tt.end, tt.ok)
		}
	}
}

func TestParsePairNumber(t *testing.T) {
	tests := map[string]int{
		"I 9:00":        1,
		"IV 14:00":      4,
		"VII":           7,
		"3 пара 13:00":  3,
		"2)":            2,
		"9:00-10:30":    schedule.PairUnresolved,
		"Понедельник":   schedule.PairUnresolved,
	}
	for in, want := range tests {
		if got := parsePairNumber(in); got != want {
			t.Errorf("parsePairNumber(%q) = %d, 期望 %d", in, got, want)
		}
	}
}
