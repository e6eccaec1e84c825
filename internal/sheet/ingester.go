package sheet

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"notifiit/backend/internal/schedule"
)

// ── 表格课程采集 ──────────────────────────────────────────
//
// 逐行扫描展开后的网格，维护 (星期, 时间, 节次) 状态：
//   - 首列可识别为星期名时更新星期，星期变化时清空时间
//   - 第二列（为空时取首列）含时间时更新时间与节次
//   - 没有时间的续行沿用上一行的时间
//
// 奇偶推断（按优先级）：
//   1. 下一行同一时段且内容完全相同 → Always（纵向合并）
//   2. 下一行同一时段但内容不同     → 本行为 Odd
//   3. 上一行同一时段且内容完全相同 → Always
//   4. 上一行同一时段               → 本行为 Even
//   5. 其它                         → Always
// ─────────────────────────────────────────────────────────────

const generalInfoMarker = "Общая информация"

var (
	timeRegex     = regexp.MustCompile(`(\d{1,2})[:.](\d{2})(?:\s*[-–—]\s*(\d{1,2})[:.](\d{2}))?`)
	romanRegex    = regexp.MustCompile(`(?:^|[^A-Za-z])(VII|VI|IV|V|III|II|I)(?:[^A-Za-z]|$)`)
	numeralRegex  = regexp.MustCompile(`(?i)(?:^\s*([1-7])\s*(?:\)|$)|([1-7])\s*-?(?:я\s+)?пара)`)
	onlineRegex   = regexp.MustCompile(`(?i)онлайн|online|дистанционно`)
	romanToNumber = map[string]int{"I": 1, "II": 2, "III": 3, "IV": 4, "V": 5, "VI": 6, "VII": 7}
)

// Ingester 表格课程采集器
type Ingester struct {
	palette Palette
	logger  *zap.Logger
}

// NewIngester 创建 Ingester 实例
func NewIngester(palette Palette, logger *zap.Logger) *Ingester {
	return &Ingester{palette: palette, logger: logger}
}

// rowState 行的解析状态
type rowState struct {
	valid bool
	day   schedule.Weekday
	begin string
	end   string
	pair  int
}

func (s rowState) sameSlot(o rowState) bool {
	return s.valid && o.valid && s.day == o.day && s.begin == o.begin
}

type dedupKey struct {
	Day      schedule.Weekday
	Pair     int
	Group    int
	SubGroup int
	Subject  string
	Evenness schedule.Evenness
}

// Ingest 将原始表格转为课程列表
func (g *Ingester) Ingest(raw *RawSheet) []schedule.Lesson {
	if raw == nil {
		return nil
	}
	values := ExpandMerges(raw.Values, raw.Merges)
	colors := ExpandMerges(raw.Colors, raw.Merges)

	cols := ResolveColumns(values)
	for _, c := range cols {
		if c.Guessed {
			g.logger.Warn("子组表头缺失，按列序推断",
				zap.Int("column", c.Index),
				zap.Int("group", c.Group),
				zap.Int("subgroup", c.SubGroup),
			)
		}
	}

	states := resolveRows(values)

	seen := make(map[dedupKey]bool)
	var lessons []schedule.Lesson
	for r := firstDataRow; r < len(values); r++ {
		st := states[r]
		if !st.valid {
			continue
		}
		for _, col := range cols {
			text := cellAt(values, r, col.Index)
			if strings.TrimSpace(text) == "" {
				continue
			}
			content, ok := ExtractCell(text)
			if !ok {
				continue
			}

			evenness := inferEvenness(values, states, r, col.Index)
			lesson := schedule.Lesson{
				PairNumber:       st.pair,
				SubjectName:      content.Subject,
				TeacherName:      content.Teacher,
				ClassRoom:        content.Room,
				AuditoryLocation: g.location(text, cellAt(colors, r, col.Index), content.Subject),
				Begin:            st.begin,
				End:              st.end,
				DayOfWeek:        st.day,
				Evenness:         evenness,
				SubGroup:         col.SubGroup,
				MenGroup:         col.Group,
				ParityList:       schedule.ParitiesOf(evenness),
				Source:           schedule.SourceSheet,
			}

			key := dedupKey{
				Day:      lesson.DayOfWeek,
				Pair:     lesson.PairNumber,
				Group:    lesson.MenGroup,
				SubGroup: lesson.SubGroup,
				Subject:  lesson.SubjectName,
				Evenness: lesson.Evenness,
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			lessons = append(lessons, lesson)
		}
	}
	return lessons
}

func (g *Ingester) location(text string, color Color, subject string) string {
	switch {
	case subject == physicalEducation:
		return ""
	case onlineRegex.MatchString(text):
		return schedule.LocationOnline
	default:
		return g.palette.Location(color)
	}
}

// resolveRows 顺序扫描，计算每行的 (星期, 时间, 节次)
func resolveRows(values [][]string) []rowState {
	states := make([]rowState, len(values))

	var (
		day     schedule.Weekday
		begin   string
		end     string
		pair    = schedule.PairUnresolved
		ordinal int
	)
	for r := firstDataRow; r < len(values); r++ {
		if rowContains(values[r], generalInfoMarker) {
			continue
		}

		first := strings.TrimSpace(cellAt(values, r, 0))
		if d, ok := schedule.ParseWeekday(first); ok && d != day {
			day = d
			begin, end, pair, ordinal = "", "", schedule.PairUnresolved, 0
		}

		timeCell := strings.TrimSpace(cellAt(values, r, 1))
		if timeCell == "" {
			timeCell = first
		}
		if b, e, ok := parseTimeRange(timeCell); ok && b != begin {
			begin, end = b, e
			ordinal++
			pair = parsePairNumber(timeCell, first)
			if pair == schedule.PairUnresolved {
				pair = ordinal
			}
		}

		states[r] = rowState{
			valid: day != schedule.WeekdayUnknown && begin != "",
			day:   day,
			begin: begin,
			end:   end,
			pair:  pair,
		}
	}
	return states
}

func inferEvenness(values [][]string, states []rowState, r, c int) schedule.Evenness {
	cur := cellAt(values, r, c)
	if r+1 < len(states) && states[r].sameSlot(states[r+1]) {
		if cellAt(values, r+1, c) == cur {
			return schedule.Always
		}
		return schedule.Odd
	}
	if r-1 >= firstDataRow && states[r].sameSlot(states[r-1]) {
		return schedule.Even
	}
	return schedule.Always
}

// parseTimeRange 解析 "9:00", "09.00-10.30" 等，返回 HH:MM
func parseTimeRange(s string) (string, string, bool) {
	m := timeRegex.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	begin, ok := formatClock(m[1], m[2])
	if !ok {
		return "", "", false
	}
	end := ""
	if m[3] != "" {
		if e, ok := formatClock(m[3], m[4]); ok {
			end = e
		}
	}
	return begin, end, true
}

func formatClock(h, m string) (string, bool) {
	hour, _ := strconv.Atoi(h)
	minute, _ := strconv.Atoi(m)
	if hour < 7 || hour > 22 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// parsePairNumber 在时间单元格及首列中查找罗马数字或 "1 пара" 形式的节次
func parsePairNumber(cells ...string) int {
	for _, s := range cells {
		if m := romanRegex.FindStringSubmatch(s); m != nil {
			return romanToNumber[m[1]]
		}
		if m := numeralRegex.FindStringSubmatch(s); m != nil {
			digit := m[1]
			if digit == "" {
				digit = m[2]
			}
			n, _ := strconv.Atoi(digit)
			return n
		}
	}
	return schedule.PairUnresolved
}

func rowContains(row []string, marker string) bool {
	for _, cell := range row {
		if strings.Contains(cell, marker) {
			return true
		}
	}
	return false
}
