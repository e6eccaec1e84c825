package schedule

import (
	"fmt"
	"time"
)

// ── 周次奇偶计算 ──────────────────────────────────────────
//
// 学期起点：9–12 月及 1 月属于秋季学期（起点 9 月 1 日，1 月回溯到上一年），
// 其余月份属于春季学期（起点 2 月 10 日）。起点不是周一时顺延到下一个周一，
// 以该周一为第 0 周；第 0、2、4… 周记为 Odd，第 1、3、5… 周记为 Even。
// ─────────────────────────────────────────────────────────────

// MonthDay 不含年份的日期
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay 解析 "MM-DD"
func ParseMonthDay(s string) (MonthDay, error) {
	t, err := time.Parse("01-02", s)
	if err != nil {
		return MonthDay{}, fmt.Errorf("无效的月日 %q: %w", s, err)
	}
	return MonthDay{Month: t.Month(), Day: t.Day()}, nil
}

// SemesterCalendar 学期起点配置
type SemesterCalendar struct {
	AutumnStart MonthDay
	SpringStart MonthDay
}

// DefaultCalendar 9 月 1 日 / 2 月 10 日
var DefaultCalendar = SemesterCalendar{
	AutumnStart: MonthDay{Month: time.September, Day: 1},
	SpringStart: MonthDay{Month: time.February, Day: 10},
}

// EvennessOf 使用默认学期起点计算日期的周次奇偶
func EvennessOf(date time.Time) Evenness {
	return DefaultCalendar.EvennessOf(date)
}

// EvennessOf 计算日期的周次奇偶，结果只会是 Even 或 Odd
func (c SemesterCalendar) EvennessOf(date time.Time) Evenness {
	if c.WeekIndex(date)%2 == 0 {
		return Odd
	}
	return Even
}

// WeekIndex 返回日期相对学期第一个周一的周序号（0 起，向下取整，可能为负）
func (c SemesterCalendar) WeekIndex(date time.Time) int {
	d := civilDate(date)
	first := c.FirstMonday(d)
	days := int(d.Sub(first).Hours() / 24)
	return floorDiv(days, 7)
}

// SemesterStart 返回日期所属学期的名义起点
func (c SemesterCalendar) SemesterStart(date time.Time) time.Time {
	d := civilDate(date)
	year := d.Year()
	switch {
	case d.Month() >= c.AutumnStart.Month:
		return time.Date(year, c.AutumnStart.Month, c.AutumnStart.Day, 0, 0, 0, 0, time.UTC)
	case d.Month() == time.January:
		return time.Date(year-1, c.AutumnStart.Month, c.AutumnStart.Day, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(year, c.SpringStart.Month, c.SpringStart.Day, 0, 0, 0, 0, time.UTC)
	}
}

// FirstMonday 返回学期起点当天或之后的第一个周一
func (c SemesterCalendar) FirstMonday(date time.Time) time.Time {
	start := c.SemesterStart(date)
	shift := (int(time.Monday) - int(start.Weekday()) + 7) % 7
	return start.AddDate(0, 0, shift)
}

// WeekdayOf 将 time.Weekday (0=Sunday) 转为 ISO 星期
func WeekdayOf(t time.Time) Weekday {
	if t.Weekday() == time.Sunday {
		return Sunday
	}
	return Weekday(t.Weekday())
}

// WeekStart 返回日期所在周的周一
func WeekStart(date time.Time) time.Time {
	d := civilDate(date)
	return d.AddDate(0, 0, -(int(WeekdayOf(d)) - 1))
}

// civilDate 截取日历日期（按原时区的年月日，落在 UTC 零点）
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
