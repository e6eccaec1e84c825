package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"notifiit/backend/internal/dto"
)

const calendarProductID = "-//notifiit//schedule//RU"

// CalendarService 周课表导出为 iCalendar
type CalendarService interface {
	// Week 返回 date 所在周的 .ics 内容与建议文件名
	Week(ctx context.Context, group, subgroup int, date time.Time) ([]byte, string, error)
}

type calendarService struct {
	lessons LessonService
	logger  *zap.Logger
	now     func() time.Time
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(lessons LessonService, logger *zap.Logger) CalendarService {
	return &calendarService{lessons: lessons, logger: logger, now: time.Now}
}

// ═══════════════════════════════════════════════════════════
// Week 生成周日历，每节课一个 VEVENT
// ═══════════════════════════════════════════════════════════
//
// UID = lesson_id + "-" + 日期，保证同一课程在不同周的事件不冲突；
// 开始/结束时间按查询时区落到具体日期。

func (s *calendarService) Week(ctx context.Context, group, subgroup int, date time.Time) ([]byte, string, error) {
	week, err := s.lessons.Week(ctx, group, subgroup, date)
	if err != nil {
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName(calendarName(week))
	cal.SetXWRTimezone(date.Location().String())

	stamp := s.now().UTC()
	for _, day := range week.Days {
		dayDate, err := time.ParseInLocation(dateLayout, day.Date, date.Location())
		if err != nil {
			return nil, "", fmt.Errorf("解析日期 %s 失败: %w", day.Date, err)
		}
		for _, l := range day.Lessons {
			start, err := clockOn(dayDate, l.Begin)
			if err != nil {
				s.logger.Warn("课程缺少开始时间，跳过", zap.String("lesson_id", l.LessonID), zap.String("begin", l.Begin))
				continue
			}
			end, err := clockOn(dayDate, l.End)
			if err != nil || !end.After(start) {
				end = start.Add(defaultLessonLength)
			}

			ev := cal.AddEvent(l.LessonID + "-" + day.Date)
			ev.SetDtStampTime(stamp)
			ev.SetStartAt(start)
			ev.SetEndAt(end)
			ev.SetSummary(l.Subject)
			if loc := joinNonEmpty(", ", l.Room, l.Location); loc != "" {
				ev.SetLocation(loc)
			}
			if l.Teacher != "" {
				ev.SetDescription(l.Teacher)
			}
		}
	}

	filename := fmt.Sprintf("schedule_%d_%s.ics", group, week.WeekStart)
	return []byte(cal.Serialize()), filename, nil
}

func calendarName(week *dto.WeekSchedule) string {
	if week.SubGroup > 0 {
		return fmt.Sprintf("%d / %d пг", week.Group, week.SubGroup)
	}
	return fmt.Sprintf("%d", week.Group)
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
