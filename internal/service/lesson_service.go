package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"notifiit/backend/internal/dto"
	"notifiit/backend/internal/model"
	"notifiit/backend/internal/repository"
	"notifiit/backend/internal/schedule"
)

// ── 课表查询业务错误 ──

var (
	ErrInvalidGroup    = errors.New("组号必须为 6 位数字")
	ErrInvalidSubgroup = errors.New("子组只能为 0、1 或 2")
	ErrInvalidDate     = errors.New("日期格式应为 YYYY-MM-DD")
)

const (
	dateLayout          = "2006-01-02"
	defaultLessonLength = 90 * time.Minute
)

// LessonService 课表查询接口
type LessonService interface {
	Day(ctx context.Context, group, subgroup int, date time.Time) (*dto.DaySchedule, error)
	Week(ctx context.Context, group, subgroup int, date time.Time) (*dto.WeekSchedule, error)
	Evenness(date time.Time) *dto.EvennessResponse
	Groups(ctx context.Context) ([]int, error)
}

type lessonService struct {
	repo     *repository.Repository
	calendar schedule.SemesterCalendar
	logger   *zap.Logger
}

// NewLessonService 创建 LessonService 实例
func NewLessonService(repo *repository.Repository, calendar schedule.SemesterCalendar, logger *zap.Logger) LessonService {
	return &lessonService{repo: repo, calendar: calendar, logger: logger}
}

// ParseDate 解析 YYYY-MM-DD；空串返回 loc 下的今天
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		now := time.Now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

func validateTarget(group, subgroup int) error {
	if group < 100000 || group > 999999 {
		return ErrInvalidGroup
	}
	if subgroup < 0 || subgroup > 2 {
		return ErrInvalidSubgroup
	}
	return nil
}

// ────────────────────── Day ──────────────────────

func (s *lessonService) Day(ctx context.Context, group, subgroup int, date time.Time) (*dto.DaySchedule, error) {
	if err := validateTarget(group, subgroup); err != nil {
		return nil, err
	}

	lessons, err := s.repo.Lesson.List(ctx, repository.LessonFilter{
		Group:    group,
		SubGroup: subgroup,
		Day:      int(schedule.WeekdayOf(date)),
	})
	if err != nil {
		s.logger.Error("查询课表失败", zap.Int("group", group), zap.Error(err))
		return nil, err
	}

	return s.buildDay(date, lessons), nil
}

// ────────────────────── Week ──────────────────────

func (s *lessonService) Week(ctx context.Context, group, subgroup int, date time.Time) (*dto.WeekSchedule, error) {
	if err := validateTarget(group, subgroup); err != nil {
		return nil, err
	}

	lessons, err := s.repo.Lesson.List(ctx, repository.LessonFilter{Group: group, SubGroup: subgroup})
	if err != nil {
		s.logger.Error("查询课表失败", zap.Int("group", group), zap.Error(err))
		return nil, err
	}

	y, m, d := date.Date()
	monday := time.Date(y, m, d, 0, 0, 0, 0, date.Location()).
		AddDate(0, 0, -(int(schedule.WeekdayOf(date)) - 1))

	week := &dto.WeekSchedule{
		Group:     group,
		SubGroup:  subgroup,
		WeekStart: monday.Format(dateLayout),
		Evenness:  s.calendar.EvennessOf(monday).String(),
		Days:      make([]dto.DaySchedule, 0, 7),
	}
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		weekday := int(schedule.WeekdayOf(day))
		var todays []model.Lesson
		for _, l := range lessons {
			if l.DayOfWeek == weekday {
				todays = append(todays, l)
			}
		}
		week.Days = append(week.Days, *s.buildDay(day, todays))
	}
	return week, nil
}

// buildDay 过滤出当天奇偶适用的课程，lessons 已按节次排序
func (s *lessonService) buildDay(date time.Time, lessons []model.Lesson) *dto.DaySchedule {
	evenness := s.calendar.EvennessOf(date)
	weekday := schedule.WeekdayOf(date)

	day := &dto.DaySchedule{
		Date:        date.Format(dateLayout),
		Weekday:     int(weekday),
		WeekdayName: weekday.Name(),
		Evenness:    evenness.String(),
		Lessons:     []dto.LessonItem{},
	}
	for _, l := range lessons {
		e := schedule.ParseEvenness(l.Evenness)
		if e != schedule.Always && e != evenness {
			continue
		}
		day.Lessons = append(day.Lessons, toLessonItem(&l))
	}
	return day
}

// ────────────────────── Evenness ──────────────────────

func (s *lessonService) Evenness(date time.Time) *dto.EvennessResponse {
	return &dto.EvennessResponse{
		Date:          date.Format(dateLayout),
		Evenness:      s.calendar.EvennessOf(date).String(),
		WeekNumber:    s.calendar.WeekIndex(date) + 1,
		SemesterStart: s.calendar.SemesterStart(date).Format(dateLayout),
	}
}

func (s *lessonService) Groups(ctx context.Context) ([]int, error) {
	groups, err := s.repo.Lesson.ListGroups(ctx)
	if err != nil {
		s.logger.Error("查询组列表失败", zap.Error(err))
		return nil, err
	}
	return groups, nil
}

// ── 辅助函数 ──

func toLessonItem(l *model.Lesson) dto.LessonItem {
	end := ""
	if l.EndTime != nil {
		end = *l.EndTime
	}
	if end == "" {
		end = addDuration(l.StartTime, defaultLessonLength)
	}
	return dto.LessonItem{
		LessonID:   l.LessonID,
		PairNumber: l.PairNumber,
		Subject:    l.SubjectName,
		Teacher:    l.TeacherName,
		Room:       l.ClassRoom,
		Location:   l.AuditoryLocation,
		Begin:      l.StartTime,
		End:        end,
		SubGroup:   l.SubGroup,
		Evenness:   l.Evenness,
	}
}

// addDuration "09:00" + 90m → "10:30"；无法解析时返回空串
func addDuration(clock string, d time.Duration) string {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return ""
	}
	return t.Add(d).Format("15:04")
}

// clockOn 将 HH:MM 落到 date 当天
func clockOn(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("无效的时间 %q: %w", clock, err)
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}
