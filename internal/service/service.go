package service

import (
	"fmt"

	"go.uber.org/zap"

	"notifiit/backend/config"
	"notifiit/backend/internal/repository"
	"notifiit/backend/internal/schedule"
)

// Service 查询侧 Service 的聚合入口；采集服务由 cmd/seed 单独组装
type Service struct {
	Lesson   LessonService
	Calendar CalendarService
	Export   ExportService
}

// NewService 创建 Service 聚合
func NewService(
	repo *repository.Repository,
	calendar schedule.SemesterCalendar,
	logger *zap.Logger,
) *Service {
	lessons := NewLessonService(repo, calendar, logger)
	return &Service{
		Lesson:   lessons,
		Calendar: NewCalendarService(lessons, logger),
		Export:   NewExportService(lessons, logger),
	}
}

// CalendarFromConfig 解析学期起点配置
func CalendarFromConfig(cfg *config.SemesterConfig) (schedule.SemesterCalendar, error) {
	cal := schedule.DefaultCalendar
	if cfg.AutumnStart != "" {
		md, err := schedule.ParseMonthDay(cfg.AutumnStart)
		if err != nil {
			return cal, fmt.Errorf("semester.autumn_start: %w", err)
		}
		cal.AutumnStart = md
	}
	if cfg.SpringStart != "" {
		md, err := schedule.ParseMonthDay(cfg.SpringStart)
		if err != nil {
			return cal, fmt.Errorf("semester.spring_start: %w", err)
		}
		cal.SpringStart = md
	}
	return cal, nil
}
