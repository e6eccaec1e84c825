package handler

import (
	"time"

	"notifiit/backend/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Lesson *LessonHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, loc *time.Location) *Handler {
	return &Handler{
		Lesson: NewLessonHandler(svc, loc),
	}
}
