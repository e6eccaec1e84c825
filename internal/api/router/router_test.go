package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"notifiit/backend/config"
	"notifiit/backend/internal/api/handler"
	"notifiit/backend/internal/api/middleware"
	"notifiit/backend/internal/dto"
	"notifiit/backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubLessons struct{}

func (stubLessons) Day(_ context.Context, group, subgroup int, date time.Time) (*dto.DaySchedule, error) {
	return &dto.DaySchedule{Date: date.Format("2006-01-02"), Lessons: []dto.LessonItem{}}, nil
}
func (stubLessons) Week(_ context.Context, group, subgroup int, _ time.Time) (*dto.WeekSchedule, error) {
	return &dto.WeekSchedule{Group: group, SubGroup: subgroup}, nil
}
func (stubLessons) Evenness(date time.Time) *dto.EvennessResponse {
	return &dto.EvennessResponse{Date: date.Format("2006-01-02"), Evenness: "odd"}
}
func (stubLessons) Groups(context.Context) ([]int, error) { return []int{240801}, nil }

type stubCalendar struct{}

func (stubCalendar) Week(context.Context, int, int, time.Time) ([]byte, string, error) {
	return []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), "a.ics", nil
}

type stubExport struct{}

func (stubExport) Week(context.Context, int, int, time.Time) (*bytes.Buffer, string, error) {
	return bytes.NewBufferString("xlsx"), "a.xlsx", nil
}

type denyLimiter struct{}

func (denyLimiter) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	return false, nil
}

func setupEngine(t *testing.T, limiter middleware.RateLimiter) *gin.Engine {
	t.Helper()
	cfg := &config.Config{Server: config.ServerConfig{RateLimit: 10, RateWindow: time.Minute}}
	svc := &service.Service{Lesson: stubLessons{}, Calendar: stubCalendar{}, Export: stubExport{}}
	return Setup(cfg, handler.NewHandler(svc, time.UTC), limiter, zap.NewNop())
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestSetup_Routes(t *testing.T) {
	r := setupEngine(t, nil)

	paths := []string{
		"/health",
		"/api/v1/evenness",
		"/api/v1/groups",
		"/api/v1/groups/240801/lessons/day",
		"/api/v1/groups/240801/lessons/week?subgroup=1",
		"/api/v1/groups/240801/calendar.ics",
		"/api/v1/groups/240801/export.xlsx",
	}
	for _, p := range paths {
		w := get(r, p)
		if w.Code != http.StatusOK {
			t.Errorf("%s 期望 200，实际 %d", p, w.Code)
		}
		if w.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s 缺少 X-Request-ID", p)
		}
	}
}

func TestSetup_RateLimitAppliesToAPIOnly(t *testing.T) {
	r := setupEngine(t, denyLimiter{})

	if w := get(r, "/api/v1/groups"); w.Code != http.StatusTooManyRequests {
		t.Errorf("API 期望 429，实际 %d", w.Code)
	}
	if w := get(r, "/health"); w.Code != http.StatusOK {
		t.Errorf("健康检查不应限流，实际 %d", w.Code)
	}
}
