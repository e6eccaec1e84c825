package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"notifiit/backend/internal/dto"
	"notifiit/backend/internal/service"
	"notifiit/backend/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// LessonHandler 课表查询 HTTP 处理器
type LessonHandler struct {
	lessonSvc   service.LessonService
	calendarSvc service.CalendarService
	exportSvc   service.ExportService
	loc         *time.Location
}

// NewLessonHandler 创建 LessonHandler；loc 为解析查询日期的时区
func NewLessonHandler(svc *service.Service, loc *time.Location) *LessonHandler {
	return &LessonHandler{
		lessonSvc:   svc.Lesson,
		calendarSvc: svc.Calendar,
		exportSvc:   svc.Export,
		loc:         loc,
	}
}

// Evenness 查询周次奇偶
// GET /api/v1/evenness?date=2025-09-01
func (h *LessonHandler) Evenness(c *gin.Context) {
	var q dto.EvennessQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败: "+err.Error())
		return
	}
	date, err := service.ParseDate(q.Date, h.loc)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, h.lessonSvc.Evenness(date))
}

// Groups 已入库的组号列表
// GET /api/v1/groups
func (h *LessonHandler) Groups(c *gin.Context) {
	groups, err := h.lessonSvc.Groups(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	if groups == nil {
		groups = []int{}
	}
	response.OK(c, dto.GroupListResponse{Groups: groups})
}

// Day 某天课表
// GET /api/v1/groups/:group/lessons/day?date=&subgroup=
func (h *LessonHandler) Day(c *gin.Context) {
	group, q, date, ok := h.bindLessonQuery(c)
	if !ok {
		return
	}
	day, err := h.lessonSvc.Day(c.Request.Context(), group, q.SubGroup, date)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, day)
}

// Week 周课表
// GET /api/v1/groups/:group/lessons/week?date=&subgroup=
func (h *LessonHandler) Week(c *gin.Context) {
	group, q, date, ok := h.bindLessonQuery(c)
	if !ok {
		return
	}
	week, err := h.lessonSvc.Week(c.Request.Context(), group, q.SubGroup, date)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, week)
}

// Calendar 周课表 iCalendar 导出
// GET /api/v1/groups/:group/calendar.ics?date=&subgroup=
func (h *LessonHandler) Calendar(c *gin.Context) {
	group, q, date, ok := h.bindLessonQuery(c)
	if !ok {
		return
	}
	data, filename, err := h.calendarSvc.Week(c.Request.Context(), group, q.SubGroup, date)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", data)
}

// Export 周课表 Excel 导出
// GET /api/v1/groups/:group/export.xlsx?date=&subgroup=
func (h *LessonHandler) Export(c *gin.Context) {
	group, q, date, ok := h.bindLessonQuery(c)
	if !ok {
		return
	}
	buf, filename, err := h.exportSvc.Week(c.Request.Context(), group, q.SubGroup, date)
	if err != nil {
		h.handleError(c, err)
		return
	}

	// 设置下载响应头
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// bindLessonQuery 解析路径组号与查询参数；失败时已写入响应
func (h *LessonHandler) bindLessonQuery(c *gin.Context) (int, dto.LessonQuery, time.Time, bool) {
	var q dto.LessonQuery

	group, err := strconv.Atoi(c.Param("group"))
	if err != nil {
		h.handleError(c, service.ErrInvalidGroup)
		return 0, q, time.Time{}, false
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "参数校验失败: "+err.Error())
		return 0, q, time.Time{}, false
	}
	date, err := service.ParseDate(q.Date, h.loc)
	if err != nil {
		h.handleError(c, err)
		return 0, q, time.Time{}, false
	}
	return group, q, date, true
}

func (h *LessonHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidGroup):
		response.BadRequest(c, 20001, "组号必须为 6 位数字")
	case errors.Is(err, service.ErrInvalidSubgroup):
		response.BadRequest(c, 20002, "子组只能为 0、1 或 2")
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, 20003, "日期格式应为 YYYY-MM-DD")
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
