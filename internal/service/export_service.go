package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"notifiit/backend/internal/dto"
	"notifiit/backend/internal/schedule"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

const exportSheetName = "Расписание"

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出 date 所在周的课表为 Excel (.xlsx)
//   - 行：节次（附时间段）；列：周一 ~ 周六，周日有课时追加
//   - 单元格：课程名 / 教室与校区 / 教师，同一格多门课以空行分隔
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// Week 导出周课表为 Excel
	Week(ctx context.Context, group, subgroup int, date time.Time) (*bytes.Buffer, string, error)
}

type exportService struct {
	lessons LessonService
	logger  *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(lessons LessonService, logger *zap.Logger) ExportService {
	return &exportService{lessons: lessons, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// Week 导出周课表为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - A1 标题行：组号、子组、周起始日、周奇偶
//   - 第 2 行表头：Пара | Время | Понедельник ... Суббота [| Воскресенье]
//   - 第 3 行起：每个节次一行
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) Week(ctx context.Context, group, subgroup int, date time.Time) (*bytes.Buffer, string, error) {
	week, err := s.lessons.Week(ctx, group, subgroup, date)
	if err != nil {
		return nil, "", err
	}

	// 1. 收集节次与列
	type cellKey struct {
		weekday int
		pair    int
	}
	cells := make(map[cellKey][]string)
	pairTimes := make(map[int]string)
	hasSunday := false

	for _, day := range week.Days {
		for _, l := range day.Lessons {
			k := cellKey{weekday: day.Weekday, pair: l.PairNumber}
			cells[k] = append(cells[k], lessonCellText(l, subgroup))
			if _, ok := pairTimes[l.PairNumber]; !ok {
				pairTimes[l.PairNumber] = joinNonEmpty("-", l.Begin, l.End)
			}
			if day.Weekday == int(schedule.Sunday) {
				hasSunday = true
			}
		}
	}

	pairs := make([]int, 0, len(pairTimes))
	for p := range pairTimes {
		pairs = append(pairs, p)
	}
	sort.Ints(pairs)

	lastDay := int(schedule.Saturday)
	if hasSunday {
		lastDay = int(schedule.Sunday)
	}

	// 2. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return nil, "", s.fail(err)
	}
	sheet := exportSheetName

	f.SetColWidth(sheet, "A", "A", 8)
	f.SetColWidth(sheet, "B", "B", 14)
	f.SetColWidth(sheet, colName(2), colName(lastDay+1), 28)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	bodyStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})

	// 标题行
	f.SetCellValue(sheet, "A1", exportTitle(week))
	f.MergeCell(sheet, "A1", cell(colName(lastDay+1), 1))
	f.SetCellStyle(sheet, "A1", "A1", headerStyle)

	// 表头
	f.SetCellValue(sheet, cell("A", 2), "Пара")
	f.SetCellValue(sheet, cell("B", 2), "Время")
	for wd := int(schedule.Monday); wd <= lastDay; wd++ {
		f.SetCellValue(sheet, cell(colName(wd+1), 2), schedule.Weekday(wd).Name())
	}
	f.SetCellStyle(sheet, "A2", cell(colName(lastDay+1), 2), headerStyle)

	// 数据行
	row := 3
	for _, p := range pairs {
		f.SetCellValue(sheet, cell("A", row), pairLabel(p))
		f.SetCellValue(sheet, cell("B", row), pairTimes[p])
		for wd := int(schedule.Monday); wd <= lastDay; wd++ {
			if texts, ok := cells[cellKey{weekday: wd, pair: p}]; ok {
				f.SetCellValue(sheet, cell(colName(wd+1), row), strings.Join(texts, "\n\n"))
			}
		}
		row++
	}
	if row > 3 {
		f.SetCellStyle(sheet, "A3", cell(colName(lastDay+1), row-1), bodyStyle)
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, "", s.fail(err)
	}

	filename := fmt.Sprintf("schedule_%d_%s.xlsx", group, week.WeekStart)
	return buf, filename, nil
}

func (s *exportService) fail(err error) error {
	s.logger.Error("写入 Excel 失败", zap.Error(err))
	return ErrExportGenerateFail
}

// ── 辅助函数 ──

func exportTitle(week *dto.WeekSchedule) string {
	title := fmt.Sprintf("Группа %d", week.Group)
	if week.SubGroup > 0 {
		title += fmt.Sprintf(", %d пг", week.SubGroup)
	}
	return fmt.Sprintf("%s: неделя с %s (%s)", title, week.WeekStart, week.Evenness)
}

// lessonCellText 查询全组（subgroup=0）时为子组课程追加标注
func lessonCellText(l dto.LessonItem, subgroup int) string {
	subject := l.Subject
	if subgroup == 0 && l.SubGroup > 0 {
		subject += fmt.Sprintf(" (%d пг)", l.SubGroup)
	}
	lines := []string{subject}
	if place := joinNonEmpty(", ", l.Room, l.Location); place != "" {
		lines = append(lines, place)
	}
	if l.Teacher != "" {
		lines = append(lines, l.Teacher)
	}
	return strings.Join(lines, "\n")
}

func pairLabel(p int) string {
	if p < 1 {
		return "—"
	}
	return fmt.Sprintf("%d", p)
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
