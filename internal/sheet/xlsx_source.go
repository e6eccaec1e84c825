package sheet

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXSource 从导出的 .xlsx 文件读取课表（与 Google Sheets 源契约一致）
type XLSXSource struct {
	path  string
	sheet string
}

// NewXLSXSource 创建 XLSX 数据源；sheet 为空时读取第一个工作表
func NewXLSXSource(path, sheet string) *XLSXSource {
	return &XLSXSource{path: path, sheet: sheet}
}

// Fetch 读取工作表
func (s *XLSXSource) Fetch(_ context.Context) (*RawSheet, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("打开 XLSX 失败: %w", err)
	}
	defer f.Close()
	return readWorkbook(f, s.sheet)
}

func readWorkbook(f *excelize.File, sheet string) (*RawSheet, error) {
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, ErrSheetEmpty
		}
		sheet = list[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("读取工作表 %s 失败: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrSheetEmpty
	}

	raw := &RawSheet{Values: rows, Colors: make([][]Color, len(rows))}

	styles := make(map[int]Color)
	for r, row := range rows {
		raw.Colors[r] = make([]Color, len(row))
		for c := range row {
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			styleID, err := f.GetCellStyle(sheet, axis)
			if err != nil {
				return nil, fmt.Errorf("读取 %s 样式失败: %w", axis, err)
			}
			color, ok := styles[styleID]
			if !ok {
				color = fillColor(f, styleID)
				styles[styleID] = color
			}
			raw.Colors[r][c] = color
		}
	}

	merges, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, fmt.Errorf("读取合并单元格失败: %w", err)
	}
	for _, mc := range merges {
		sc, sr, err := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if err != nil {
			continue
		}
		ec, er, err := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err != nil {
			continue
		}
		raw.Merges = append(raw.Merges, Merge{StartRow: sr - 1, EndRow: er, StartCol: sc - 1, EndCol: ec})
	}
	return raw, nil
}

// fillColor 读取样式的纯色填充
func fillColor(f *excelize.File, styleID int) Color {
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil || style.Fill.Type != "pattern" || len(style.Fill.Color) == 0 {
		return Color{}
	}
	c, err := ParseHexColor(style.Fill.Color[0])
	if err != nil {
		return Color{}
	}
	return c
}
