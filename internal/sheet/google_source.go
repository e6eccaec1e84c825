package sheet

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"notifiit/backend/config"
)

const gridFields = "sheets(merges,data(startRow,startColumn,rowData(values(formattedValue,effectiveFormat(backgroundColor)))))"

// ErrSheetEmpty 指定范围内没有数据
var ErrSheetEmpty = errors.New("表格范围内没有数据")

// GoogleSource 通过 Google Sheets API 读取指定范围
type GoogleSource struct {
	svc           *sheets.Service
	spreadsheetID string
	readRange     string
}

// NewGoogleSource 创建 Google Sheets 数据源。
// 配置了服务账号文件时优先使用，否则使用 API Key。
func NewGoogleSource(ctx context.Context, cfg *config.SheetsConfig) (*GoogleSource, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	} else {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("初始化 Sheets 客户端失败: %w", err)
	}
	return &GoogleSource{svc: svc, spreadsheetID: cfg.SpreadsheetID, readRange: cfg.Range}, nil
}

// Fetch 读取值、背景色与合并区域
func (s *GoogleSource) Fetch(ctx context.Context) (*RawSheet, error) {
	resp, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Ranges(s.readRange).
		IncludeGridData(true).
		Fields(gridFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("读取表格 %s!%s 失败: %w", s.spreadsheetID, s.readRange, err)
	}
	return rawFromSpreadsheet(resp)
}

// rawFromSpreadsheet 将 API 响应转为 RawSheet，合并区域换算为相对数据起点的坐标
func rawFromSpreadsheet(sp *sheets.Spreadsheet) (*RawSheet, error) {
	if sp == nil || len(sp.Sheets) == 0 || len(sp.Sheets[0].Data) == 0 {
		return nil, ErrSheetEmpty
	}
	sh := sp.Sheets[0]
	data := sh.Data[0]

	raw := &RawSheet{
		Values: make([][]string, len(data.RowData)),
		Colors: make([][]Color, len(data.RowData)),
	}
	for r, row := range data.RowData {
		if row == nil {
			continue
		}
		raw.Values[r] = make([]string, len(row.Values))
		raw.Colors[r] = make([]Color, len(row.Values))
		for c, cell := range row.Values {
			if cell == nil {
				continue
			}
			raw.Values[r][c] = cell.FormattedValue
			if cell.EffectiveFormat != nil && cell.EffectiveFormat.BackgroundColor != nil {
				bg := cell.EffectiveFormat.BackgroundColor
				raw.Colors[r][c] = Color{Red: bg.Red, Green: bg.Green, Blue: bg.Blue, Set: true}
			}
		}
	}

	rowOffset, colOffset := int(data.StartRow), int(data.StartColumn)
	for _, m := range sh.Merges {
		if m == nil {
			continue
		}
		merge := Merge{
			StartRow: int(m.StartRowIndex) - rowOffset,
			EndRow:   int(m.EndRowIndex) - rowOffset,
			StartCol: int(m.StartColumnIndex) - colOffset,
			EndCol:   int(m.EndColumnIndex) - colOffset,
		}
		// 跨越数据起点的区域裁剪到第 0 行/列，完全在范围之外的丢弃
		merge.StartRow = max(merge.StartRow, 0)
		merge.StartCol = max(merge.StartCol, 0)
		if merge.EndRow <= merge.StartRow || merge.EndCol <= merge.StartCol {
			continue
		}
		raw.Merges = append(raw.Merges, merge)
	}
	return raw, nil
}
