package sheet

import "context"

// Source 表格数据源：返回单元格值、背景色与合并区域
type Source interface {
	Fetch(ctx context.Context) (*RawSheet, error)
}
