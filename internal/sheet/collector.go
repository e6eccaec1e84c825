package sheet

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"notifiit/backend/config"
	"notifiit/backend/internal/schedule"
)

// Collector 抓取表格并解析为课程
type Collector struct {
	source   Source
	ingester *Ingester
}

// NewCollector 创建 Collector 实例
func NewCollector(source Source, ingester *Ingester) *Collector {
	return &Collector{source: source, ingester: ingester}
}

// Collect 表格是单次全量读取，组过滤由调用方完成
func (c *Collector) Collect(ctx context.Context, _ []int) ([]schedule.Lesson, error) {
	raw, err := c.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return c.ingester.Ingest(raw), nil
}

// NewSource 配置了 xlsx_path 时读取本地文件，否则使用 Google Sheets
func NewSource(ctx context.Context, cfg *config.SheetsConfig) (Source, error) {
	if cfg.XLSXPath != "" {
		return NewXLSXSource(cfg.XLSXPath, cfg.XLSXSheet), nil
	}
	return NewGoogleSource(ctx, cfg)
}

// PaletteFromConfig 解析配置中的参考色，未配置的沿用默认值
func PaletteFromConfig(cfg *config.SheetsConfig) (Palette, error) {
	p := DefaultPalette
	if cfg.SecondCampusColor != "" {
		c, err := ParseHexColor(cfg.SecondCampusColor)
		if err != nil {
			return Palette{}, fmt.Errorf("sheets.second_campus_color: %w", err)
		}
		p.SecondCampus = c
	}
	if cfg.OnlineColor != "" {
		c, err := ParseHexColor(cfg.OnlineColor)
		if err != nil {
			return Palette{}, fmt.Errorf("sheets.online_color: %w", err)
		}
		p.Online = c
	}
	return p, nil
}

// NewCollectorFromConfig 按配置组装数据源与解析器
func NewCollectorFromConfig(ctx context.Context, cfg *config.SheetsConfig, logger *zap.Logger) (*Collector, error) {
	palette, err := PaletteFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	source, err := NewSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewCollector(source, NewIngester(palette, logger.Named("sheet"))), nil
}
