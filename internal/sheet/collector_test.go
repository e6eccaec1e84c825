package sheet

import (
	"context"
	"errors"
	"testing"

	"notifiit/backend/config"
	"notifiit/backend/internal/schedule"
)

type stubSource struct {
	raw *RawSheet
	err error
}

func (s stubSource) Fetch(context.Context) (*RawSheet, error) { return s.raw, s.err }

func TestCollector_Collect(t *testing.T) {
	c := NewCollector(stubSource{raw: testSheet()}, NewIngester(DefaultPalette, nopLogger()))
	lessons, err := c.Collect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Collect 失败: %v", err)
	}
	if len(lessons) != 9 {
		t.Errorf("期望 9 节课, 实际 %d", len(lessons))
	}
}

func TestCollector_FetchError(t *testing.T) {
	boom := errors.New("quota exceeded")
	c := NewCollector(stubSource{err: boom}, NewIngester(DefaultPalette, nopLogger()))
	if _, err := c.Collect(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("期望透传抓取错误, 实际 %v", err)
	}
}

func TestPaletteFromConfig(t *testing.T) {
	p, err := PaletteFromConfig(&config.SheetsConfig{OnlineColor: "#FF0000"})
	if err != nil {
		t.Fatalf("PaletteFromConfig 失败: %v", err)
	}
	if p.SecondCampus != DefaultPalette.SecondCampus {
		t.Error("未配置的颜色应沿用默认值")
	}
	if p.Location(Color{Red: 1, Set: true}) != schedule.LocationOnline {
		t.Error("自定义线上颜色未生效")
	}

	if _, err := PaletteFromConfig(&config.SheetsConfig{SecondCampusColor: "yellow"}); err == nil {
		t.Error("期望无效颜色报错")
	}
}

func TestNewSource_PrefersXLSX(t *testing.T) {
	src, err := NewSource(context.Background(), &config.SheetsConfig{XLSXPath: "schedule.xlsx", SpreadsheetID: "abc"})
	if err != nil {
		t.Fatalf("NewSource 失败: %v", err)
	}
	if _, ok := src.(*XLSXSource); !ok {
		t.Errorf("期望 XLSXSource, 实际 %T", src)
	}
}
