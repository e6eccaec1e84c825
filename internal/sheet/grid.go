package sheet

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"notifiit/backend/internal/schedule"
)

// ── 表格网格 ──────────────────────────────────────────────
//
// 合并单元格在源表中只在左上角保存值，其余位置为空。
// ExpandMerges 将左上角的值复制到整个合并区域；行列不足时以空值补齐。
// ─────────────────────────────────────────────────────────────

// Merge 合并区域，行列均为 0 起、右开区间（与 Google Sheets GridRange 一致）
type Merge struct {
	StartRow int
	EndRow   int
	StartCol int
	EndCol   int
}

// Color 单元格背景色，分量取值 0–1
type Color struct {
	Red   float64
	Green float64
	Blue  float64
	Set   bool
}

// RawSheet 数据源返回的原始表格
type RawSheet struct {
	Values [][]string
	Colors [][]Color
	Merges []Merge
}

// ExpandMerges 展开合并区域，返回新网格，不修改输入
func ExpandMerges[T any](grid [][]T, merges []Merge) [][]T {
	out := make([][]T, len(grid))
	for i, row := range grid {
		out[i] = append([]T(nil), row...)
	}

	for _, m := range merges {
		if m.StartRow < 0 || m.StartCol < 0 || m.EndRow <= m.StartRow || m.EndCol <= m.StartCol {
			continue
		}
		out = growRows(out, m.EndRow)
		for r := m.StartRow; r < m.EndRow; r++ {
			out[r] = growRow(out[r], m.EndCol)
		}
		anchor := out[m.StartRow][m.StartCol]
		for r := m.StartRow; r < m.EndRow; r++ {
			for c := m.StartCol; c < m.EndCol; c++ {
				out[r][c] = anchor
			}
		}
	}
	return out
}

func growRows[T any](grid [][]T, n int) [][]T {
	for len(grid) < n {
		grid = append(grid, nil)
	}
	return grid
}

func growRow[T any](row []T, n int) []T {
	var zero T
	for len(row) < n {
		row = append(row, zero)
	}
	return row
}

// cellAt 越界时返回零值
func cellAt[T any](grid [][]T, r, c int) T {
	var zero T
	if r < 0 || r >= len(grid) || c < 0 || c >= len(grid[r]) {
		return zero
	}
	return grid[r][c]
}

// ── 表头解析 ──

const (
	groupHeaderRow    = 1
	subgroupHeaderRow = 2
	firstDataRow      = 3
)

var groupCodeRegex = regexp.MustCompile(`(?:^|\D)(\d{6})(?:\D|$)`)

// Column 课程列的表头信息
type Column struct {
	Index    int
	Group    int
	SubGroup int
	Guessed  bool // 子组由列序推断而非表头给出
}

// ResolveColumns 解析第 1 行的组号与第 2 行的子组标记
func ResolveColumns(values [][]string) []Column {
	if len(values) <= groupHeaderRow {
		return nil
	}
	var cols []Column
	for c, cell := range values[groupHeaderRow] {
		m := groupCodeRegex.FindStringSubmatch(cell)
		if m == nil {
			continue
		}
		code, _ := strconv.Atoi(m[1])
		sub, guessed := resolveSubgroup(cellAt(values, subgroupHeaderRow, c), c)
		cols = append(cols, Column{Index: c, Group: code, SubGroup: sub, Guessed: guessed})
	}
	return cols
}

func resolveSubgroup(marker string, col int) (int, bool) {
	switch {
	case strings.Contains(marker, "1"):
		return 1, false
	case strings.Contains(marker, "2"):
		return 2, false
	case col%2 == 0:
		return 1, true
	default:
		return 2, true
	}
}

// ── 背景色 → 地点 ──

const colorTolerance = 0.05

// Palette 地点参考色
type Palette struct {
	SecondCampus Color
	Online       Color
}

// DefaultPalette 浅黄色为二号校区，浅蓝色为线上
var DefaultPalette = Palette{
	SecondCampus: Color{Red: 1, Green: 0.949, Blue: 0.8, Set: true},
	Online:       Color{Red: 0.788, Green: 0.855, Blue: 0.973, Set: true},
}

// ParseHexColor 解析 #RRGGBB / RRGGBB / AARRGGBB
func ParseHexColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 8 {
		s = s[2:]
	}
	if len(s) != 6 {
		return Color{}, fmt.Errorf("无效的颜色 %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("无效的颜色 %q: %w", s, err)
	}
	return Color{
		Red:   float64(v>>16&0xff) / 255,
		Green: float64(v>>8&0xff) / 255,
		Blue:  float64(v&0xff) / 255,
		Set:   true,
	}, nil
}

// Location 按背景色判断上课地点，未匹配时为主校区
func (p Palette) Location(c Color) string {
	switch {
	case c.Set && c.near(p.SecondCampus):
		return schedule.LocationSecond
	case c.Set && c.near(p.Online):
		return schedule.LocationOnline
	default:
		return schedule.LocationPrimary
	}
}

func (c Color) near(o Color) bool {
	return math.Abs(c.Red-o.Red) <= colorTolerance &&
		math.Abs(c.Green-o.Green) <= colorTolerance &&
		math.Abs(c.Blue-o.Blue) <= colorTolerance
}
