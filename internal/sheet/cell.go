package sheet

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"notifiit/backend/internal/schedule"
)

// ── 单元格文本解析 ────────────────────────────────────────
//
// 顺序（命中即止）：
//   1. 体育课特例
//   2. 规整空白，去掉线上/提高班标记与 "с 10:00 12.09" 之类的起始日期子句（可在任意位置）
//   3. 三位数教室号（可带一个西里尔字母后缀）
//   4. 教师 "Фамилия И.О."，否则末尾单个首字母大写词视为姓
//   5. 剩余文本为课程名，为空则该单元格不产生课程
//   6. 外语课统一名称并清空教室
// ─────────────────────────────────────────────────────────────

const (
	physicalEducation = "Физкультура"
	foreignLanguage   = "Иностранный язык"

	// "начиная с 10:00 12.09" / "с 15.09.2025"
	startingFromClause = `(?:начиная\s+)?с\s+(?:\d{1,2}[:.]\d{2}\s+)?\d{1,2}\.\d{1,2}(?:\.\d{2,4})?`
)

var (
	onlineMarkerRegex   = regexp.MustCompile(`(?i)\(?\s*(?:онлайн|online|дистанционно)\s*\)?`)
	advancedMarkerRegex = regexp.MustCompile(`(?i)\(?\s*(?:продвинут\S*\s+групп\S*|продв\.?\s*гр\.?)\s*\)?`)
	startingFromRegex   = regexp.MustCompile(
		`(?i)\(\s*` + startingFromClause + `\s*\)|(?:^|[\s,]+)` + startingFromClause)
	roomRegex = regexp.MustCompile(
		`(?:^|[^\dA-Za-zА-Яа-яЁё])(\d{3}[А-Яа-яЁё]?)(?:[^\dA-Za-zА-Яа-яЁё]|$)`)
	teacherRegex = regexp.MustCompile(
		`[А-ЯЁ][а-яё]+(?:-[А-ЯЁ][а-яё]+)?[\s\x{00A0}]*[А-ЯЁ]\.[\s\x{00A0}]*[А-ЯЁ]\.?`)
	emptySeparatorsRegex = regexp.MustCompile(`\s*,(?:\s*,)+\s*`)
	emptyParensRegex     = regexp.MustCompile(`\(\s*\)`)
)

// CellContent 单元格解析结果
type CellContent struct {
	Subject string
	Teacher string
	Room    string
}

// ExtractCell 解析单元格文本。无法得到课程名时返回 false（不是错误）。
func ExtractCell(raw string) (CellContent, bool) {
	if strings.Contains(strings.ToLower(raw), strings.ToLower(physicalEducation)) {
		return CellContent{Subject: physicalEducation}, true
	}

	text := schedule.CollapseSpaces(raw)
	text = onlineMarkerRegex.ReplaceAllString(text, " ")
	text = advancedMarkerRegex.ReplaceAllString(text, " ")
	text = startingFromRegex.ReplaceAllString(text, " ")
	text = schedule.StripAnnotations(text)

	var out CellContent

	if loc := roomRegex.FindStringSubmatchIndex(text); loc != nil {
		out.Room = text[loc[2]:loc[3]]
		text = text[:loc[2]] + text[loc[3]:]
	}

	if loc := teacherRegex.FindStringIndex(text); loc != nil {
		out.Teacher = strings.TrimSpace(text[loc[0]:loc[1]])
		text = text[:loc[0]] + text[loc[1]:]
	} else if surname, rest, ok := trailingSurname(text); ok {
		out.Teacher = surname
		text = rest
	}

	out.Subject = cleanSubject(text)
	if out.Subject == "" {
		return CellContent{}, false
	}

	if strings.Contains(strings.ToLower(out.Subject), strings.ToLower(foreignLanguage)) {
		out.Subject = foreignLanguage
		out.Room = ""
	}
	return out, true
}

// trailingSurname 末尾单个首字母大写、不少于 3 个字母且不是 "язык" 的词视为姓。
// 至少保留一个词作为课程名。
func trailingSurname(text string) (string, string, bool) {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(tokens) < 2 {
		return "", text, false
	}
	last := strings.Trim(tokens[len(tokens)-1], ".;:")
	if !isCapitalizedWord(last) || utf8.RuneCountInString(last) < 3 || strings.ToLower(last) == "язык" {
		return "", text, false
	}
	idx := strings.LastIndex(text, last)
	return last, text[:idx] + text[idx+len(last):], true
}

func isCapitalizedWord(s string) bool {
	for i, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
		if i == 0 && !unicode.IsUpper(r) {
			return false
		}
		if i > 0 && !unicode.IsLower(r) {
			return false
		}
	}
	return s != ""
}

func cleanSubject(s string) string {
	s = emptyParensRegex.ReplaceAllString(s, " ")
	s = emptySeparatorsRegex.ReplaceAllString(s, ", ")
	s = schedule.CollapseSpaces(s)
	return strings.Trim(s, " ,;:.-–—/")
}
