package schedule

import (
	"regexp"
	"strings"
)

var annotationRegex = regexp.MustCompile(
	`(?i)\s*\(\s*(?:лекц\S*|лек\.?|практ\S*|пр\.|лаб\S*|семинар\S*|сем\.|подгр\S*|\d\s*пг\.?|\d\s*подгр\S*)\s*\)`)

// StripAnnotations 去除标题中的 (лекция)/(практика)/(лаб.)/(семинар)/(1 пг.) 等括注
func StripAnnotations(s string) string {
	return strings.TrimSpace(annotationRegex.ReplaceAllString(s, ""))
}

// CollapseSpaces 将不间断空格、换行等统一为单个空格
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\u00a0", " ")), " ")
}
