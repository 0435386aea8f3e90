package protocols

import (
	"regexp"
	"strings"
	"unicode"
)

var ptPattern = regexp.MustCompile(`(?i)([+-]?[\d.]+)\s*kg\s*PT$`)

// PT handles scales in print mode: "<STX>     1.30 kg PT".
func PT() Parser {
	return Parser{
		Name: NamePT,
		CanParse: func(line string) bool {
			return strings.HasSuffix(line, "PT") && strings.Contains(line, "kg")
		},
		ParseWeight: ptParseWeight,
	}
}

func ptParseWeight(line string) (float64, bool) {
	clean := strings.TrimSpace(stripControl(line))

	match := ptPattern.FindStringSubmatch(clean)
	if match == nil {
		return 0, false
	}
	return parseNumber(match[1])
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
