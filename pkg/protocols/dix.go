package protocols

import "strings"

// Dix handles the single line output of Dix indicators. The weight is the
// token between a "0 " marker and "kg".
//
// It claims any line with "kg" that no other format owns, so it must stay
// last in the registry.
func Dix() Parser {
	return Parser{
		Name: NameDix,
		CanParse: func(line string) bool {
			return !strings.HasPrefix(line, "Date") &&
				!hasCommandPrefix(line) &&
				strings.Contains(line, "kg")
		},
		ParseWeight: dixParseWeight,
	}
}

func dixParseWeight(line string) (float64, bool) {
	start := strings.Index(line, "0 ")
	end := strings.Index(line, "kg")
	if start == -1 || end == -1 || start >= end {
		return 0, false
	}

	// The value starts right after the '0' of the marker.
	return parseNumber(line[start+1 : end])
}
