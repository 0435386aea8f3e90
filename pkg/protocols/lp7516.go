package protocols

import (
	"regexp"
	"strings"
)

// Command output (C18=3): "ST,GS,+   0.75kg".
var lp7516CommandPattern = regexp.MustCompile(`(\w+),(\w+),([+-])\s*([\d.]+)\s*kg`)

// Continuous / big display output: "<STX>     1.30 kg".
var lp7516ContinuousPattern = regexp.MustCompile(`\s*([+-]?[\d.]+)\s*kg`)

// LP7516 handles the command and continuous output modes of the LP7516 family.
func LP7516() Parser {
	return Parser{
		Name:        NameLP7516,
		CanParse:    lp7516CanParse,
		ParseWeight: lp7516ParseWeight,
	}
}

func lp7516CanParse(line string) bool {
	if hasCommandPrefix(line) {
		return true
	}
	return len(line) > 0 && line[0] == stx && strings.Contains(line, "kg")
}

func lp7516ParseWeight(line string) (float64, bool) {
	if match := lp7516CommandPattern.FindStringSubmatch(line); match != nil {
		if weight, ok := parseNumber(match[4]); ok {
			if match[3] == "-" {
				return -weight, true
			}
			return weight, true
		}
	}

	clean := strings.TrimLeft(line, string([]byte{stx, etx}))
	if match := lp7516ContinuousPattern.FindStringSubmatch(clean); match != nil {
		return parseNumber(match[1])
	}

	return 0, false
}

// Status prefixes: stable, unstable, overload.
func hasCommandPrefix(line string) bool {
	return strings.HasPrefix(line, "ST,") ||
		strings.HasPrefix(line, "US,") ||
		strings.HasPrefix(line, "OL,")
}
