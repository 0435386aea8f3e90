package protocols

import "strings"

// Mettler handles the print block of Mettler terminals, where the weight sits
// between the "Gross" and "Tare" labels:
//
//	Date 01/02/2025 Time 10:00 Gross   12.34 kg Tare 0.00 kg
func Mettler() Parser {
	return Parser{
		Name: NameMettler,
		CanParse: func(line string) bool {
			return strings.HasPrefix(line, "Date")
		},
		ParseWeight: mettlerParseWeight,
	}
}

func mettlerParseWeight(line string) (float64, bool) {
	start := strings.Index(line, "Gross")
	end := strings.Index(line, "Tare")
	if start == -1 || end == -1 || start >= end {
		return 0, false
	}

	segment := line[start+len("Gross") : end]
	kg := strings.Index(segment, "kg")
	if kg == -1 {
		return 0, false
	}

	return parseNumber(segment[:kg])
}
