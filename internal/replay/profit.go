package replay

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	totalProfitRe = regexp.MustCompile(`(?i)total profit:\s*\$?(-?[0-9][0-9,]*(?:\.[0-9]+)?)`)
	initialBalRe  = regexp.MustCompile(`(?i)initial balance:\s*\$?(-?[0-9][0-9,]*(?:\.[0-9]+)?)`)
	finalValueRe  = regexp.MustCompile(`(?i)final portfolio value:\s*\$?(-?[0-9][0-9,]*(?:\.[0-9]+)?)`)
)

// CycleTotal extracts the cycle's profit figure (display units) from the
// replayed lines. It prefers an explicit "Total profit" line, falling back
// to final portfolio value minus initial balance. Cycles that lost money or
// report nothing parseable yield (0, false): there is nothing to settle.
func CycleTotal(lines []string) (float64, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		if m := totalProfitRe.FindStringSubmatch(lines[i]); m != nil {
			v, ok := parseAmount(m[1])
			if ok && v > 0 {
				return v, true
			}
			return 0, false
		}
	}

	var initial, final float64
	var haveInitial, haveFinal bool
	for _, line := range lines {
		if m := initialBalRe.FindStringSubmatch(line); m != nil {
			initial, haveInitial = parseAmount(m[1])
		}
		if m := finalValueRe.FindStringSubmatch(line); m != nil {
			final, haveFinal = parseAmount(m[1])
		}
	}
	if haveInitial && haveFinal && final > initial {
		return final - initial, true
	}
	return 0, false
}

func parseAmount(raw string) (float64, bool) {
	raw = strings.ReplaceAll(raw, ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
