package ingest

import (
	"strconv"
	"strings"
)

// numericPromotionThreshold is the minimum fraction of non-missing cells
// that must parse as numbers before a string column is promoted to numeric
const numericPromotionThreshold = 0.8

var currencyReplacer = strings.NewReplacer(
	",", "",
	"$", "",
	"€", "",
	"£", "",
	"¥", "",
)

// CleanNumeric strips thousands separators, currency symbols, and a
// trailing percent sign, then parses the remainder. Percent values keep
// their displayed magnitude: "5.5%" cleans to 5.5, never 0.055. The
// cleaning is idempotent.
func CleanNumeric(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	s = currencyReplacer.Replace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)

	// Accounting-style negatives: (123.45)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseBoolToken maps common truthy/falsy export spellings
func parseBoolToken(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "y", "1":
		return true, true
	case "false", "no", "n", "0":
		return false, true
	}
	return false, false
}

// isMissingToken reports whether a raw cell spells a missing value
func isMissingToken(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "na", "n/a", "nan", "null", "none", "-":
		return true
	}
	return false
}

// numericParseRatio returns the fraction of non-missing cells in raw that
// clean to a number, and how many non-missing cells there are
func numericParseRatio(raw []string) (float64, int) {
	parsed, nonMissing := 0, 0
	for _, cell := range raw {
		if isMissingToken(cell) {
			continue
		}
		nonMissing++
		if _, ok := CleanNumeric(cell); ok {
			parsed++
		}
	}
	if nonMissing == 0 {
		return 0, 0
	}
	return float64(parsed) / float64(nonMissing), nonMissing
}
