package ingest

import (
	"strings"
	"time"
)

// dateNameTokens marks a column as a date candidate by name alone
var dateNameTokens = []string{"date", "time", "day", "dt", "timestamp", "ts", "period"}

// dateLayouts is the prioritized list of formats tried per cell. Order
// matters: ISO first, then US-style, then verbose exports.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"01/02/2006 15:04",
	"1/2/2006",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"20060102",
}

// dateParseThreshold is the fraction of sampled non-missing cells that must
// parse before a column is treated as dates by value shape
const dateParseThreshold = 0.8

// hasDateToken reports whether a normalized column name contains a
// date-like token
func hasDateToken(name string) bool {
	for _, tok := range dateNameTokens {
		if strings.Contains(name, tok) {
			return true
		}
	}
	return false
}

// ParseDate tries the prioritized layout list and returns the first match
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dateParseRatio samples up to 100 non-missing cells and returns the
// fraction that parse as dates
func dateParseRatio(raw []string) float64 {
	parsed, sampled := 0, 0
	for _, cell := range raw {
		if isMissingToken(cell) {
			continue
		}
		sampled++
		if _, ok := ParseDate(cell); ok {
			parsed++
		}
		if sampled >= 100 {
			break
		}
	}
	if sampled == 0 {
		return 0
	}
	return float64(parsed) / float64(sampled)
}

// detectDateColumns returns the names of all date candidates in column
// order. A candidate matches by name token or by value shape; the first
// candidate whose cells actually parse becomes the date column.
func detectDateColumns(names []string, raw [][]string) []string {
	var candidates []string
	for i, name := range names {
		if hasDateToken(name) {
			if dateParseRatio(raw[i]) >= dateParseThreshold {
				candidates = append(candidates, name)
			}
			continue
		}
		if dateParseRatio(raw[i]) >= dateParseThreshold {
			candidates = append(candidates, name)
		}
	}

	// Prefer a candidate with "date" in the name, like analysts do
	for _, c := range candidates {
		if strings.Contains(c, "date") {
			return append([]string{c}, without(candidates, c)...)
		}
	}
	return candidates
}

func without(s []string, drop string) []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		if v != drop {
			out = append(out, v)
		}
	}
	return out
}
