package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	stripPattern    = regexp.MustCompile(`[^\w\s-]`)
	separatorPattern = regexp.MustCompile(`[-\s]+`)
)

// NormalizeColumnName converts a raw header to its canonical snake_case
// token. The function is pure and stable under repeated application.
func NormalizeColumnName(name string) string {
	s := stripPattern.ReplaceAllString(name, "")
	s = separatorPattern.ReplaceAllString(s, "_")
	s = strings.ToLower(strings.Trim(s, "_"))
	return s
}

// NormalizeHeaders normalizes every header and disambiguates duplicates
// with an incrementing suffix. The suffix advances past names the source
// already occupies, so the result never collides even when a header
// normalizes to an already-suffixed form. Returns the normalized names
// and the normalized→original mapping; keying by the unique normalized
// name keeps every entry when source headers repeat.
func NormalizeHeaders(headers []string) ([]string, map[string]string) {
	normalized := make([]string, len(headers))
	mapping := make(map[string]string, len(headers))
	seen := make(map[string]int, len(headers))

	for i, h := range headers {
		base := NormalizeColumnName(h)
		if base == "" {
			base = fmt.Sprintf("column_%d", i+1)
		}
		name := base
		for n := seen[base]; seen[name] > 0; {
			n++
			seen[base] = n
			name = fmt.Sprintf("%s_%d", base, n)
		}
		seen[name]++
		normalized[i] = name
		mapping[name] = h
	}
	return normalized, mapping
}

// looksLikeHeaderRepair reports whether the parsed headers look generic
// (blank or "unnamed" export placeholders) while the first data row looks
// like the real column names. Common spreadsheet-export defect.
func looksLikeHeaderRepair(headers []string, firstRow []string) bool {
	hasGeneric := false
	for _, h := range headers {
		low := strings.ToLower(strings.TrimSpace(h))
		if low == "" || strings.HasPrefix(low, "unnamed") {
			hasGeneric = true
			break
		}
	}
	if !hasGeneric || len(firstRow) == 0 {
		return false
	}

	for _, v := range firstRow {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if looksNumericToken(v) {
			return false
		}
	}
	return true
}

func looksNumericToken(s string) bool {
	stripped := strings.NewReplacer(".", "", "-", "", "/", "", ",", "").Replace(s)
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
