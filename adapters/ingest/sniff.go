package ingest

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// sniffWindow is the byte-sample size used for encoding and delimiter
// detection, matching the statistical-sniffing contract
const sniffWindow = 100_000

// candidateDelimiters in priority order for ties
var candidateDelimiters = []rune{',', '\t', ';', '|'}

// DetectEncoding inspects a byte-sample window and returns the encoding
// name plus the input decoded to UTF-8
func DetectEncoding(raw []byte) (string, []byte) {
	sample := raw
	if len(sample) > sniffWindow {
		sample = sample[:sniffWindow]
	}

	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		return "utf-8-sig", raw[3:]
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(raw)
		if err == nil {
			return "utf-16le", decoded
		}
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		decoded, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Bytes(raw)
		if err == nil {
			return "utf-16be", decoded
		}
	}

	if utf8.Valid(sample) {
		return "utf-8", raw
	}

	// Non-UTF-8 single-byte input; Latin-1 decoding cannot fail
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "utf-8", raw
	}
	return "latin-1", decoded
}

// DetectDelimiter counts candidate delimiters over the sample window and
// picks the one with the highest consistent per-line count
func DetectDelimiter(decoded []byte) rune {
	sample := decoded
	if len(sample) > sniffWindow {
		sample = sample[:sniffWindow]
	}

	lines := strings.Split(string(sample), "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}

	best := ','
	bestScore := -1
	for _, d := range candidateDelimiters {
		score := delimiterScore(lines, d)
		if score > bestScore {
			best = d
			bestScore = score
		}
	}
	return best
}

// delimiterScore rewards delimiters that appear the same number of times on
// every sampled line; inconsistent counts suggest the character is data,
// not structure
func delimiterScore(lines []string, d rune) int {
	counts := make([]int, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		counts = append(counts, strings.Count(line, string(d)))
	}
	if len(counts) == 0 || counts[0] == 0 {
		return 0
	}

	minCount := counts[0]
	consistent := true
	for _, c := range counts[1:] {
		if c != counts[0] {
			consistent = false
		}
		if c < minCount {
			minCount = c
		}
	}

	score := minCount
	if consistent {
		score = counts[0] * 2
	}
	return score
}
