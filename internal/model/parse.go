package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// cidRe matches CID-garbled runs that pdftotext emits for unmapped glyphs,
// e.g. "(cid:36)185(cid:46)00".
var cidRe = regexp.MustCompile(`\(cid:\d+\)`)

// DateFormats are the candidate layouts tried, in order, by ParseDate when
// the caller supplies none.
var DateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"02 Jan 2006",
}

// ParseAmount converts a heterogeneous amount rendering into a float.
// Currency symbols, thousands separators, and CID garbage are stripped;
// accountant-style parenthesized negatives lose their sign (amounts in the
// ledger are non-negative). Anything unparseable degrades to 0.0 — upstream
// extraction is unreliable by nature, so coercion never raises.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(cidRe.ReplaceAllString(s, ""))
	if s == "" {
		return 0
	}

	neg := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	if neg {
		s = s[1 : len(s)-1]
	}

	s = strings.NewReplacer("$", "", ",", "", "USD", "", " ", "").Replace(s)
	s = strings.TrimSuffix(s, "-")
	s = strings.TrimPrefix(s, "-")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if v < 0 {
		v = -v
	}
	return v
}

// ParseDate tries each candidate layout in order and returns the ISO form of
// the first match. The empty string signals no match; the caller decides the
// fallback (usually the statement date, or nothing at all).
func ParseDate(raw string, formats ...string) string {
	raw = strings.TrimSpace(cidRe.ReplaceAllString(raw, ""))
	if raw == "" {
		return ""
	}
	if len(formats) == 0 {
		formats = DateFormats
	}
	for _, layout := range formats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}
