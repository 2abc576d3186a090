package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var tokenStripRe = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// sanitizeSegment strips non-alphanumeric characters from a filename segment,
// truncates it, and replaces interior spaces with underscores.
func sanitizeSegment(s string, maxLen int) string {
	s = strings.TrimSpace(tokenStripRe.ReplaceAllString(s, ""))
	if len(s) > maxLen {
		s = strings.TrimSpace(s[:maxLen])
	}
	return strings.ReplaceAll(s, " ", "_")
}

// FileToken generates the idempotent destination filename for an accepted
// record: {date}_{provider}_{serviceType}_${amount}.{ext}. The storage
// collaborator performs the actual placement.
func FileToken(serviceDate, provider, serviceType string, amount float64, ext string) string {
	date := serviceDate
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	return fmt.Sprintf("%s_%s_%s_$%.2f.%s",
		date,
		sanitizeSegment(provider, 30),
		sanitizeSegment(serviceType, 20),
		amount,
		strings.TrimPrefix(ext, "."),
	)
}
