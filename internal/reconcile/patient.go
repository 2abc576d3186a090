package reconcile

import (
	"regexp"
	"strings"
)

var roleTokenRe = regexp.MustCompile(`(?i)\(\s*(self|spouse|son|daughter|dependent|subscriber|child)\s*\)`)

// NormalizePatient maps a raw patient name from a source document onto a
// configured family member. Family order is positional: index 0 is the
// primary holder, index 1 the spouse, the rest dependents. Payer exports
// often carry role tokens instead of names ("JOHN (self)", "(spouse)").
//
// Resolution order: exact case-insensitive match, then containment either
// way, then role token, then the primary holder as a last resort.
func NormalizePatient(raw string, family []string) string {
	if len(family) == 0 {
		return strings.TrimSpace(raw)
	}
	if member, ok := MatchPatient(raw, family); ok {
		return member
	}
	return family[0]
}

// MatchPatient resolves a raw name onto a family member and reports whether
// any real signal matched (a name or a satisfiable role token). false means
// NormalizePatient would hand back the primary-holder fallback, which is
// the case where an external hint should win instead.
func MatchPatient(raw string, family []string) (string, bool) {
	if len(family) == 0 {
		return "", false
	}

	role := ""
	if m := roleTokenRe.FindStringSubmatch(raw); m != nil {
		role = strings.ToLower(m[1])
	}
	name := strings.TrimSpace(roleTokenRe.ReplaceAllString(raw, ""))

	if name != "" {
		lower := strings.ToLower(name)
		for _, member := range family {
			if strings.ToLower(member) == lower {
				return member, true
			}
		}
		for _, member := range family {
			ml := strings.ToLower(member)
			if strings.Contains(ml, lower) || strings.Contains(lower, ml) {
				return member, true
			}
		}
		// First-name match: "Alice J" against "Alice Johnson".
		first := strings.Fields(lower)[0]
		for _, member := range family {
			if strings.EqualFold(strings.Fields(member)[0], first) {
				return member, true
			}
		}
	}

	switch role {
	case "self", "subscriber":
		return family[0], true
	case "spouse":
		if len(family) > 1 {
			return family[1], true
		}
	case "son", "daughter", "dependent", "child":
		if len(family) > 2 {
			return family[2], true
		}
	}
	return "", false
}
