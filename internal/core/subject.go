package core

import (
	"strings"

	"github.com/mikey/mail-triage/internal/rules"
)

// SubjectCategory returns the first configured category whose pattern matches
// the lowercased subject, or rules.Other
func SubjectCategory(subject string, r *rules.Rules) string {
	s := strings.ToLower(subject)
	for _, p := range r.SubjectPatterns {
		if p.Pattern.MatchString(s) {
			return p.Category
		}
	}
	return rules.Other
}

// ExtractIdentifiers returns every non-overlapping match of the identifier
// pattern in the raw subject, left to right. When the pattern has capture
// groups the first group is returned for each match.
func ExtractIdentifiers(subject string, r *rules.Rules) []string {
	ids := []string{}
	if r.IdentifierPattern == nil {
		return ids
	}
	grouped := r.IdentifierPattern.NumSubexp() > 0
	for _, m := range r.IdentifierPattern.FindAllStringSubmatch(subject, -1) {
		if grouped {
			ids = append(ids, m[1])
		} else {
			ids = append(ids, m[0])
		}
	}
	return ids
}
