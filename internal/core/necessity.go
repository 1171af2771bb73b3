package core

import (
	"fmt"

	"github.com/mikey/mail-triage/internal/rules"
)

const noSubjectSignal = "No strong subject signal."

// InferReply derives the reply verdict from a subject category. The
// action-indicating set is consulted first, so a category configured in both
// sets needs a reply.
func InferReply(category string, r *rules.Rules) (Verdict, string) {
	if r.RequiresReply(category) {
		return VerdictTrue, fmt.Sprintf("Subject category '%s' indicates action is needed.", category)
	}
	if r.Informational(category) {
		return VerdictFalse, fmt.Sprintf("Subject category '%s' is informational.", category)
	}
	return VerdictUnknown, noSubjectSignal
}
