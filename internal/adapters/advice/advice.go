// Package advice holds the prompt and answer handling shared by the reply
// advisor adapters.
package advice

import (
	"fmt"
	"strings"

	"github.com/mikey/mail-triage/internal/core"
)

// SystemPrompt is sent as the system message where the provider supports one
const SystemPrompt = "You classify logistics emails. Respond only with YES or NO."

const promptFormat = `You are an assistant for a logistics company. Your task is to classify incoming emails about trucking loads.
Determine if an email requires a direct, urgent response or if it is just an informational update.

- YES: The email asks a question, requires a status update, presents a problem, or is a direct offer that needs acceptance/rejection.
- NO: The email is a confirmation, a receipt, an automated status update (e.g., "appointment updated," "load accepted"), or general marketing.

Analyze the following email and respond with only the word YES or NO.

From: %s
Subject: %s
Body:
%s`

// Prompt formats the advisor prompt. The body must already be truncated.
func Prompt(email *core.Email, body string) string {
	return fmt.Sprintf(promptFormat, email.From, email.Subject, body)
}

// ParseAnswer maps a free-text model answer onto a verdict. "yes" is checked
// before "no"; anything else is unknown.
func ParseAnswer(answer string) core.Verdict {
	a := strings.ToLower(strings.TrimSpace(answer))
	switch {
	case strings.Contains(a, "yes"):
		return core.VerdictTrue
	case strings.Contains(a, "no"):
		return core.VerdictFalse
	default:
		return core.VerdictUnknown
	}
}
