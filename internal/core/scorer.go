package core

import (
	"regexp"
	"strings"

	"github.com/mikey/mail-triage/internal/rules"
	"github.com/mikey/mail-triage/internal/utils"
)

var senderAddressRe = regexp.MustCompile(`([A-Za-z0-9._%+\-]+)@([A-Za-z0-9.\-]+\.[A-Za-z]{2,})`)

// Evidence is the weighted vendor-match evidence for one email
type Evidence struct {
	Score    float64
	Channels []string
	Matched  bool
}

// ScoreEvidence combines sender domain, sender name, URL host and body phrase
// evidence. Each channel contributes its weight at most once.
func ScoreEvidence(email *Email, r *rules.Rules) Evidence {
	ev := Evidence{Channels: []string{}}
	add := func(channel string, weight float64) {
		ev.Score += weight
		ev.Channels = append(ev.Channels, channel)
	}

	if domain, ok := senderDomain(email.From); ok && hasAnySuffix(domain, r.FromDomains) {
		add(EvidenceFromDomain, r.Weights.FromDomain)
	}
	if containsAny(email.From, r.SenderNameTokens) {
		add(EvidenceSenderName, r.Weights.SenderName)
	}
	if hostMatches(utils.Hosts(utils.FindURLs(email.Body)), r.URLHostTokens) {
		add(EvidenceHost, r.Weights.Host)
	}
	if phraseMatches(strings.ToLower(utils.StripHTML(email.Body)), r.BodyPhrases) {
		add(EvidencePhrase, r.Weights.Phrase)
	}

	ev.Matched = ev.Score >= r.Threshold
	return ev
}

// senderDomain extracts the lowercased domain of the first address in a From
// header
func senderDomain(from string) (string, bool) {
	m := senderAddressRe.FindStringSubmatch(from)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[2]), true
}

func hasAnySuffix(domain string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(domain, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// containsAny is case-sensitive
func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

func hostMatches(hosts, tokens []string) bool {
	for _, h := range hosts {
		for _, tok := range tokens {
			if strings.Contains(h, strings.ToLower(tok)) {
				return true
			}
		}
	}
	return false
}

func phraseMatches(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
