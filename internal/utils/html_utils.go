package utils

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

var (
	// One alternation so the leftmost opening tag decides which close tag ends
	// the element
	scriptStyleRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>|<style[^>]*>.*?</style>`)
	tagRe         = regexp.MustCompile(`(?is)<[^>]+>`)
	whitespaceRe  = regexp.MustCompile(`[\s\v\x1c-\x1f\p{Z}\x{85}]+`)

	hrefRe    = regexp.MustCompile(`(?i)href=['"]([^'"]+)['"]`)
	bareURLRe = regexp.MustCompile(`(?i)(https?://[^\s<>"\)\]]+)`)
)

// urlTrailer holds the punctuation trimmed from the end of extracted URLs
const urlTrailer = ".,);]"

// StripHTML reduces arbitrary body text to markup-free, single-spaced text.
// Script and style elements are dropped with their content, remaining tags are
// removed, entities are decoded and whitespace runs collapse to one space.
func StripHTML(text string) string {
	if text == "" {
		return ""
	}
	t := scriptStyleRe.ReplaceAllString(text, " ")
	t = tagRe.ReplaceAllString(t, " ")
	t = html.UnescapeString(t)
	t = whitespaceRe.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// FindURLs returns the href values and bare http(s) URLs found in text, in
// discovery order (href values first), with trailing punctuation trimmed and
// duplicates removed.
func FindURLs(text string) []string {
	if text == "" {
		return nil
	}

	var found []string
	for _, m := range hrefRe.FindAllStringSubmatch(text, -1) {
		found = append(found, m[1])
	}
	for _, m := range bareURLRe.FindAllStringSubmatch(text, -1) {
		found = append(found, m[1])
	}

	seen := make(map[string]struct{}, len(found))
	urls := make([]string, 0, len(found))
	for _, u := range found {
		u = strings.TrimRight(u, urlTrailer)
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}

// Hosts returns the lowercased hostname of every URL that parses and carries
// a host. Other URLs are skipped.
func Hosts(urls []string) []string {
	hosts := make([]string, 0, len(urls))
	for _, u := range urls {
		if h, ok := hostname(u); ok {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func hostname(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	h := parsed.Hostname()
	if h == "" {
		return "", false
	}
	return strings.ToLower(h), true
}
