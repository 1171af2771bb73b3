// Package rules loads the static rule set that drives vendor scoring,
// subject classification, company-stamp location and reply inference.
package rules

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// IdentifierKey is the reserved subject_patterns entry holding the
// identifier-extraction pattern
const IdentifierKey = "ID_PATTERN"

var (
	// ErrMissingField is returned when a required rule field is absent
	ErrMissingField = errors.New("missing required rule field")
	// ErrInvalidPattern is returned when a subject pattern does not compile
	ErrInvalidPattern = errors.New("invalid subject pattern")
	// ErrInvalidWeight is returned for negative evidence weights
	ErrInvalidWeight = errors.New("invalid evidence weight")
)

// Weights holds the contribution of each evidence channel
type Weights struct {
	FromDomain float64
	Host       float64
	Phrase     float64
	SenderName float64
}

// SubjectPattern maps a subject category to the expression that selects it
type SubjectPattern struct {
	Category string
	Pattern  *regexp.Regexp
}

// Rules is the immutable rule set. It must not be modified after Load.
type Rules struct {
	FromDomains       []string
	SenderNameTokens  []string
	BodyPhrases       []string
	URLHostTokens     []string
	Weights           Weights
	Threshold         float64
	SubjectPatterns   []SubjectPattern
	IdentifierPattern *regexp.Regexp
	FooterIndicators  []string

	replyTrue  map[string]struct{}
	replyFalse map[string]struct{}
	warnings   []string
}

// RequiresReply reports whether category is configured as action-indicating
func (r *Rules) RequiresReply(category string) bool {
	_, ok := r.replyTrue[category]
	return ok
}

// Informational reports whether category is configured as not needing a reply
func (r *Rules) Informational(category string) bool {
	_, ok := r.replyFalse[category]
	return ok
}

// Warnings returns non-fatal problems found while validating the rule set
func (r *Rules) Warnings() []string {
	return append([]string(nil), r.warnings...)
}

// document mirrors the YAML layout. Pointers distinguish a missing key from
// an empty value.
type document struct {
	Detection *struct {
		FromDomains   *[]string `yaml:"from_domains"`
		SenderNames   *[]string `yaml:"sender_names_contains"`
		BodyPhrases   *[]string `yaml:"body_phrases"`
		URLHostTokens *[]string `yaml:"url_host_contains"`
		Weighting     *struct {
			FromDomain *float64 `yaml:"from_domain_match"`
			Host       *float64 `yaml:"host_contains_match"`
			Phrase     *float64 `yaml:"phrase_match"`
			SenderName *float64 `yaml:"sender_name_match"`
		} `yaml:"evidence_weighting"`
		Threshold *float64 `yaml:"threshold"`
	} `yaml:"vendor_detection"`
	SubjectPatterns yaml.Node `yaml:"subject_patterns"`
	Reply           *struct {
		TrueIf  *[]string `yaml:"requires_reply_true_if"`
		FalseIf *[]string `yaml:"requires_reply_false_if"`
	} `yaml:"reply_heuristics"`
	Stamp *struct {
		FooterIndicators *[]string `yaml:"footer_indicators"`
	} `yaml:"company_stamp"`
}

// LoadFile reads and validates a rule file
func LoadFile(path string) (*Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule file: %w", err)
	}
	defer f.Close()

	r, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Load parses and validates a rule document
func Load(reader io.Reader) (*Rules, error) {
	var doc document
	if err := yaml.NewDecoder(reader).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}
	return build(&doc)
}

func build(doc *document) (*Rules, error) {
	d := doc.Detection
	if d == nil {
		return nil, missing("vendor_detection")
	}
	r := &Rules{}

	lists := []struct {
		key string
		src *[]string
		dst *[]string
	}{
		{"vendor_detection.from_domains", d.FromDomains, &r.FromDomains},
		{"vendor_detection.sender_names_contains", d.SenderNames, &r.SenderNameTokens},
		{"vendor_detection.body_phrases", d.BodyPhrases, &r.BodyPhrases},
		{"vendor_detection.url_host_contains", d.URLHostTokens, &r.URLHostTokens},
	}
	for _, l := range lists {
		if l.src == nil {
			return nil, missing(l.key)
		}
		*l.dst = append([]string(nil), (*l.src)...)
	}

	w := d.Weighting
	if w == nil {
		return nil, missing("vendor_detection.evidence_weighting")
	}
	weights := []struct {
		key string
		src *float64
		dst *float64
	}{
		{"from_domain_match", w.FromDomain, &r.Weights.FromDomain},
		{"host_contains_match", w.Host, &r.Weights.Host},
		{"phrase_match", w.Phrase, &r.Weights.Phrase},
		{"sender_name_match", w.SenderName, &r.Weights.SenderName},
	}
	for _, wt := range weights {
		if wt.src == nil {
			return nil, missing("vendor_detection.evidence_weighting." + wt.key)
		}
		if *wt.src < 0 {
			return nil, fmt.Errorf("%w: %s is %v", ErrInvalidWeight, wt.key, *wt.src)
		}
		*wt.dst = *wt.src
	}

	if d.Threshold == nil {
		return nil, missing("vendor_detection.threshold")
	}
	r.Threshold = *d.Threshold

	if err := r.parseSubjectPatterns(&doc.SubjectPatterns); err != nil {
		return nil, err
	}

	if doc.Reply == nil {
		return nil, missing("reply_heuristics")
	}
	if doc.Reply.TrueIf == nil {
		return nil, missing("reply_heuristics.requires_reply_true_if")
	}
	if doc.Reply.FalseIf == nil {
		return nil, missing("reply_heuristics.requires_reply_false_if")
	}
	r.replyTrue = toSet(*doc.Reply.TrueIf)
	r.replyFalse = toSet(*doc.Reply.FalseIf)

	if doc.Stamp == nil || doc.Stamp.FooterIndicators == nil {
		return nil, missing("company_stamp.footer_indicators")
	}
	r.FooterIndicators = append([]string(nil), (*doc.Stamp.FooterIndicators)...)

	r.validate()
	return r, nil
}

// parseSubjectPatterns walks the mapping node directly so that document
// order becomes match order.
func (r *Rules) parseSubjectPatterns(node *yaml.Node) error {
	if node.Kind == 0 {
		return missing("subject_patterns")
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("subject_patterns: expected a mapping, got %s", kindName(node.Kind))
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("%w: %s (line %d) must be a string", ErrInvalidPattern, key.Value, value.Line)
		}
		re, err := regexp.Compile(value.Value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidPattern, key.Value, err)
		}
		if key.Value == IdentifierKey {
			r.IdentifierPattern = re
			continue
		}
		r.SubjectPatterns = append(r.SubjectPatterns, SubjectPattern{Category: key.Value, Pattern: re})
	}

	if r.IdentifierPattern == nil {
		return missing("subject_patterns." + IdentifierKey)
	}
	return nil
}

// validate records configuration smells that do not change runtime behavior
func (r *Rules) validate() {
	var overlap []string
	for c := range r.replyTrue {
		if _, ok := r.replyFalse[c]; ok {
			overlap = append(overlap, c)
		}
	}
	sort.Strings(overlap)
	for _, c := range overlap {
		r.warnings = append(r.warnings,
			fmt.Sprintf("category %q is listed in both requires_reply_true_if and requires_reply_false_if; true wins", c))
	}

	known := make(map[string]struct{}, len(r.SubjectPatterns)+1)
	known[Other] = struct{}{}
	for _, p := range r.SubjectPatterns {
		known[p.Category] = struct{}{}
	}
	for _, set := range []map[string]struct{}{r.replyTrue, r.replyFalse} {
		var unknown []string
		for c := range set {
			if _, ok := known[c]; !ok {
				unknown = append(unknown, c)
			}
		}
		sort.Strings(unknown)
		for _, c := range unknown {
			r.warnings = append(r.warnings,
				fmt.Sprintf("reply heuristic category %q has no subject pattern", c))
		}
	}
}

// Other is the category returned when no subject pattern matches
const Other = "OTHER"

func missing(key string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, key)
}

func toSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, s := range items {
		m[s] = struct{}{}
	}
	return m
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "unknown"
	}
}
