package secrets

import (
	"fmt"
	"sort"
	"strings"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	"github.com/zricethezav/gitleaks/v8/report"
)

// Placeholder replaces every redacted span.
const Placeholder = "[REDACTED]"

// Result describes one scrub. Matched values are never retained.
type Result struct {
	Text   string
	ByRule map[string]int
}

// Total returns the number of redacted matches.
func (r Result) Total() int {
	n := 0
	for _, c := range r.ByRule {
		n += c
	}
	return n
}

// Scrubber redacts secrets from text.
type Scrubber interface {
	Scrub(text string) Result
}

type scrubber struct {
	rules []compiledRule
	// leaks holds the gitleaks rule pack; nil disables the detector.
	leaks *gitleaksConfig.Config
}

type span struct {
	start, end int
}

// New builds a Scrubber from rules plus the default gitleaks rule pack. A nil
// slice means DefaultRules.
func New(rules []Rule) (Scrubber, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	compiled, err := compile(rules)
	if err != nil {
		return nil, err
	}
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("gitleaks config: %w", err)
	}
	return &scrubber{rules: compiled, leaks: &detector.Config}, nil
}

// MustNew is New that panics on an invalid rule.
func MustNew(rules []Rule) Scrubber {
	s, err := New(rules)
	if err != nil {
		panic(err)
	}
	return s
}

// Scrub redacts every rule match and every gitleaks finding. A finding that
// lies inside a rule match is not counted twice.
func (s *scrubber) Scrub(text string) Result {
	res := Result{Text: text}
	var spans []span
	count := func(id string) {
		if res.ByRule == nil {
			res.ByRule = make(map[string]int)
		}
		res.ByRule[id]++
	}
	for _, rule := range s.rules {
		for _, m := range rule.pattern.FindAllStringIndex(text, -1) {
			count(rule.id)
			spans = append(spans, span{start: m[0], end: m[1]})
		}
	}
	ruleSpans := len(spans)
	for _, f := range s.detect(text) {
		found := false
		for _, sp := range locate(text, f.Secret) {
			if covered(spans[:ruleSpans], sp) {
				continue
			}
			spans = append(spans, sp)
			found = true
		}
		if found {
			count(f.RuleID)
		}
	}
	if len(spans) == 0 {
		return res
	}

	var sb strings.Builder
	sb.Grow(len(text))
	last := 0
	for _, sp := range merge(spans) {
		sb.WriteString(text[last:sp.start])
		sb.WriteString(Placeholder)
		last = sp.end
	}
	sb.WriteString(text[last:])
	res.Text = sb.String()
	return res
}

// detect runs gitleaks over text. A Detector accumulates findings, so each
// call gets a fresh one over the shared rule pack.
func (s *scrubber) detect(text string) []report.Finding {
	if s.leaks == nil || text == "" {
		return nil
	}
	return detect.NewDetector(*s.leaks).DetectString(text)
}

// locate returns the spans of every occurrence of secret in text.
func locate(text, secret string) []span {
	if secret == "" {
		return nil
	}
	var out []span
	for off := 0; off < len(text); {
		i := strings.Index(text[off:], secret)
		if i < 0 {
			break
		}
		start := off + i
		out = append(out, span{start: start, end: start + len(secret)})
		off = start + len(secret)
	}
	return out
}

func covered(spans []span, sp span) bool {
	for _, o := range spans {
		if o.start <= sp.start && sp.end <= o.end {
			return true
		}
	}
	return false
}

// merge sorts spans and collapses overlapping or touching ones.
func merge(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	out := []span{spans[0]}
	for _, sp := range spans[1:] {
		cur := &out[len(out)-1]
		if sp.start <= cur.end {
			if sp.end > cur.end {
				cur.end = sp.end
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}

// Noop returns text unchanged.
type Noop struct{}

func (Noop) Scrub(text string) Result { return Result{Text: text} }

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = Noop{}
)
