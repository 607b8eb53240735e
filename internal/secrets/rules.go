package secrets

import (
	"fmt"
	"regexp"
)

// Rule is one detection pattern.
type Rule struct {
	ID      string
	Pattern string
}

type compiledRule struct {
	id      string
	pattern *regexp.Regexp
}

// DefaultRules returns the built-in rule set. Prefixed vendor tokens are
// self-identifying; the assignment rules require a key-like name before the
// value so ordinary prose is left alone.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "private-key", Pattern: `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----[\s\S]*?-----END (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`},
		{ID: "aws-access-key-id", Pattern: `\b(?:AKIA|ASIA|AGPA|AIDA|AROA)[A-Z0-9]{16}\b`},
		{ID: "openai-key", Pattern: `\bsk-(?:proj-)?[A-Za-z0-9_\-]{20,}`},
		{ID: "github-token", Pattern: `\b(?:ghp|gho|ghu|ghs)_[A-Za-z0-9]{36}\b|\bgithub_pat_[A-Za-z0-9_]{22,}`},
		{ID: "gitlab-token", Pattern: `\bglpat-[A-Za-z0-9\-]{20,}`},
		{ID: "slack-token", Pattern: `\bxox[abpr]-[A-Za-z0-9\-]{10,}`},
		{ID: "jwt", Pattern: `\beyJ[A-Za-z0-9_\-]{8,}\.eyJ[A-Za-z0-9_\-]{8,}\.[A-Za-z0-9_\-]{8,}`},
		{ID: "bearer-token", Pattern: `(?i)\bbearer\s+[A-Za-z0-9_\-\.=]{20,}`},
		{ID: "credential-assignment", Pattern: `(?i)\b(?:api[_-]?key|secret|password|passwd|access[_-]?token)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`},
	}
}

func compile(rules []Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: id is required", i)
		}
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %s: pattern is required", r.ID)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid pattern: %w", r.ID, err)
		}
		out = append(out, compiledRule{id: r.ID, pattern: re})
	}
	return out, nil
}
