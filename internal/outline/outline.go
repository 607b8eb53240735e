// Package outline inspects the heading structure of generated notes.
//
// It is advisory: a missing closing section is surfaced to the caller as a
// hint that the notes may have stopped early, but it never changes whether
// the notes count as complete.
package outline

import (
	"strings"
	"unicode"

	"github.com/studyforge/notesd/internal/completion"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Heading is one markdown heading.
type Heading struct {
	Level int    `json:"level" yaml:"level"`
	Text  string `json:"text" yaml:"text"`
}

// Report summarises the notes' structure.
type Report struct {
	Headings []Heading `json:"headings" yaml:"headings"`
	// HasClosingSection is true when the last section looks like a wrap-up
	// (summary, key takeaways, review questions, ...).
	HasClosingSection bool `json:"hasClosingSection" yaml:"hasClosingSection"`
	// ClosingSection is the heading that matched, if any.
	ClosingSection string `json:"closingSection,omitempty" yaml:"closingSection,omitempty"`
}

// closingTitles are matched against the normalised last heading.
var closingTitles = []string{
	"summary",
	"key takeaways",
	"takeaways",
	"conclusion",
	"review questions",
	"practice questions",
	"recap",
	"final thoughts",
	"key points",
}

var md = goldmark.New()

// Inspect parses notes as markdown. A trailing completion marker is ignored.
func Inspect(notes string) Report {
	src := []byte(completion.StripMarker(notes))
	doc := md.Parser().Parse(text.NewReader(src))

	report := Report{Headings: []Heading{}}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		report.Headings = append(report.Headings, Heading{
			Level: h.Level,
			Text:  strings.TrimSpace(inlineText(h, src)),
		})
		return ast.WalkSkipChildren, nil
	})

	if last, ok := lastSection(report.Headings); ok && isClosing(last.Text) {
		report.HasClosingSection = true
		report.ClosingSection = last.Text
	}
	return report
}

// lastSection returns the last heading at or above level 3, ignoring deeper
// sub-headings inside the final section.
func lastSection(headings []Heading) (Heading, bool) {
	for i := len(headings) - 1; i >= 0; i-- {
		if headings[i].Level <= 3 {
			return headings[i], true
		}
	}
	return Heading{}, false
}

func isClosing(title string) bool {
	norm := normalise(title)
	for _, c := range closingTitles {
		if strings.HasPrefix(norm, c) || strings.HasSuffix(norm, c) {
			return true
		}
	}
	return false
}

// normalise lower-cases title and keeps letters, digits and single spaces,
// so "📝 Key Takeaways:" becomes "key takeaways".
func normalise(title string) string {
	var sb strings.Builder
	space := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			space = false
			sb.WriteRune(r)
		default:
			space = true
		}
	}
	return sb.String()
}

// inlineText concatenates the text segments under n.
func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}
