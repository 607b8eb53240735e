package continuation

import (
	"fmt"
	"strings"

	"github.com/studyforge/notesd/internal/completion"
	"github.com/studyforge/notesd/internal/generation"
)

// Field is the single structured output field a continuation must fill.
const Field = "continuation"

var continuationSchema = &generation.Schema{
	Name:             "continue_notes",
	Description:      "Return the continuation of truncated study notes",
	Field:            Field,
	FieldDescription: "The text that continues the notes exactly from where they stop",
}

var systemPrompt = `You are continuing a set of study notes that were cut off before they were finished.

Rules:
- Continue exactly from where the notes stop. If they stop mid-sentence, finish that sentence first.
- Do not repeat any content that already appears in the notes.
- Keep the same formatting conventions: "##" section headers, **bold** key terms, "> " blockquotes for definitions, "---" between major sections and $...$ for math.
- Cover the remaining material from the source text that the notes have not reached yet.
- When the notes are complete, end with the line ` + completion.Marker + ` on its own line.
- Return the continuation in the "` + Field + `" field only.`

// buildRequest assembles the completion request for one attempt.
func buildRequest(title, source, tail string) generation.Request {
	var user strings.Builder
	if title != "" {
		fmt.Fprintf(&user, "Title: %s\n\n", title)
	}
	user.WriteString("Source material:\n<<<SOURCE\n")
	user.WriteString(source)
	user.WriteString("\nSOURCE>>>\n\n")
	user.WriteString("The notes so far end with:\n<<<TAIL\n")
	user.WriteString(tail)
	user.WriteString("\nTAIL>>>\n\n")
	user.WriteString("Continue the notes from the exact point where the tail ends.")

	return generation.Request{
		Messages: []generation.Message{
			{Role: generation.RoleSystem, Content: systemPrompt},
			{Role: generation.RoleUser, Content: user.String()},
		},
		Schema: continuationSchema,
	}
}

// tailRunes returns the last n runes of s.
func tailRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
