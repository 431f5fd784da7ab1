package adapter

import "strings"

// Tags delimiting agent-authored sections inside Planner notes. Agent
// rationale is appended under these markers so it is visible in the
// Planner UI without overwriting human-authored content.
const (
	reasoningTag = "[Reasoning]"
	outputTag    = "[Output]"
)

// ComposeNotes builds the Planner description from human notes plus the
// task's agent-authored reasoning and output. Composition is append-only:
// the human portion always comes first and is never replaced by agent
// content. existing is the current remote description; any previously
// appended agent sections in it are superseded by the fresh ones, but the
// human portion is preserved even when the local Notes field is empty.
func ComposeNotes(notes, reasoning, output, existing string) string {
	human := notes
	if human == "" && existing != "" {
		human, _, _ = SplitNotes(existing)
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(human, "\n"))

	appendSection := func(tag, body string) {
		body = strings.TrimSpace(body)
		if body == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(tag)
		b.WriteString("\n")
		b.WriteString(body)
	}

	appendSection(reasoningTag, reasoning)
	appendSection(outputTag, output)

	return b.String()
}

// SplitNotes separates a Planner description into the human-authored
// portion and the agent-authored reasoning/output sections.
func SplitNotes(description string) (notes, reasoning, output string) {
	rest := description

	if idx := strings.Index(rest, outputTag); idx >= 0 {
		output = strings.TrimSpace(rest[idx+len(outputTag):])
		rest = rest[:idx]
	}
	if idx := strings.Index(rest, reasoningTag); idx >= 0 {
		reasoning = strings.TrimSpace(rest[idx+len(reasoningTag):])
		rest = rest[:idx]
	}

	notes = strings.TrimRight(rest, "\n ")
	return notes, reasoning, output
}
