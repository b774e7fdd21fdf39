// Package executor implements the task executor: spawning a
// provider CLI subprocess, watching its liveness, tailing its
// newline-delimited-JSON stdout, and extracting the structured result
// according to the spawning provider's output dialect.
package executor

// Event is one parsed line of a provider's newline-delimited JSON
// stdout stream, with any leading bracketed timestamp decoration
// already stripped (open question: the bracket is optional and must
// be tolerated either way).
type Event struct {
	Type string
	Raw  map[string]any
}

// assistantText extracts this event's contribution to the accumulated
// assistant-text buffer the extraction algorithm searches as a
// fallback: events of type assistant/message/item.created carry
// content[].text or a content string.
func (e Event) assistantText() string {
	switch e.Type {
	case "assistant", "message", "item.created":
	default:
		return ""
	}

	if s, ok := e.Raw["content"].(string); ok {
		return s
	}
	if items, ok := e.Raw["content"].([]any); ok {
		var out string
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				out += t
			}
		}
		return out
	}
	// codex item.created items carry their text at item.text.
	if item, ok := e.Raw["item"].(map[string]any); ok {
		if t, ok := item["text"].(string); ok {
			return t
		}
	}
	return ""
}
