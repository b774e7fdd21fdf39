package executor

// Dialect captures the one thing that differs between provider output
// formats (result-parsing table): which event is terminal, and
// whether that terminal event is ever allowed to carry the structured
// result directly.
//
// This is the direct grounding point for the Codex regression scenario
// (item 4): Codex's ResultFromEvent always returns false, so even if
// a turn.completed event happened to carry a "result" key, the
// extractor is structurally prevented from reading it there.
type Dialect struct {
	Name string

	// IsTerminal reports whether ev ends the task's output stream.
	IsTerminal func(ev Event) bool

	// ResultFromEvent returns the structured result carried directly by
	// a terminal event, if this dialect permits reading one there.
	ResultFromEvent func(ev Event) (value any, ok bool)
}

// Claude is the `claude` provider dialect: a terminating event with
// type "result" and a non-empty "result" field is the preferred result
// bearer, ahead of any assistant text collected earlier.
var Claude = Dialect{
	Name:       "claude",
	IsTerminal: func(ev Event) bool { return ev.Type == "result" },
	ResultFromEvent: func(ev Event) (any, bool) {
		if ev.Type != "result" {
			return nil, false
		}
		v, ok := ev.Raw["result"]
		if !ok || isEmptyResult(v) {
			return nil, false
		}
		return v, true
	},
}

// Codex is the `codex` provider dialect: the terminating turn.completed
// event carries usage only, never a result. Result extraction always
// falls through to the accumulated assistant text.
var Codex = Dialect{
	Name:            "codex",
	IsTerminal:      func(ev Event) bool { return ev.Type == "turn.completed" },
	ResultFromEvent: func(ev Event) (any, bool) { return nil, false },
}

// Gemini is the `gemini` provider dialect: a terminating "result" event
// may or may not carry a payload; when absent, fall through to
// preceding assistant message content.
var Gemini = Dialect{
	Name:       "gemini",
	IsTerminal: func(ev Event) bool { return ev.Type == "result" },
	ResultFromEvent: func(ev Event) (any, bool) {
		if ev.Type != "result" {
			return nil, false
		}
		v, ok := ev.Raw["result"]
		if !ok || isEmptyResult(v) {
			return nil, false
		}
		return v, true
	},
}

func isEmptyResult(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// ByName resolves the configured provider name to its Dialect.
func ByName(provider string) (Dialect, bool) {
	switch provider {
	case "claude":
		return Claude, true
	case "codex":
		return Codex, true
	case "gemini":
		return Gemini, true
	default:
		return Dialect{}, false
	}
}
