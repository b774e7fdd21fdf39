package validator

import (
	"regexp"
	"strings"

	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/logic"
)

// sandboxGlobals are the identifiers a script may reference without a
// local binding: the sandbox's own globals plus the value-only JS
// built-ins it exposes.
var sandboxGlobals = map[string]bool{
	"ledger": true, "cluster": true, "message": true, "agent": true, "helpers": true,
	"console": true, "Math": true, "JSON": true, "Date": true, "String": true,
	"Number": true, "Boolean": true, "Array": true, "Object": true, "Set": true,
	"Map": true, "undefined": true, "null": true, "true": true, "false": true,
	"return": true, "if": true, "else": true, "for": true, "while": true,
	"function": true, "var": true, "let": true, "const": true, "typeof": true,
	"in": true, "of": true, "new": true, "this": true, "break": true, "continue": true,
	"NaN": true, "Infinity": true, "parseInt": true, "parseFloat": true, "isNaN": true,
}

var constantReturn = regexp.MustCompile(`^\s*return\s+(true|false)\s*;?\s*$`)
var identifierPattern = regexp.MustCompile(`[A-Za-z_$][A-Za-z0-9_$]*`)
var declarationPattern = regexp.MustCompile(`\b(?:var|let|const|function)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
var paramPattern = regexp.MustCompile(`function\s*[A-Za-z_$]*\s*\(([^)]*)\)`)

// checkLogicScripts is phase 4: syntax-check every sandboxed script,
// warn on trivially-constant returns, and warn on identifiers that are
// neither a sandbox global nor locally declared — a best-effort lexical
// heuristic, not full scope analysis, so it only ever warns.
func checkLogicScripts(a *acc, engine *logic.Engine, doc clusterconfig.Document, path string) {
	for i, ag := range doc.Agents {
		for scriptPath, script := range allScripts(ag) {
			p := pathf("%sagents[%d].%s", path, i, scriptPath)

			if err := engine.ValidateSyntax(script); err != nil {
				a.errorf(4, p, "syntax error: %v", err)
				continue
			}

			if constantReturn.MatchString(strings.TrimSpace(script)) {
				a.warnf(4, p, "script always returns a constant value")
			}

			for _, ident := range undeclaredIdentifiers(script) {
				a.warnf(4, p, "identifier %q is not a sandbox global and has no local declaration in this script", ident)
			}
		}
	}
}

func undeclaredIdentifiers(script string) []string {
	declared := map[string]bool{}
	for _, m := range declarationPattern.FindAllStringSubmatch(script, -1) {
		declared[m[1]] = true
	}
	for _, m := range paramPattern.FindAllStringSubmatch(script, -1) {
		for _, param := range strings.Split(m[1], ",") {
			param = strings.TrimSpace(param)
			if param != "" {
				declared[param] = true
			}
		}
	}

	seen := map[string]bool{}
	var out []string
	matches := identifierPattern.FindAllStringIndex(script, -1)
	for _, loc := range matches {
		ident := script[loc[0]:loc[1]]
		if sandboxGlobals[ident] || declared[ident] || seen[ident] {
			continue
		}
		// Skip property-access targets (obj.ident) and object-literal
		// keys (ident:) — only flag identifiers used as bare values.
		if loc[0] > 0 && script[loc[0]-1] == '.' {
			continue
		}
		rest := strings.TrimLeft(script[loc[1]:], " \t")
		if strings.HasPrefix(rest, ":") || strings.HasPrefix(rest, "(") {
			continue
		}
		seen[ident] = true
		out = append(out, ident)
	}
	return out
}
