package contextbuilder

import (
	"fmt"
	"strings"
)

// assembleWithBudget joins sections in order, applying the size // defensive-truncation rule when the naive join exceeds MaxChars: the
// header, the ISSUE_OPENED block (if present), and the triggering
// message are always preserved whole; everything else ("middle"
// sections) is truncated to its most-recent lines to fit the remaining
// budget, with a marker noting how many lines were dropped. Finally, if
// legacyMaxTokens > 0, the whole result is capped again at
// legacyMaxTokens*4 characters.
func assembleWithBudget(sections []section, legacyMaxTokens int) (string, bool) {
	naive := joinSections(sections)
	truncated := false

	if len(naive) > MaxChars {
		naive = truncateMiddle(sections)
		truncated = true
	}

	if legacyMaxTokens > 0 {
		charCap := legacyMaxTokens * 4
		if len(naive) > charCap {
			naive = naive[:charCap]
			truncated = true
		}
	}

	return naive, truncated
}

func joinSections(sections []section) string {
	parts := make([]string, len(sections))
	for i, s := range sections {
		parts[i] = s.text
	}
	return strings.Join(parts, "\n\n")
}

func isPreserved(s section) bool {
	return s.name == "header" || s.name == "issue-opened" || s.name == "triggering-message"
}

func truncateMiddle(sections []section) string {
	var preserved, middle []section
	for _, s := range sections {
		if isPreserved(s) {
			preserved = append(preserved, s)
		} else {
			middle = append(middle, s)
		}
	}

	preservedText := joinSections(preserved)
	budget := MaxChars - len(preservedText)
	if budget < 0 {
		budget = 0
	}

	// Flatten every middle section into lines, newest last (sections
	// are already in declared/ledger order), then keep the tail that
	// fits the remaining budget.
	var allLines []string
	for _, s := range middle {
		allLines = append(allLines, strings.Split(s.text, "\n")...)
	}

	kept := 0
	used := 0
	for i := len(allLines) - 1; i >= 0; i-- {
		used += len(allLines[i]) + 1
		if used > budget {
			break
		}
		kept++
	}
	dropped := len(allLines) - kept
	keptLines := allLines[len(allLines)-kept:]

	marker := fmt.Sprintf("## Truncated\n\n(%d earlier lines omitted to stay within the context size budget)", dropped)

	var out []string
	// Reassemble in original section order: header first, then the
	// truncated middle block (with its marker), then issue-opened and
	// triggering-message kept whole, matching their declared positions.
	inserted := false
	for _, s := range sections {
		if isPreserved(s) {
			out = append(out, s.text)
			continue
		}
		if !inserted {
			out = append(out, marker)
			out = append(out, strings.Join(keptLines, "\n"))
			inserted = true
		}
	}
	return strings.Join(out, "\n\n")
}
