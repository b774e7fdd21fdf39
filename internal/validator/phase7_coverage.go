package validator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/orc-run/orc/internal/clusterconfig"
)

// checkRuleCoverage is phase 7: an agent's modelRules and prompt
// iteration rules must together cover [1, maxIterations]. A modelRules
// gap is reported as a warning and a promptPolicy rule-list gap as an
// error, although at runtime both fail on an uncovered iteration:
// ResolveModelSpec errors when no modelRule matches, and Resolve errors
// when no prompt rule matches.
func checkRuleCoverage(a *acc, doc clusterconfig.Document, path string) {
	for i, ag := range doc.Agents {
		p := pathf("%sagents[%d]", path, i)
		maxIter := ag.ResolvedMaxIterations()

		if len(ag.ModelPolicy.ModelRules) > 0 {
			patterns := make([]string, len(ag.ModelPolicy.ModelRules))
			for j, r := range ag.ModelPolicy.ModelRules {
				patterns[j] = r.Iterations
			}
			if gaps := coverageGaps(patterns, maxIter); gaps != "" {
				a.warnf(7, pathf("%s.modelPolicy.modelRules", p), "modelRules do not cover iterations %s; model resolution fails on those iterations", gaps)
			}
		}

		if len(ag.PromptPolicy.Rules) > 0 {
			patterns := make([]string, len(ag.PromptPolicy.Rules))
			for j, r := range ag.PromptPolicy.Rules {
				patterns[j] = r.Iterations
			}
			if gaps := coverageGaps(patterns, maxIter); gaps != "" {
				a.errorf(7, pathf("%s.promptPolicy", p), "promptPolicy rules do not cover iterations %s; those iterations have no matching prompt", gaps)
			}
		}
	}
}

// coverageGaps reports the iterations in [1, maxIter] no pattern
// matches, formatted as a compact range list ("1-3, 5, 7-9"). Invalid
// patterns are skipped here; phase 1 already reports them.
func coverageGaps(patterns []string, maxIter int) string {
	if maxIter <= 0 {
		return ""
	}
	covered := make([]bool, maxIter+1)
	for _, pat := range patterns {
		for n := 1; n <= maxIter; n++ {
			if matched, err := clusterconfig.MatchIterationPattern(pat, n); err == nil && matched {
				covered[n] = true
			}
		}
	}

	var gaps []int
	for n := 1; n <= maxIter; n++ {
		if !covered[n] {
			gaps = append(gaps, n)
		}
	}
	return formatRanges(gaps)
}

func formatRanges(nums []int) string {
	if len(nums) == 0 {
		return ""
	}
	var parts []string
	start := nums[0]
	prev := nums[0]
	flush := func(end int) {
		if start == end {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, end))
		}
	}
	for _, n := range nums[1:] {
		if n == prev+1 {
			prev = n
			continue
		}
		flush(prev)
		start, prev = n, n
	}
	flush(prev)
	return strings.Join(parts, ", ")
}
