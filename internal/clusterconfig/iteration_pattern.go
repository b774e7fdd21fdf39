package clusterconfig

import (
	"fmt"
	"strconv"
	"strings"
)

// MatchIterationPattern evaluates a textual iteration pattern // against iteration:
//
//	"all"  matches every iteration
//	"N"    matches exactly N
//	"N-M"  matches N..M inclusive
//	"N+"   matches N and every iteration above it
//
// Any other shape is a config error, per the boundary case "unknown
// -> error".
func MatchIterationPattern(pattern string, iteration int) (bool, error) {
	p := strings.TrimSpace(pattern)

	if p == "all" {
		return true, nil
	}

	if strings.HasSuffix(p, "+") {
		n, err := strconv.Atoi(strings.TrimSuffix(p, "+"))
		if err != nil {
			return false, fmt.Errorf("clusterconfig: invalid iteration pattern %q: %w", pattern, err)
		}
		return iteration >= n, nil
	}

	if idx := strings.Index(p, "-"); idx > 0 {
		lo, err1 := strconv.Atoi(strings.TrimSpace(p[:idx]))
		hi, err2 := strconv.Atoi(strings.TrimSpace(p[idx+1:]))
		if err1 != nil || err2 != nil {
			return false, fmt.Errorf("clusterconfig: invalid iteration pattern %q", pattern)
		}
		return iteration >= lo && iteration <= hi, nil
	}

	n, err := strconv.Atoi(p)
	if err != nil {
		return false, fmt.Errorf("clusterconfig: invalid iteration pattern %q", pattern)
	}
	return iteration == n, nil
}

// ValidIterationPattern reports whether pattern parses as one of the
// four recognised shapes, without needing a concrete iteration to test
// against. Used by the validator's phase 1 structural checks.
func ValidIterationPattern(pattern string) bool {
	_, err := MatchIterationPattern(pattern, 1)
	return err == nil
}
