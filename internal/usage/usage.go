// Package usage formats a cluster's ledger.TokenUsage query into the
// operator-facing report printed by "orc usage".
package usage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/ledger"
)

// Report is one cluster's token/cost breakdown, ready to render.
type Report struct {
	ClusterID string
	ByRole    []RoleLine
	Total     ledger.RoleUsage
}

// RoleLine is one role's row in the report, kept separate from
// ledger.RoleUsage so the role name travels with its totals once
// sorted.
type RoleLine struct {
	Role string
	ledger.RoleUsage
}

// Build runs the ledger's tokenUsage query for clusterID and resolves
// each message's sender against doc's agents to label cost by role,
// falling back to "system" for senders doc does not declare.
func Build(ctx context.Context, store ledger.Store, clusterID string, doc clusterconfig.Document) (Report, error) {
	roleOf := roleResolver(doc)
	tu, err := store.TokenUsage(ctx, clusterID, roleOf)
	if err != nil {
		return Report{}, fmt.Errorf("usage: querying cluster %q: %w", clusterID, err)
	}

	lines := make([]RoleLine, 0, len(tu.ByRole))
	for role, u := range tu.ByRole {
		lines = append(lines, RoleLine{Role: role, RoleUsage: u})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Role < lines[j].Role })

	return Report{ClusterID: clusterID, ByRole: lines, Total: tu.Total}, nil
}

func roleResolver(doc clusterconfig.Document) func(string) string {
	roles := map[string]string{}
	var collect func(d clusterconfig.Document)
	collect = func(d clusterconfig.Document) {
		for _, ag := range d.Agents {
			roles[ag.ID] = ag.Role
			for _, sub := range ag.SubClusters {
				collect(sub)
			}
		}
	}
	collect(doc)

	return func(sender string) string {
		if role, ok := roles[sender]; ok && role != "" {
			return role
		}
		return "system"
	}
}

// String renders the report as the plain-text table "orc usage" prints.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cluster %s\n", r.ClusterID)
	fmt.Fprintf(&b, "%-20s %12s %12s %10s\n", "role", "input", "output", "cost_usd")
	for _, line := range r.ByRole {
		fmt.Fprintf(&b, "%-20s %12d %12d %10.4f\n", line.Role, line.InputTokens, line.OutputTokens, line.CostUSD)
	}
	fmt.Fprintf(&b, "%-20s %12d %12d %10.4f\n", "total", r.Total.InputTokens, r.Total.OutputTokens, r.Total.CostUSD)
	return b.String()
}
