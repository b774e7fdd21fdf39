// Package contextbuilder assembles an agent's prompt from historical
// ledger messages subject to a size budget. Build is a pure
// function of its inputs: it never mutates the ledger or the agent.
package contextbuilder

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/ledger"
	"github.com/orc-run/orc/internal/message"
)

// MaxChars is the defensive truncation threshold from : assembled
// prompts longer than this are truncated, preserving the header,
// ISSUE_OPENED block, and triggering-message section.
const MaxChars = 500_000

// Identity is the minimal agent identity the header section needs.
type Identity struct {
	ID   string
	Role string
}

// ClusterInfo supplies the fields the since-resolution table and the
// validator-role survey need.
type ClusterInfo struct {
	ID        string
	CreatedAt int64
}

// Input bundles every parameter Build needs, matching the pure-function
// signature below.
type Input struct {
	Ctx        context.Context
	Identity   Identity
	Iteration  int
	Config     clusterconfig.AgentConfig
	Store      ledger.Store
	Cluster    ClusterInfo
	LastTaskEndTime    int64 // 0 means unset
	LastAgentStartTime int64 // 0 means unset

	TriggeringMessage *message.Message
	SelectedPrompt    string // already-resolved via PromptPolicy.Resolve
	IsolationEnabled  bool
}

type section struct {
	name string
	text string
}

// Build assembles the prompt per the ordered section structure below.
func Build(in Input) (string, error) {
	var sections []section

	sections = append(sections, section{"header", headerSection(in.Identity, in.Iteration)})
	sections = append(sections, section{"standing-autonomous", autonomousStandingInstructions})
	sections = append(sections, section{"standing-output-style", outputStyleStandingInstructions})

	if !in.IsolationEnabled {
		sections = append(sections, section{"git-prohibition", gitOperationsProhibition})
	}

	if in.SelectedPrompt == "" {
		return "", fmt.Errorf("contextbuilder: no prompt selected for iteration %d", in.Iteration)
	}
	sections = append(sections, section{"instructions", "## Instructions\n\n" + in.SelectedPrompt})

	if in.Config.Output.Format != "" && in.Config.Output.Format != clusterconfig.OutputJSON {
		sections = append(sections, section{"legacy-output-format", legacyOutputFormatBlock(in.Config.ResolvedOutputFormat())})
	}

	if in.Config.ResolvedOutputFormat() == clusterconfig.OutputJSON {
		block, err := jsonSchemaBlock(in.Config.ResolvedJSONSchema())
		if err != nil {
			return "", err
		}
		sections = append(sections, section{"json-schema", block})
	}

	for _, src := range in.Config.ContextStrategy.Sources {
		text, isIssueOpened, err := sourceSection(in, src)
		if err != nil {
			return "", err
		}
		name := "source"
		if isIssueOpened {
			name = "issue-opened"
		}
		sections = append(sections, section{name, text})
	}

	if in.Identity.Role == clusterconfig.RoleValidator {
		sections = append(sections, section{"cannot-validate", cannotValidateSurvey(in)})
	}

	sections = append(sections, section{"triggering-message", triggeringMessageSection(in.TriggeringMessage)})

	assembled, truncationNote := assembleWithBudget(sections, in.Config.ContextStrategy.MaxTokens)
	_ = truncationNote
	return assembled, nil
}

func headerSection(id Identity, iteration int) string {
	return fmt.Sprintf("## Agent\n\nid: %s\nrole: %s\niteration: %d", id.ID, id.Role, iteration)
}

const autonomousStandingInstructions = `## Autonomous Execution

You are running non-interactively. Do not ask clarifying questions; make
the best decision you can from the context provided and proceed.`

const outputStyleStandingInstructions = `## Output Style

Be direct. Do not narrate your own process.`

const gitOperationsProhibition = `## Git Operations

Do not run git commands. Git state inside this environment is unreliable
and is managed outside your process.`

func legacyOutputFormatBlock(format string) string {
	return fmt.Sprintf("## Output Format\n\nRespond with output of type: %s", format)
}

func triggeringMessageSection(m *message.Message) string {
	if m == nil {
		return "## Triggering Message\n\n(none)"
	}
	return fmt.Sprintf("## Triggering Message\n\n[%d] %s from %s: %s", m.Timestamp, m.Topic, m.Sender, formatContent(m.Content))
}

func formatContent(c message.Content) string {
	if c.Text != "" {
		return c.Text
	}
	if len(c.Data) == 0 {
		return "(empty)"
	}
	keys := make([]string, 0, len(c.Data))
	for k := range c.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, c.Data[k])
	}
	return b.String()
}

// resolveSince implements the since-resolution table below.
func resolveSince(since string, in Input) (int64, error) {
	switch since {
	case "", clusterconfig.SinceClusterStart:
		return in.Cluster.CreatedAt, nil
	case clusterconfig.SinceLastTaskEnd:
		if in.LastTaskEndTime != 0 {
			return in.LastTaskEndTime, nil
		}
		return in.Cluster.CreatedAt, nil
	case clusterconfig.SinceLastAgentStart:
		if in.LastAgentStartTime != 0 {
			return in.LastAgentStartTime, nil
		}
		return in.Cluster.CreatedAt, nil
	default:
		if ts, err := time.Parse(time.RFC3339, since); err == nil {
			return ts.UnixMilli(), nil
		}
		return 0, fmt.Errorf("contextbuilder: unknown since value %q", since)
	}
}

func sourceSection(in Input, src clusterconfig.ContextSource) (string, bool, error) {
	sinceTS, err := resolveSince(src.Since, in)
	if err != nil {
		return "", false, err
	}

	f := ledger.Filter{ClusterID: in.Cluster.ID, Topic: src.Topic, Sender: src.Sender, Since: sinceTS, Limit: src.Limit}
	msgs, err := in.Store.Query(ctxOrBackground(in.Ctx), f)
	if err != nil {
		return "", false, fmt.Errorf("contextbuilder: query source %s: %w", src.Topic, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", src.Topic)
	if len(msgs) == 0 {
		b.WriteString("(no messages)")
	}
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%d] %s from %s: %s\n", m.Timestamp, m.Topic, m.Sender, formatContent(m.Content))
	}
	return b.String(), src.Topic == message.TopicIssueOpened, nil
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func cannotValidateSurvey(in Input) string {
	msgs, err := in.Store.Query(ctxOrBackground(in.Ctx), ledger.Filter{ClusterID: in.Cluster.ID, Topic: message.TopicValidationResult})
	if err != nil {
		return "## Skip List\n\n(unavailable)"
	}

	seen := make(map[string]bool)
	var criteria []string
	for _, m := range msgs {
		status, _ := m.Content.Data["status"].(string)
		if status != "CANNOT_VALIDATE" {
			continue
		}
		id, _ := m.Content.Data["criterionId"].(string)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		criteria = append(criteria, id)
	}

	var b strings.Builder
	b.WriteString("## Skip List\n\n")
	if len(criteria) == 0 {
		b.WriteString("(none)")
		return b.String()
	}
	sort.Strings(criteria)
	for _, c := range criteria {
		fmt.Fprintf(&b, "- %s: permanently CANNOT_VALIDATE, skip\n", c)
	}
	return b.String()
}
