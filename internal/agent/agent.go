// Package agent implements the per-agent state machine: trigger
// evaluation against the shared ledger, context assembly, task
// execution, and hook dispatch, mutually exclusive per agent.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/orc-run/orc/internal/bus"
	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/contextbuilder"
	"github.com/orc-run/orc/internal/executor"
	"github.com/orc-run/orc/internal/hookexec"
	"github.com/orc-run/orc/internal/ledger"
	"github.com/orc-run/orc/internal/logic"
	"github.com/orc-run/orc/internal/message"
	"github.com/orc-run/orc/internal/telemetry"
)

// State is one node of the state machine.
type State string

const (
	StateIdle             State = "idle"
	StateEvaluating       State = "evaluating"
	StateBuildingContext  State = "building_context"
	StateExecuting        State = "executing"
	StateStopped          State = "stopped"
)

// ClusterContext is the read-only view of the owning cluster an agent
// needs: role/id lookups for trigger-logic scripts and context-builder
// headers. internal/orchestrator implements this against its concrete
// Cluster type; defining it here (rather than importing orchestrator)
// keeps the dependency arrow pointing the natural direction — the
// orchestrator depends on agent, not the reverse.
type ClusterContext interface {
	ID() string
	CreatedAt() int64
	GetAgent(id string) (logic.AgentView, bool)
	GetAgentsByRole(role string) []logic.AgentView
}

// TaskRunner executes one task spec and returns its result; satisfied
// by *executor.Runner, mocked in tests.
type TaskRunner interface {
	Run(ctx context.Context, spec executor.Spec) (*executor.Result, error)
}

// Settings carries the small amount of operator configuration the
// model-spec legacy guard needs and the default provider for agents
// that don't declare their own.
type Settings struct {
	DefaultProvider string
	LegacyMinModel  string
	LegacyMaxModel  string

	// Metrics is optional; a nil value disables instrumentation rather
	// than requiring every caller to construct a no-op telemetry.Metrics.
	Metrics *telemetry.Metrics
}

// Agent runs one cluster member's state machine.
type Agent struct {
	id      string
	config  clusterconfig.AgentConfig
	cluster ClusterContext
	bus     *bus.Bus
	engine  *logic.Engine
	runner  TaskRunner
	settings Settings
	log     *slog.Logger

	mu                 sync.Mutex
	state              State
	iteration          int
	exhaustedPublished bool
	unsubscribe        bus.Unsubscribe
	lastTaskEndTime    int64
	lastAgentStartTime int64
	lastModel          string
	lastProvider       string

	now func() int64
}

// New constructs an agent. It does not subscribe to the bus until
// Start is called.
func New(id string, cfg clusterconfig.AgentConfig, cluster ClusterContext, b *bus.Bus, engine *logic.Engine, runner TaskRunner, settings Settings, log *slog.Logger) *Agent {
	if log == nil {
		log = slog.Default()
	}
	return &Agent{
		id:       id,
		config:   cfg,
		cluster:  cluster,
		bus:      b,
		engine:   engine,
		runner:   runner,
		settings: settings,
		log:      log.With("agent", id),
		state:    StateIdle,
		now:      nowMillis,
	}
}

// ID returns the agent's configured identifier.
func (a *Agent) ID() string { return a.id }

// State reports the agent's current state machine node.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Iteration reports the number of completed execute_task cycles.
func (a *Agent) Iteration() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.iteration
}

// Start subscribes the agent to its cluster's ledger traffic.
func (a *Agent) Start() {
	a.mu.Lock()
	a.lastAgentStartTime = a.now()
	a.unsubscribe = a.bus.Subscribe(ledger.Filter{ClusterID: a.cluster.ID()}, a.handleMessage)
	a.state = StateIdle
	a.mu.Unlock()
}

// Stop unsubscribes the agent and transitions it to stopped
// unconditionally ("any -> stopped").
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	a.state = StateStopped
}

// Resume synthesizes an AGENT_RESUME triggering message and runs one
// cycle against the supplied context text, valid only when the agent
// is currently idle.
func (a *Agent) Resume(ctx context.Context, contextText string) error {
	a.mu.Lock()
	if a.state != StateIdle {
		a.mu.Unlock()
		return fmt.Errorf("agent: resume requires idle state, got %s", a.state)
	}
	a.state = StateEvaluating
	a.mu.Unlock()

	resumeMsg := message.Message{
		ClusterID: a.cluster.ID(),
		Topic:     message.TopicAgentResume,
		Sender:    message.SenderSystem,
		Receiver:  a.id,
		Content:   message.Content{Text: contextText},
	}
	a.runCycle(ctx, resumeMsg)
	return nil
}

// handleMessage is the bus subscription callback: match, evaluate, transition, act, publish.
func (a *Agent) handleMessage(m message.Message) {
	a.mu.Lock()
	if a.state != StateIdle {
		a.mu.Unlock()
		return
	}
	a.state = StateEvaluating
	a.mu.Unlock()

	trig, ok := a.matchTrigger(m)
	if !ok {
		a.setState(StateIdle)
		return
	}

	if trig.Logic != nil && trig.Logic.Script != "" {
		g := a.globalsFor(&m)
		if !a.engine.EvalTrigger(g, trig.Logic.Script) {
			a.setState(StateIdle)
			return
		}
	}

	switch trig.Action {
	case clusterconfig.ActionStopCluster:
		a.publishControl(message.TopicClusterComplete, map[string]any{"reason": "stop_cluster trigger", "triggeredBy": a.id})
		a.setState(StateStopped)
	case clusterconfig.ActionExecuteTask:
		a.runCycle(context.Background(), m)
	default:
		a.log.Warn("unknown trigger action", "action", trig.Action)
		a.setState(StateIdle)
	}
}

func (a *Agent) matchTrigger(m message.Message) (*clusterconfig.Trigger, bool) {
	for i := range a.config.Triggers {
		t := &a.config.Triggers[i]
		if t.Topic != m.Topic {
			continue
		}
		if t.Sender != "" && t.Sender != m.Sender {
			continue
		}
		return t, true
	}
	return nil, false
}

// runCycle assembles context, executes the task, and dispatches the
// resulting hook, always returning the agent to idle.
func (a *Agent) runCycle(ctx context.Context, triggeringMsg message.Message) {
	defer a.setState(StateIdle)

	a.mu.Lock()
	iteration := a.iteration + 1
	maxIter := a.config.ResolvedMaxIterations()
	if a.iteration >= maxIter {
		if !a.exhaustedPublished {
			a.exhaustedPublished = true
			a.mu.Unlock()
			a.publishControl(message.TopicAgentExhausted, map[string]any{"maxIterations": maxIter})
			a.setState(StateIdle)
			return
		}
		a.mu.Unlock()
		a.setState(StateIdle)
		return
	}
	a.mu.Unlock()

	a.setState(StateBuildingContext)

	prompt, err := a.config.PromptPolicy.Resolve(iteration)
	if err != nil {
		a.reportFailure(triggeringMsg, iteration, err)
		return
	}

	provider := a.config.ResolvedProvider(a.settings.DefaultProvider)
	spec, err := ResolveModelSpec(a.config.ModelPolicy, provider, iteration, a.settings.LegacyMinModel, a.settings.LegacyMaxModel)
	if err != nil {
		a.reportFailure(triggeringMsg, iteration, err)
		return
	}

	a.mu.Lock()
	a.lastModel = spec.Model
	a.lastProvider = provider
	a.mu.Unlock()

	promptText, err := contextbuilder.Build(contextbuilder.Input{
		Ctx:                ctx,
		Identity:           contextbuilder.Identity{ID: a.id, Role: a.config.Role},
		Iteration:          iteration,
		Config:             a.config,
		Store:              a.bus.Store(),
		Cluster:            contextbuilder.ClusterInfo{ID: a.cluster.ID(), CreatedAt: a.cluster.CreatedAt()},
		LastTaskEndTime:    a.lastTaskEndTime,
		LastAgentStartTime: a.lastAgentStartTime,
		TriggeringMessage:  &triggeringMsg,
		SelectedPrompt:     prompt,
		IsolationEnabled:   a.config.Isolation != "",
	})
	if err != nil {
		a.reportFailure(triggeringMsg, iteration, err)
		return
	}

	a.setState(StateExecuting)

	taskSpec := executor.Spec{
		TaskID:          uuid.NewString(),
		ClusterID:       a.cluster.ID(),
		AgentID:         a.id,
		Provider:        provider,
		Model:           spec.Model,
		ModelLevel:      spec.Level,
		ReasoningEffort: spec.ReasoningEffort,
		Isolation:       a.config.Isolation,
		Prompt:          promptText,
		Iteration:       iteration,
	}
	if a.config.ResolvedOutputFormat() == clusterconfig.OutputJSON {
		taskSpec.JSONSchema = a.config.ResolvedJSONSchema()
		taskSpec.SchemaRequired = a.config.Role == clusterconfig.RoleValidator
	}

	taskCtx, span := a.settings.Metrics.StartTaskSpan(ctx, a.cluster.ID(), a.id)
	taskStart := a.now()
	result, runErr := a.runner.Run(taskCtx, taskSpec)
	span.End()

	a.mu.Lock()
	a.lastTaskEndTime = a.now()
	a.mu.Unlock()
	a.settings.Metrics.RecordTaskDuration(ctx, a.cluster.ID(), a.id, float64(a.lastTaskEndTime-taskStart)/1000, runErr == nil && result != nil && result.Success)

	if runErr != nil || result == nil || !result.Success {
		var failErr error
		switch {
		case runErr != nil:
			failErr = runErr
		case result != nil && result.Err != nil:
			failErr = result.Err
		default:
			failErr = fmt.Errorf("agent: task execution failed")
		}
		a.reportFailure(triggeringMsg, iteration, failErr)
		a.runHook(clusterconfig.LifecycleOnFailure, iteration, nil, failErr)
	} else {
		a.runHook(clusterconfig.LifecycleOnComplete, iteration, result.Output, nil)
	}

	a.mu.Lock()
	a.iteration = iteration
	a.mu.Unlock()
	a.publishControl(message.TopicAgentLifecycle, map[string]any{"event": "iteration_complete", "agentId": a.id, "iteration": iteration})
	a.setState(StateIdle)
}

// SetIteration seeds the agent's iteration counter, used only by
// resume-from-ledger reconstruction before Start is called.
func (a *Agent) SetIteration(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.iteration = n
}

// UpdateTriggers replaces the agent's trigger list, used by the
// orchestrator's update_trigger dynamic cluster operation.
func (a *Agent) UpdateTriggers(triggers []clusterconfig.Trigger) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.config.Triggers = triggers
}

func (a *Agent) reportFailure(triggeringMsg message.Message, iteration int, err error) {
	a.log.Error("agent cycle failed", "iteration", iteration, "err", err)
	a.publishControl(message.TopicAgentError, map[string]any{
		"error":     err.Error(),
		"iteration": iteration,
	})
}

func (a *Agent) runHook(lifecycle string, iteration int, result map[string]any, cycleErr error) {
	hook, ok := a.config.Hooks[lifecycle]
	if !ok {
		return
	}
	hctx := hookexec.Context{
		Engine:           a.engine,
		Globals:          a.globalsFor(nil),
		ClusterID:        a.cluster.ID(),
		ClusterCreatedAt: a.cluster.CreatedAt(),
		Iteration:        iteration,
		Sender:           a.id,
		Result:           result,
	}
	if cycleErr != nil {
		hctx.ErrorMessage = cycleErr.Error()
	}

	msg, err := hookexec.Execute(hook, hctx)
	if err != nil {
		a.log.Error("hook execution failed", "lifecycle", lifecycle, "err", err)
		return
	}
	a.publish(*msg)
}

func (a *Agent) publishControl(topic string, data map[string]any) {
	a.publish(message.Message{
		ClusterID: a.cluster.ID(),
		Topic:     topic,
		Sender:    a.id,
		Receiver:  message.ReceiverBroadcast,
		Content:   message.Content{Data: data},
	})
}

// publish is the single funnel every outgoing message from this agent
// goes through, so the agent's currently resolved model/provider (set
// in runCycle) is stamped onto every message it sends, satisfying "an
// agent publishes only with sender = its id and records model+provider".
func (a *Agent) publish(m message.Message) {
	a.mu.Lock()
	m.SenderModel = a.lastModel
	m.SenderProvider = a.lastProvider
	a.mu.Unlock()

	if _, err := a.bus.Publish(context.Background(), m); err != nil {
		a.log.Error("publish failed", "topic", m.Topic, "err", err)
		return
	}
	a.settings.Metrics.RecordPublish(context.Background(), a.cluster.ID(), m.Topic)
}

func (a *Agent) globalsFor(m *message.Message) *logic.Globals {
	agentView, _ := a.cluster.GetAgent(a.id)
	return &logic.Globals{
		Ctx:   context.Background(),
		Store: a.bus.Store(),
		Cluster: logic.ClusterView{
			ID:              a.cluster.ID(),
			CreatedAt:       a.cluster.CreatedAt(),
			GetAgent:        a.cluster.GetAgent,
			GetAgentsByRole: a.cluster.GetAgentsByRole,
		},
		Message: m,
		Agent:   agentView,
	}
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateStopped {
		return
	}
	a.state = s
}
