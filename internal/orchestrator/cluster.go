// Package orchestrator implements the cluster runtime: booting all
// configured agents, consuming control messages, and reconstructing a
// cluster's observable state from the ledger on resume ("Orchestrator",
// component table row 8).
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/orc-run/orc/internal/agent"
	"github.com/orc-run/orc/internal/bus"
	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/ledger"
	"github.com/orc-run/orc/internal/logic"
	"github.com/orc-run/orc/internal/message"
)

// RunnerFactory builds the task runner an agent with the given
// provider should use; orchestrator-level because different agents in
// the same cluster may target different provider CLIs.
type RunnerFactory func(provider string) (agent.TaskRunner, error)

// Cluster is the concrete runtime for one running cluster: the agent
// set, the role index dynamic operations mutate, and the bus/engine
// every agent shares.
type Cluster struct {
	id        string
	createdAt int64

	bus           *bus.Bus
	engine        *logic.Engine
	runnerFactory RunnerFactory
	settings      agent.Settings
	log           *slog.Logger

	mu      sync.Mutex
	agents  map[string]*agent.Agent
	configs map[string]clusterconfig.AgentConfig

	unsubscribeOps      bus.Unsubscribe
	unsubscribeComplete bus.Unsubscribe
}

// New constructs an unbooted cluster runtime.
func New(id string, createdAt int64, b *bus.Bus, engine *logic.Engine, runnerFactory RunnerFactory, settings agent.Settings, log *slog.Logger) *Cluster {
	if log == nil {
		log = slog.Default()
	}
	return &Cluster{
		id:            id,
		createdAt:     createdAt,
		bus:           b,
		engine:        engine,
		runnerFactory: runnerFactory,
		settings:      settings,
		log:           log.With("cluster_id", id),
		agents:        make(map[string]*agent.Agent),
		configs:       make(map[string]clusterconfig.AgentConfig),
	}
}

// ID satisfies agent.ClusterContext.
func (c *Cluster) ID() string { return c.id }

// CreatedAt satisfies agent.ClusterContext.
func (c *Cluster) CreatedAt() int64 { return c.createdAt }

// GetAgent satisfies agent.ClusterContext.
func (c *Cluster) GetAgent(id string) (logic.AgentView, bool) {
	c.mu.Lock()
	a, ok := c.agents[id]
	cfg := c.configs[id]
	c.mu.Unlock()
	if !ok {
		return logic.AgentView{}, false
	}
	return logic.AgentView{ID: id, Role: cfg.Role, Iteration: a.Iteration(), ClusterID: c.id}, true
}

// GetAgentsByRole satisfies agent.ClusterContext.
func (c *Cluster) GetAgentsByRole(role string) []logic.AgentView {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []logic.AgentView
	for id, a := range c.agents {
		cfg := c.configs[id]
		if cfg.Role == role {
			out = append(out, logic.AgentView{ID: id, Role: cfg.Role, Iteration: a.Iteration(), ClusterID: c.id})
		}
	}
	return out
}

// Boot spawns every agent in doc, subscribes the cluster's own control
// handler, and publishes ISSUE_OPENED with issueData as the payload —
// the sole external input that starts a cluster ("issue-intake").
func (c *Cluster) Boot(ctx context.Context, doc clusterconfig.Document, issueData map[string]any) error {
	c.subscribeControl()

	for _, cfg := range doc.Agents {
		if err := c.spawnAgent(cfg, 0); err != nil {
			return fmt.Errorf("orchestrator: boot agent %q: %w", cfg.ID, err)
		}
	}

	if _, err := c.bus.Publish(ctx, message.Message{
		ClusterID: c.id,
		Topic:     message.TopicIssueOpened,
		Sender:    message.SenderSystem,
		Receiver:  message.ReceiverBroadcast,
		Content:   message.Content{Data: issueData},
	}); err != nil {
		return err
	}
	c.settings.Metrics.RecordPublish(ctx, c.id, message.TopicIssueOpened)
	return nil
}

// Shutdown stops every agent and unsubscribes the control handler.
func (c *Cluster) Shutdown() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.agents))
	for id := range c.agents {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.stopAgent(id)
	}

	if c.unsubscribeOps != nil {
		c.unsubscribeOps()
	}
	if c.unsubscribeComplete != nil {
		c.unsubscribeComplete()
	}
}

func (c *Cluster) subscribeControl() {
	c.unsubscribeOps = c.bus.Subscribe(ledger.Filter{ClusterID: c.id, Topic: message.TopicClusterOperations}, c.handleOperations)
	c.unsubscribeComplete = c.bus.Subscribe(ledger.Filter{ClusterID: c.id, Topic: message.TopicClusterComplete}, c.handleComplete)
}

func (c *Cluster) handleComplete(m message.Message) {
	c.log.Info("cluster complete, shutting down agents", "signalled_by", m.Sender)
	c.Shutdown()
}

// spawnAgent builds and starts one agent, registering it under the
// role index. startIteration seeds the iteration counter (non-zero
// only during resume-from-ledger reconstruction).
func (c *Cluster) spawnAgent(cfg clusterconfig.AgentConfig, startIteration int) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	runner, err := c.runnerFactory(cfg.ResolvedProvider(c.settings.DefaultProvider))
	if err != nil {
		return fmt.Errorf("build task runner: %w", err)
	}

	a := agent.New(cfg.ID, cfg, c, c.bus, c.engine, runner, c.settings, c.log)
	if startIteration > 0 {
		a.SetIteration(startIteration)
	}

	c.mu.Lock()
	c.agents[cfg.ID] = a
	c.configs[cfg.ID] = cfg
	c.mu.Unlock()

	a.Start()
	return nil
}

func (c *Cluster) stopAgent(id string) {
	c.mu.Lock()
	a, ok := c.agents[id]
	if ok {
		delete(c.agents, id)
		delete(c.configs, id)
	}
	c.mu.Unlock()
	if ok {
		a.Stop()
	}
}
