package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/orc-run/orc/internal/clusterconfig"
	"github.com/orc-run/orc/internal/message"
)

// handleOperations applies a conductor's CLUSTER_OPERATIONS message:
// spawn_agent, retire_agent, and update_trigger, each under the
// cluster's single-writer role-index lock (supplemental
// feature 4). Malformed operations are logged and skipped rather than
// aborting the whole batch, since later operations in the same message
// are independent of earlier ones.
func (c *Cluster) handleOperations(m message.Message) {
	if m.Content.Data == nil {
		return
	}
	opsRaw, ok := m.Content.Data["operations"]
	if !ok {
		return
	}
	ops, ok := opsRaw.([]any)
	if !ok {
		c.log.Warn("CLUSTER_OPERATIONS operations is not an array")
		return
	}

	for i, raw := range ops {
		op, ok := raw.(map[string]any)
		if !ok {
			c.log.Warn("CLUSTER_OPERATIONS operation is not an object", "index", i)
			continue
		}
		if err := c.applyOperation(op); err != nil {
			c.log.Error("CLUSTER_OPERATIONS operation failed", "index", i, "err", err)
		}
	}
}

func (c *Cluster) applyOperation(op map[string]any) error {
	action, _ := op["action"].(string)
	switch action {
	case "spawn_agent":
		return c.applySpawnAgent(op)
	case "retire_agent":
		id, _ := op["id"].(string)
		if id == "" {
			return fmt.Errorf("retire_agent missing id")
		}
		c.stopAgent(id)
		return nil
	case "update_trigger":
		return c.applyUpdateTrigger(op)
	default:
		return fmt.Errorf("unknown operation action %q", action)
	}
}

func (c *Cluster) applySpawnAgent(op map[string]any) error {
	cfgRaw, ok := op["config"]
	if !ok {
		return fmt.Errorf("spawn_agent missing config")
	}
	b, err := json.Marshal(cfgRaw)
	if err != nil {
		return fmt.Errorf("marshal spawn_agent config: %w", err)
	}
	var cfg clusterconfig.AgentConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return fmt.Errorf("unmarshal spawn_agent config: %w", err)
	}
	return c.spawnAgent(cfg, 0)
}

func (c *Cluster) applyUpdateTrigger(op map[string]any) error {
	id, _ := op["id"].(string)
	if id == "" {
		return fmt.Errorf("update_trigger missing id")
	}
	triggersRaw, ok := op["triggers"]
	if !ok {
		return fmt.Errorf("update_trigger missing triggers")
	}
	b, err := json.Marshal(triggersRaw)
	if err != nil {
		return fmt.Errorf("marshal update_trigger triggers: %w", err)
	}
	var triggers []clusterconfig.Trigger
	if err := json.Unmarshal(b, &triggers); err != nil {
		return fmt.Errorf("unmarshal update_trigger triggers: %w", err)
	}

	c.mu.Lock()
	a, ok := c.agents[id]
	cfg := c.configs[id]
	cfg.Triggers = triggers
	if ok {
		c.configs[id] = cfg
	}
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("update_trigger: unknown agent %q", id)
	}
	a.UpdateTriggers(triggers)
	return nil
}
