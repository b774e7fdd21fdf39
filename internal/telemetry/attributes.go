package telemetry

import "go.opentelemetry.io/otel/attribute"

func attrClusterID(id string) attribute.KeyValue { return attribute.String("cluster_id", id) }

func attrAgentID(id string) attribute.KeyValue { return attribute.String("agent_id", id) }

func attrTopic(topic string) attribute.KeyValue { return attribute.String("topic", topic) }

func attrSuccess(ok bool) attribute.KeyValue { return attribute.Bool("success", ok) }
