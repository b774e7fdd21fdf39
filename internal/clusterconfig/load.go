package clusterconfig

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads and parses the cluster config document at path. It does
// not validate semantics — see package validator for that — only that
// the JSON is well-formed and structurally decodes.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("clusterconfig: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a cluster config document from raw JSON bytes.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("clusterconfig: parse document: %w", err)
	}
	if len(doc.Agents) == 0 {
		return nil, fmt.Errorf("clusterconfig: document has no agents")
	}
	return &doc, nil
}
