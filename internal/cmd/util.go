package cmd

import (
	"encoding/json"
	"fmt"
	"os"
)

func readJSONObject(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s as JSON: %w", path, err)
	}
	return m, nil
}
