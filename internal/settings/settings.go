// Package settings loads the operator-level configuration that sits
// above any one cluster config: where the ledger lives, whether
// telemetry is recorded, and the defaults (provider, log level) the CLI
// falls back to when a flag is omitted.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Settings is the parsed contents of orc.toml.
type Settings struct {
	Ledger    LedgerSettings    `toml:"ledger"`
	Defaults  DefaultSettings   `toml:"defaults"`
	Telemetry TelemetrySettings `toml:"telemetry"`
}

// LedgerSettings selects and configures the ledger backend.
type LedgerSettings struct {
	// Backend is "file" or "sql". Empty defaults to "file".
	Backend string `toml:"backend"`
	// Path is the file-store directory when Backend is "file".
	Path string `toml:"path"`
	// DSN is the SQL data source name when Backend is "sql".
	DSN string `toml:"dsn"`
}

// DefaultSettings fills in CLI flags the operator never wants to type.
type DefaultSettings struct {
	Provider string `toml:"provider"`
	LogLevel string `toml:"log_level"`
}

// TelemetrySettings controls whether orc records OpenTelemetry metrics.
// Enabled gates construction of the metrics recorder; OTLPEndpoint is
// parsed but nothing reads it, and no exporter is configured.
type TelemetrySettings struct {
	Enabled      bool   `toml:"enabled"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

// defaultLedgerPath is used when Settings.Ledger.Path is empty and
// Backend is "file" (or unset).
const defaultLedgerPath = ".orc/ledger"

// Load reads path, applying defaults for every field the file omits or
// that is itself omitted. A missing file is not an error: the zero
// Settings, defaulted, is returned instead.
func Load(path string) (Settings, error) {
	var s Settings
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &s); err != nil {
				return Settings{}, fmt.Errorf("settings: parsing %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Settings{}, fmt.Errorf("settings: reading %s: %w", path, err)
		}
	}
	applyDefaults(&s)
	return s, nil
}

func applyDefaults(s *Settings) {
	if s.Ledger.Backend == "" {
		s.Ledger.Backend = "file"
	}
	if s.Ledger.Backend == "file" && s.Ledger.Path == "" {
		s.Ledger.Path = defaultLedgerPath
	}
	if s.Defaults.LogLevel == "" {
		s.Defaults.LogLevel = "info"
	}
}

// DefaultPath returns the conventional orc.toml location: $ORC_SETTINGS
// if set, else ./orc.toml.
func DefaultPath() string {
	if env := os.Getenv("ORC_SETTINGS"); env != "" {
		return env
	}
	return filepath.Join(".", "orc.toml")
}
