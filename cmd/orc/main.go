// Command orc runs, inspects, and resumes multi-agent clusters.
package main

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/orc-run/orc/internal/cmd"
)

func main() {
	shutdown := setupTelemetry()
	defer shutdown()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "orc:", err)
		os.Exit(1)
	}
}

// setupTelemetry installs a process-wide metric provider so any
// cluster run that enables telemetry in its settings has a real
// provider behind internal/telemetry's global lookups, instead of the
// otel default no-op. The provider is built without any exporting
// reader (OTLP, Prometheus), so recorded metrics are not exported;
// internal/telemetry only ever consumes whatever provider is installed
// here.
func setupTelemetry() func() {
	provider := metric.NewMeterProvider()
	otel.SetMeterProvider(provider)
	return func() {
		_ = provider.Shutdown(context.Background())
	}
}
