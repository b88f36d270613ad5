package main

import (
	"context"
	"log/slog"
	"opacbridge/cmd/opac-cli/cmd"
	"opacbridge/internal/components/telemetry"
	"opacbridge/pkg/osutil"
)

func main() {
	// Ctrl+C cancels a running reservation or renewal
	ctx := osutil.SignalContext(context.Background())
	otlp, err := telemetry.SetupOtlpFromEnv(ctx, "opac-cli")
	if err != nil {
		slog.Warn("tracing disabled", "err", err)
	}
	defer otlp.Shutdown(context.Background())

	cmd.ExecuteContext(ctx)
}
