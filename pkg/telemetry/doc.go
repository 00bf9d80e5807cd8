// Package telemetry provides observability for cbc: structured logging
// (zerolog), tracing (OpenTelemetry) and metrics (Prometheus).
//
// # Usage
//
// Initialize telemetry at startup:
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("assemble")
//	logger = logger.WithRunID(runID).WithServer("web01")
//	zl := logger.Zerolog()
//	zl.Info().Msg("Generating preseed")
//
// Packages that only need a zerolog.Logger take logger.Zerolog(). Code
// running inside a build run logs through the logger WithRunContext and
// WithDocumentContext place in the context:
//
//	if l, ok := telemetry.LoggerFromContext(ctx); ok {
//	    zl = l.Zerolog()
//	}
//
// # Build runs
//
// A build run wraps every document it produces:
//
//	ctx = telemetry.WithRunContext(ctx, runID, server)
//	defer telemetry.EndRunContext(ctx, err)
//
//	dctx := telemetry.WithDocumentContext(ctx, "preseed", path)
//	// assemble the document
//	telemetry.EndDocumentContext(dctx, "preseed", "success", nil)
//
// EndDocumentContext records documents_generated_total and
// document_duration_seconds.
//
// # Metrics
//
// All metrics use the configured namespace (default "cbc"):
//
//   - documents_generated_total{kind,status}
//   - document_duration_seconds{kind}
//   - unresolved_tokens_total{token}
//   - store_queries_total{query}
//   - ip_assignments_total{status}
//   - policy_findings_total{rule,severity}
//
// A CLI run is short-lived, so metrics are written to a node-exporter
// textfile on Shutdown when metrics.textfile_path is set. `cbc metrics
// serve` exposes the same registry over HTTP.
package telemetry
