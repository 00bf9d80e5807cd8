package telemetry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Logging.Output = filepath.Join(t.TempDir(), "cbc.log")
	cfg.Logging.Format = "json"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"bad exporter", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "jaeger" }, true},
		{"bad rate", func(c *Config) { c.Tracing.SamplingRate = 2 }, true},
		{"bad timeout", func(c *Config) { c.Tracing.ExportTimeout = "soon" }, true},
		{"no name", func(c *Config) { c.ServiceName = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoggerFields(t *testing.T) {
	cfg := testConfig(t)
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	zl := logger.NewComponentLogger("assemble").
		WithRunID("run-1").
		WithServer("web01").
		WithField("query", "locale").
		Zerolog()
	zl.Info().Msg("Generated")

	data, err := os.ReadFile(cfg.Logging.Output)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	for _, want := range []string{`"component":"assemble"`, `"run_id":"run-1"`, `"server":"web01"`, `"query":"locale"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("missing %s in %s", want, data)
		}
	}
}

func TestFromContextDefault(t *testing.T) {
	// must not panic without a logger in context
	zl := FromContext(context.Background()).Zerolog()
	zl.Info().Msg("discarded")
	if _, ok := LoggerFromContext(context.Background()); ok {
		t.Error("expected no logger in empty context")
	}
}

func TestMetricsRecord(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.RecordDocument("preseed", "success", 10*time.Millisecond)
	m.RecordDocument("preseed", "success", 20*time.Millisecond)
	m.RecordDocument("pxe", "failed", time.Millisecond)
	m.RecordUnresolvedToken("%ip")
	m.RecordQuery("locale")

	if got := testutil.ToFloat64(m.documentsGenerated.WithLabelValues("preseed", "success")); got != 2 {
		t.Errorf("expected 2 preseed documents, got %v", got)
	}
	if got := testutil.ToFloat64(m.documentsGenerated.WithLabelValues("pxe", "failed")); got != 1 {
		t.Errorf("expected 1 failed pxe document, got %v", got)
	}
	if got := testutil.ToFloat64(m.unresolvedTokens.WithLabelValues("%ip")); got != 1 {
		t.Errorf("expected 1 unresolved token, got %v", got)
	}
}

func TestMetricsDisabled(t *testing.T) {
	cfg := DefaultConfig().Metrics
	cfg.Enabled = false

	m, err := NewMetrics(cfg)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	// no-ops
	m.RecordDocument("preseed", "success", time.Second)
	m.RecordQuery("locale")
	if m.Registry() != nil {
		t.Error("disabled metrics should have no registry")
	}
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("WriteTextfile on disabled metrics: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	m.RecordDocument("kickstart", "success", time.Millisecond)

	path := filepath.Join(t.TempDir(), "cbc.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read textfile: %v", err)
	}
	if !strings.Contains(string(data), `cbc_documents_generated_total{kind="kickstart",status="success"} 1`) {
		t.Errorf("unexpected textfile:\n%s", data)
	}
}

func TestDocumentContext(t *testing.T) {
	tel, err := NewTelemetry(testConfig(t))
	if err != nil {
		t.Fatalf("NewTelemetry failed: %v", err)
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())
	ctx = WithRunContext(ctx, "run-1", "web01")

	dctx := WithDocumentContext(ctx, "pxe", "pxelinux.cfg/01-aa")
	EndDocumentContext(dctx, "pxe", "failed", errors.New("boom"))
	EndRunContext(ctx, nil)

	if got := testutil.ToFloat64(tel.Metrics.documentsGenerated.WithLabelValues("pxe", "failed")); got != 1 {
		t.Errorf("expected document to be recorded, got %v", got)
	}
}

func TestDocumentContextWithoutTelemetry(t *testing.T) {
	ctx := WithDocumentContext(context.Background(), "pxe", "x")
	if d := EndDocumentContext(ctx, "pxe", "success", nil); d < 0 {
		t.Errorf("negative duration %v", d)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug").String() != "debug" {
		t.Error("expected debug level")
	}
	if ParseLevel("nonsense").String() != "info" {
		t.Error("unknown levels should map to info")
	}
}
