package assemble

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/openfroyo/cbc/pkg/netalloc"
	"github.com/openfroyo/cbc/pkg/output"
	"github.com/openfroyo/cbc/pkg/policy"
	"github.com/openfroyo/cbc/pkg/stores"
	"github.com/openfroyo/cbc/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

type memoryAuditor struct {
	mu      sync.Mutex
	entries []*stores.AuditEntry
}

func (m *memoryAuditor) CreateAuditEntry(_ context.Context, entry *stores.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryAuditor) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

type stubLinter struct {
	result *policy.Result
}

func (s stubLinter) Evaluate(_ context.Context, in *policy.Input) (*policy.Result, error) {
	r := *s.result
	r.Server = in.Server
	return &r, nil
}

func testTelemetry(t *testing.T) (*telemetry.Telemetry, context.Context) {
	t.Helper()
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Output = filepath.Join(t.TempDir(), "cbc.log")
	cfg.Logging.Format = "json"
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("NewTelemetry failed: %v", err)
	}
	return tel, tel.WithContext(context.Background())
}

func TestGeneratorBuild(t *testing.T) {
	mem := output.NewMemory()
	auditor := &memoryAuditor{}
	s := fixture(t, debian12)
	tel, ctx := testTelemetry(t)

	eng, err := policy.NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	g := NewGenerator(GeneratorConfig{
		Searcher: s,
		Writer:   mem,
		Auditor:  auditor,
		Linter:   eng,
		Logger:   zerolog.Nop(),
	})

	report, err := g.Build(ctx, testServer, ServerKinds)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if report.RunID == "" {
		t.Error("expected a run id")
	}
	if report.Failed() != 0 {
		t.Errorf("expected no failures, got %d", report.Failed())
	}
	if report.Lint == nil {
		t.Error("expected a lint result")
	}

	wantPaths := []string{
		"web/web01.cfg",
		"web/scripts/web01.sh",
		"tftp/pxelinux.cfg/01-aa-bb-cc-00-11-22",
	}
	if strings.Join(mem.Order, ",") != strings.Join(wantPaths, ",") {
		t.Errorf("unexpected paths %v, want %v", mem.Order, wantPaths)
	}
	if report.Documents[0].Kind != KindPreseed {
		t.Errorf("expected the answer document to report as preseed, got %s", report.Documents[0].Kind)
	}

	actions := auditor.actions()
	if len(actions) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(actions))
	}
	for _, a := range actions {
		if a != stores.AuditDocumentGenerated {
			t.Errorf("unexpected audit action %s", a)
		}
	}

	reg := tel.Metrics.Registry()
	if n, err := testutil.GatherAndCount(reg, "cbc_documents_generated_total"); err != nil || n != 3 {
		t.Errorf("expected 3 document series, got %d (%v)", n, err)
	}
	if n, err := testutil.GatherAndCount(reg, "cbc_unresolved_tokens_total"); err != nil || n != 1 {
		t.Errorf("expected 1 unresolved token series, got %d (%v)", n, err)
	}
	if n, err := testutil.GatherAndCount(reg, "cbc_store_queries_total"); err != nil || n == 0 {
		t.Errorf("expected store queries to be counted, got %d (%v)", n, err)
	}
}

func TestGeneratorLogsRunContext(t *testing.T) {
	s := fixture(t, debian12)
	tel, ctx := testTelemetry(t)
	g := NewGenerator(GeneratorConfig{Searcher: s, Writer: output.NewMemory(), Logger: zerolog.Nop()})

	report, err := g.Build(ctx, testServer, ServerKinds)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	data, err := os.ReadFile(tel.Config.Logging.Output)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}

	written := map[string]bool{}
	var complete bool
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		switch entry["message"] {
		case "Document written":
			if entry["run_id"] != report.RunID || entry["server"] != testServer {
				t.Errorf("document line missing run fields: %s", line)
			}
			if entry["component"] != "generator" {
				t.Errorf("expected generator component: %s", line)
			}
			doc, _ := entry["document"].(string)
			written[doc] = true
		case "Build run complete":
			complete = entry["run_id"] == report.RunID
		}
	}
	for _, kind := range ServerKinds {
		if !written[string(kind)] {
			t.Errorf("no log line carries document=%s:\n%s", kind, data)
		}
	}
	if !complete {
		t.Errorf("run completion not logged with run id %s", report.RunID)
	}
}

func TestGeneratorContinuesAfterFailure(t *testing.T) {
	s := fixture(t, debian12)
	s.Fail(stores.QueryScriptArgs, errors.New("disk I/O error"))

	mem := output.NewMemory()
	auditor := &memoryAuditor{}
	g := NewGenerator(GeneratorConfig{Searcher: s, Writer: mem, Auditor: auditor, Logger: zerolog.Nop()})

	report, err := g.Build(context.Background(), testServer, ServerKinds)
	if err == nil || !strings.Contains(err.Error(), "disk I/O error") {
		t.Fatalf("expected the script failure, got %v", err)
	}
	if report.Failed() != 1 {
		t.Errorf("expected 1 failed document, got %d", report.Failed())
	}
	if len(mem.Files) != 2 {
		t.Errorf("expected answer and pxe files, got %v", mem.Order)
	}

	actions := auditor.actions()
	if len(actions) != 3 || actions[1] != stores.AuditDocumentFailed {
		t.Errorf("unexpected audit actions %v", actions)
	}
}

func TestGeneratorEnforcingLint(t *testing.T) {
	blocking := &policy.Result{
		Allowed: false,
		Violations: []policy.Violation{
			{Policy: "partition-root", Message: "scheme has no / partition", Severity: policy.SeverityError},
		},
	}

	tests := []struct {
		name      string
		mode      policy.Mode
		wantFiles int
		wantErr   bool
	}{
		{"advisory writes everything", policy.ModeAdvisory, 3, false},
		{"enforcing blocks the answer file", policy.ModeEnforcing, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := output.NewMemory()
			g := NewGenerator(GeneratorConfig{
				Searcher:   fixture(t, debian12),
				Writer:     mem,
				Linter:     stubLinter{result: blocking},
				PolicyMode: tt.mode,
				Logger:     zerolog.Nop(),
			})

			report, err := g.Build(context.Background(), testServer, ServerKinds)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Build error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !engine.IsInvalid(err) {
				t.Errorf("expected invalid error, got %v", err)
			}
			if len(mem.Files) != tt.wantFiles {
				t.Errorf("expected %d files, got %v", tt.wantFiles, mem.Order)
			}
			if report.Lint == nil || len(report.Lint.Violations) != 1 {
				t.Errorf("expected the lint result in the report")
			}
		})
	}
}

func TestGeneratorUnknownServer(t *testing.T) {
	mem := output.NewMemory()
	g := NewGenerator(GeneratorConfig{Searcher: fixture(t, debian12), Writer: mem, Logger: zerolog.Nop()})

	_, err := g.Build(context.Background(), "ghost", ServerKinds)
	if !engine.IsNoRecords(err) {
		t.Fatalf("expected no_records, got %v", err)
	}
	if len(mem.Files) != 0 {
		t.Errorf("expected nothing written, got %v", mem.Order)
	}
}

func TestGeneratorDHCP(t *testing.T) {
	s := fixture(t, debian12)
	s.Add(stores.QueryDHCPHosts, nil,
		stores.Row{stores.Text("web01"), stores.Text("aa:bb:cc:00:11:22"), stores.Uint(ip(t, "10.0.0.10")), stores.Text("example.com")},
	)
	s.Add(stores.QueryBuildDomains, nil, domainRow(t, 3, "example.com", "10.0.0.10", "10.0.0.50"))

	mem := output.NewMemory()
	g := NewGenerator(GeneratorConfig{
		Searcher: s,
		Writer:   mem,
		Paths:    Paths{Web: "w", TFTP: "t", DHCP: "etc/dhcp"},
		Logger:   zerolog.Nop(),
	})

	if _, err := g.DHCPHosts(context.Background()); err != nil {
		t.Fatalf("DHCPHosts failed: %v", err)
	}
	eth0, err := netalloc.ParseInterface("eth0", "10.0.0.5/24")
	if err != nil {
		t.Fatalf("ParseInterface failed: %v", err)
	}
	if _, err := g.DHCPNetworks(context.Background(), []netalloc.Interface{eth0}, netalloc.Options{}); err != nil {
		t.Fatalf("DHCPNetworks failed: %v", err)
	}

	if _, ok := mem.Files["etc/dhcp/dhcpd.hosts"]; !ok {
		t.Errorf("missing hosts file, have %v", mem.Order)
	}
	if !strings.Contains(string(mem.Files["etc/dhcp/dhcpd.networks"]), "shared-network example.com") {
		t.Errorf("unexpected networks file %q", mem.Files["etc/dhcp/dhcpd.networks"])
	}
}

func TestPathsFor(t *testing.T) {
	p := DefaultPaths()
	tests := []struct {
		doc  Document
		want string
	}{
		{Document{Kind: KindKickstart, Name: "a.cfg"}, "web/a.cfg"},
		{Document{Kind: KindScript, Name: "a.sh"}, "web/scripts/a.sh"},
		{Document{Kind: KindPXE, Name: "01-aa"}, "tftp/pxelinux.cfg/01-aa"},
		{Document{Kind: KindDHCPHosts, Name: DHCPHostsFile}, "dhcp/dhcpd.hosts"},
	}
	for _, tt := range tests {
		if got := p.For(&tt.doc); got != tt.want {
			t.Errorf("For(%s) = %s, want %s", tt.doc.Kind, got, tt.want)
		}
	}
}
