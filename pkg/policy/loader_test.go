package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testRego = `# Mounts under /srv need their own volume.
# severity: error

package site.srv

import rego.v1

deny contains "srv must be a logical volume" if {
	some p in input.scheme.partitions
	p.mount_point == "/srv"
	object.get(p, "logical_volume", "") == ""
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
}

func TestLoadFromFile_Rego(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))

	policyFile := filepath.Join(t.TempDir(), "srv-volume.rego")
	writeFile(t, policyFile, testRego)

	policy, err := loader.loadFromFile(policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "srv-volume" {
		t.Errorf("Expected name 'srv-volume', got '%s'", policy.Name)
	}
	if policy.Description != "Mounts under /srv need their own volume." {
		t.Errorf("Unexpected description %q", policy.Description)
	}
	if policy.Severity != SeverityError {
		t.Errorf("Expected severity error, got %s", policy.Severity)
	}
	if policy.Rego != testRego {
		t.Error("Rego content doesn't match")
	}
	if !policy.Enabled || policy.Builtin {
		t.Error("Loaded policy should be enabled and not built-in")
	}
	if policy.Source != policyFile {
		t.Errorf("Expected source %s, got %s", policyFile, policy.Source)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
	dir := t.TempDir()

	tests := []struct {
		name        string
		content     string
		wantName    string
		wantEnabled bool
		wantSev     Severity
	}{
		{
			name:        "defaults",
			content:     `{"rego": "package a\n"}`,
			wantName:    "defaults",
			wantEnabled: true,
			wantSev:     SeverityWarning,
		},
		{
			name:        "explicit",
			content:     `{"name": "custom", "severity": "critical", "enabled": false, "builtin": true, "rego": "package b\n"}`,
			wantName:    "custom",
			wantEnabled: false,
			wantSev:     SeverityCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			writeFile(t, path, tt.content)

			policy, err := loader.loadFromFile(path)
			if err != nil {
				t.Fatalf("Failed to load policy: %v", err)
			}
			if policy.Name != tt.wantName {
				t.Errorf("Expected name %s, got %s", tt.wantName, policy.Name)
			}
			if policy.Enabled != tt.wantEnabled {
				t.Errorf("Expected enabled=%v, got %v", tt.wantEnabled, policy.Enabled)
			}
			if policy.Severity != tt.wantSev {
				t.Errorf("Expected severity %s, got %s", tt.wantSev, policy.Severity)
			}
			if policy.Builtin {
				t.Error("Files can never load built-in policies")
			}
		})
	}
}

func TestLoadFromPaths_Directory(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "a.rego"), "package a\n")
	writeFile(t, filepath.Join(dir, "nested", "b.rego"), "package b\n")
	writeFile(t, filepath.Join(dir, "nested", "c.json"), `{"name": "c", "rego": "package c\n"}`)
	writeFile(t, filepath.Join(dir, "README.md"), "not a policy")
	writeFile(t, filepath.Join(dir, "bad.json"), "{")

	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Failed to load policies: %v", err)
	}

	if len(policies) != 3 {
		t.Fatalf("Expected 3 policies, got %d", len(policies))
	}
	names := map[string]bool{}
	for _, p := range policies {
		names[p.Name] = true
	}
	for _, want := range []string{"a", "b", "c"} {
		if !names[want] {
			t.Errorf("Expected policy %s to be loaded", want)
		}
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "test.txt"), "not a policy")
	writeFile(t, filepath.Join(dir, "test.json"), "invalid json")

	if _, err := loader.loadFromFile(filepath.Join(dir, "test.txt")); err == nil {
		t.Error("Expected error for unsupported file type")
	}
	if _, err := loader.loadFromFile(filepath.Join(dir, "test.json")); err == nil {
		t.Error("Expected error for invalid JSON")
	}
	if _, err := loader.LoadFromPaths(context.Background(), []string{"/nonexistent/path"}); err == nil {
		t.Error("Expected error for non-existent path")
	}
}

func TestClearCache(t *testing.T) {
	loader := NewLoader(zerolog.New(nil).Level(zerolog.Disabled))

	policyFile := filepath.Join(t.TempDir(), "test.rego")
	writeFile(t, policyFile, "package test\n")

	if _, err := loader.loadFromFile(policyFile); err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if len(loader.cache) != 1 {
		t.Errorf("Expected 1 cache entry, got %d", len(loader.cache))
	}

	loader.ClearCache()
	if len(loader.cache) != 0 {
		t.Errorf("Expected 0 cache entries after clear, got %d", len(loader.cache))
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantDesc string
		wantSev  Severity
	}{
		{"none", "package x\n", "", SeverityWarning},
		{"multi line", "# one\n# two\n\npackage x\n# later\n", "one two", SeverityWarning},
		{"severity only", "# severity: info\npackage x\n", "", SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, sev := parseHeader(tt.content)
			if desc != tt.wantDesc {
				t.Errorf("Expected description %q, got %q", tt.wantDesc, desc)
			}
			if sev != tt.wantSev {
				t.Errorf("Expected severity %s, got %s", tt.wantSev, sev)
			}
		})
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)
	loader.reloadDelay = 20 * time.Millisecond

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "first.rego"), "package first\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan []Policy, 4)
	err := loader.Watch(ctx, []string{dir}, func(policies []Policy) error {
		reloaded <- policies
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to watch: %v", err)
	}

	writeFile(t, filepath.Join(dir, "second.rego"), "package second\n")

	select {
	case policies := <-reloaded:
		if len(policies) != 2 {
			t.Errorf("Expected 2 policies after reload, got %d", len(policies))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for reload")
	}
}

func TestLoadPolicies_HeaderSeverity(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "srv.rego"), testRego)

	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("Failed to load policies: %v", err)
	}

	p, err := eng.GetPolicy("srv")
	if err != nil {
		t.Fatalf("Expected srv policy: %v", err)
	}
	if p.Severity != SeverityError {
		t.Errorf("Expected header severity error, got %s", p.Severity)
	}
}
