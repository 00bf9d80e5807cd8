package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/openfroyo/cbc/pkg/stores"
	"github.com/openfroyo/cbc/pkg/stores/storetest"
	"github.com/rs/zerolog"
)

const serverID = uint64(7)

func newSearcher() *storetest.Searcher {
	return storetest.New().
		Add(stores.QueryBuildIP, serverID, stores.Row{stores.Uint(0x0a010203)}).
		Add(stores.QueryBuildHostname, serverID, stores.Row{stores.Text("web01")}).
		Add(stores.QueryBuildDomainName, serverID, stores.Row{stores.Text("example.com")}).
		Add(stores.QueryBuildFQDN, serverID, stores.Row{stores.Text("web01"), stores.Text("example.com")})
}

func TestResolve(t *testing.T) {
	r := New(newSearcher(), zerolog.Nop())

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"no tokens", "-v --force", "-v --force"},
		{"empty", "", ""},
		{"baseip", "%baseip", "10.1.2.0"},
		{"ip", "%ip", "10.1.2.3"},
		{"hostname", "%hostname", "web01"},
		{"domain", "%domain", "example.com"},
		{"fqdn", "%fqdn", "web01.example.com"},
		{"mixed", "-h %hostname -d %domain -b %baseip", "-h web01 -d example.com -b 10.1.2.0"},
		{"adjacent", "%hostname%domain", "web01example.com"},
		{"repeated", "%ip,%ip", "10.1.2.3,10.1.2.3"},
		{"unknown word", "100%sure %x", "100%sure %x"},
		{"trailing percent", "50%", "50%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), serverID, tt.template)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestResolveDoesNotRescanValues(t *testing.T) {
	s := storetest.New().
		Add(stores.QueryBuildHostname, serverID, stores.Row{stores.Text("%domain")})
	r := New(s, zerolog.Nop())

	got, err := r.Resolve(context.Background(), serverID, "%hostname")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "%domain" {
		t.Errorf("expected substituted value to be left alone, got %q", got)
	}
	if s.Calls(stores.QueryBuildDomainName) != 0 {
		t.Error("value was rescanned for tokens")
	}
}

func TestResolveUnresolved(t *testing.T) {
	r := New(newSearcher(), zerolog.Nop())

	_, err := r.Resolve(context.Background(), 99, "-h %hostname")
	if !engine.IsUnresolvedToken(err) {
		t.Fatalf("expected unresolved_token, got %v", err)
	}

	var be *engine.BuildError
	if !errors.As(err, &be) {
		t.Fatal("expected BuildError")
	}
	if be.Token != "%hostname" || be.Server != "99" || be.Query != "build-hostname" {
		t.Errorf("missing context: %+v", be)
	}
}

func TestResolveStoreError(t *testing.T) {
	boom := errors.New("locked")
	r := New(newSearcher().Fail(stores.QueryBuildIP, boom), zerolog.Nop())

	_, err := r.Resolve(context.Background(), serverID, "%ip")
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if engine.IsUnresolvedToken(err) {
		t.Error("store failure must not be classed as unresolved token")
	}
}

func TestResolveQueriesPerOccurrence(t *testing.T) {
	s := newSearcher()
	r := New(s, zerolog.Nop())

	if _, err := r.Resolve(context.Background(), serverID, "%ip %baseip %ip"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Calls(stores.QueryBuildIP); got != 3 {
		t.Errorf("expected 3 lookups, got %d", got)
	}
}

func TestFind(t *testing.T) {
	toks := Find("-h %hostname %nope -i %ip %fqdn")
	want := []string{"%hostname", "%ip", "%fqdn"}

	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(toks))
	}
	for i, tok := range toks {
		if tok.Literal() != want[i] {
			t.Errorf("token %d: got %s, want %s", i, tok.Literal(), want[i])
		}
	}
}

func TestTokenQueries(t *testing.T) {
	seen := map[string]bool{}
	for _, tok := range Tokens() {
		if seen[tok.Literal()] {
			t.Errorf("duplicate token %s", tok.Literal())
		}
		seen[tok.Literal()] = true
		if _, ok := stores.Lookup(tok.Query()); !ok {
			t.Errorf("%s reads unknown query", tok.Literal())
		}
	}
}
