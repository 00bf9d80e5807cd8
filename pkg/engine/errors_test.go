package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestBuildErrorMessage(t *testing.T) {
	err := NewUnresolvedTokenError("%ip", "build-ip", "web01", nil)

	msg := err.Error()
	for _, want := range []string{"unresolved_token", "server=web01", "query=build-ip", "token=%ip"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestBuildErrorIs(t *testing.T) {
	err := fmt.Errorf("preseed: %w", NewNoRecordsError("locale", "web01"))

	if !errors.Is(err, ErrNoRecords) {
		t.Error("expected errors.Is to match no_records")
	}
	if errors.Is(err, ErrUnresolvedToken) {
		t.Error("unexpected match on unresolved_token")
	}
	if !IsNoRecords(err) {
		t.Error("expected IsNoRecords")
	}
	if ClassOf(err) != ErrorClassNoRecords {
		t.Errorf("expected class no_records, got %s", ClassOf(err))
	}
	if ClassOf(errors.New("plain")) != "" {
		t.Error("expected empty class for plain error")
	}
}

func TestBuildErrorUnwrap(t *testing.T) {
	cause := errors.New("zero rows")
	err := NewUnresolvedTokenError("%fqdn", "build-fqdn", "7", cause)

	if !errors.Is(err, cause) {
		t.Error("expected cause in chain")
	}
	if !IsUnresolvedToken(err) {
		t.Error("expected IsUnresolvedToken")
	}
}

func TestBuildErrorContext(t *testing.T) {
	err := NewNetworkRangeExhaustedError("example.com").WithServer("db01").WithQuery("domain-ips")

	if !IsNetworkRangeExhausted(err) {
		t.Fatal("expected network_range_exhausted")
	}
	if err.Domain != "example.com" || err.Server != "db01" || err.Query != "domain-ips" {
		t.Errorf("context not set: %+v", err)
	}
}
