package assemble

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/openfroyo/cbc/pkg/netalloc"
	"github.com/openfroyo/cbc/pkg/stores"
	"github.com/openfroyo/cbc/pkg/telemetry"
	"github.com/rs/zerolog"
)

// IPStore is the part of the store an address assignment needs.
type IPStore interface {
	stores.Searcher
	AssignBuildIP(ctx context.Context, ip *stores.BuildIP) error
	CreateAuditEntry(ctx context.Context, entry *stores.AuditEntry) error
}

// AssignRequest names the server and domain of an assignment. Hostname
// defaults to the server name.
type AssignRequest struct {
	Server   string
	Domain   string
	Hostname string
	Actor    string
}

// AssignIP gives server the lowest free address of its build domain and
// records it. Exhausted domains fail with a network range error.
func AssignIP(ctx context.Context, s IPStore, req AssignRequest, logger zerolog.Logger) (ip *stores.BuildIP, err error) {
	if l, ok := telemetry.LoggerFromContext(ctx); ok {
		logger = l.NewComponentLogger("ipassign").WithServer(req.Server).WithDomain(req.Domain).Zerolog()
	} else {
		logger = logger.With().Str("component", "ipassign").Str("server", req.Server).Str("domain", req.Domain).Logger()
	}

	tel := telemetry.FromTelemetryContext(ctx)
	defer func() {
		if tel == nil {
			return
		}
		status := "assigned"
		switch {
		case engine.IsNetworkRangeExhausted(err):
			status = "exhausted"
		case err != nil:
			status = "error"
		}
		tel.Metrics.RecordIPAssignment(status)
	}()

	q := Instrument(s)
	srv, err := LookupServer(ctx, q, req.Server, logger)
	if err != nil {
		return nil, err
	}
	domain, err := LoadDomain(ctx, q, req.Domain, logger)
	if err != nil {
		return nil, err
	}
	used, err := LoadDomainIPs(ctx, q, domain.ID)
	if err != nil {
		return nil, err
	}
	addr, err := netalloc.NextFreeIP(domain, used)
	if err != nil {
		return nil, err
	}

	hostname := req.Hostname
	if hostname == "" {
		hostname = srv.Name
	}
	ip = &stores.BuildIP{
		ServerID:   srv.ID,
		DomainID:   domain.ID,
		IP:         addr,
		Hostname:   hostname,
		DomainName: domain.Name,
	}
	if err := s.AssignBuildIP(ctx, ip); err != nil {
		return nil, fmt.Errorf("failed to assign %s to %s: %w", engine.IPv4String(addr), srv.Name, err)
	}

	logger.Info().
		Str("ip", engine.IPv4String(addr)).
		Int("used", len(used)).
		Msg("Build IP assigned")

	auditIP(ctx, s, req.Actor, srv.Name, ip, logger)
	return ip, nil
}

func auditIP(ctx context.Context, s IPStore, actor, server string, ip *stores.BuildIP, logger zerolog.Logger) {
	if actor == "" {
		actor = "cbc"
	}
	raw, err := json.Marshal(map[string]any{
		"domain":   ip.DomainName,
		"hostname": ip.Hostname,
		"ip":       engine.IPv4String(ip.IP),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to encode audit details")
		return
	}
	details := string(raw)
	addr := engine.IPv4String(ip.IP)
	entry := &stores.AuditEntry{
		Action:    stores.AuditIPAssigned,
		Actor:     actor,
		TargetID:  &server,
		Details:   &details,
		IPAddress: &addr,
	}
	if err := s.CreateAuditEntry(ctx, entry); err != nil {
		logger.Warn().Err(err).Msg("Failed to write audit entry")
	}
}
