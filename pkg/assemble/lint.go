package assemble

import (
	"context"

	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/openfroyo/cbc/pkg/policy"
)

// LintInput gathers the facts of srv that lint policies check. A server
// whose domain name has no build domain row is linted without a domain.
func (a *Assembler) LintInput(ctx context.Context, srv Server) (*policy.Input, error) {
	f := a.Facts(srv)
	in := policy.NewInput(srv.Name)

	osInfo, err := f.OS(ctx)
	if err != nil {
		return nil, err
	}
	in.OS = policy.OSInput{
		Alias:   osInfo.Alias,
		Family:  string(osInfo.Family),
		Version: osInfo.Version,
		Arch:    osInfo.Arch,
	}

	scheme, err := f.Scheme(ctx)
	if err != nil {
		return nil, err
	}
	in.Scheme = &scheme

	nw, err := f.Network(ctx)
	if err != nil {
		return nil, err
	}
	in.SetIP(nw.IP)

	domain, err := LoadDomain(ctx, a.s, nw.Domain, a.logger)
	switch {
	case err == nil:
		in.SetDomain(domain)
	case engine.IsNoRecords(err):
		a.logger.Debug().Str("server", srv.Name).Str("domain", nw.Domain).Msg("No build domain row, linting without domain")
	default:
		return nil, err
	}

	if in.Packages, err = f.Packages(ctx); err != nil {
		return nil, err
	}
	if in.Scripts, err = f.ScriptArgs(ctx); err != nil {
		return nil, err
	}

	return in, nil
}
