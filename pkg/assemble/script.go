package assemble

import (
	"context"
	"errors"

	"github.com/openfroyo/cbc/pkg/engine"
)

// HostScript assembles the post-install script the answer file runs. Each
// script argument row becomes a fetch, chmod and run triple. A row whose
// template does not resolve is left out and reported through
// Options.OnUnresolved; the rest of the script is still built.
func (a *Assembler) HostScript(ctx context.Context, srv Server) (*Document, error) {
	f := a.Facts(srv)

	bt, err := f.BuildType(ctx)
	if err != nil {
		return nil, err
	}
	args, err := f.ScriptArgs(ctx)
	if err != nil {
		return nil, err
	}

	buf := engine.NewBuffer(0)
	buf.Append("#!/bin/sh\n")
	buf.Append("#\n")
	buf.Appendf("# Post-install script for %s\n", srv.Name)
	buf.Append("#\n\n")
	buf.Append("cd /root\n")

	for _, arg := range args {
		line, err := a.resolver.Resolve(ctx, srv.ID, arg.Template)
		if err != nil {
			var be *engine.BuildError
			if !errors.As(err, &be) || be.Class != engine.ErrorClassUnresolvedToken {
				return nil, err
			}
			be.WithServer(srv.Name)
			a.logger.Warn().
				Err(err).
				Str("server", srv.Name).
				Str("script", arg.Script).
				Uint64("sequence", arg.Sequence).
				Str("token", be.Token).
				Msg("Dropping script line with unresolved placeholder")
			if a.opts.OnUnresolved != nil {
				a.opts.OnUnresolved(ctx, be)
			}
			continue
		}

		buf.Appendf("wget %s\n", scriptURL(bt, arg.Script))
		buf.Appendf("chmod 755 %s\n", arg.Script)
		buf.Appendf("./%s %s >> %s.log 2>&1\n", arg.Script, line, arg.Script)
	}

	return &Document{Kind: KindScript, Name: srv.Name + ".sh", Buffer: buf}, nil
}
