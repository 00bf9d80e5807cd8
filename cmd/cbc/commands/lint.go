package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/openfroyo/cbc/pkg/assemble"
	"github.com/openfroyo/cbc/pkg/policy"
	"github.com/openfroyo/cbc/pkg/telemetry"
	"github.com/spf13/cobra"
)

func newLintCommand() *cobra.Command {
	var (
		servers []string
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check servers against the build policies",
		Long: `Evaluate the builtin and configured Rego policies against the build
facts of each server. Without --server every built server is linted.

In enforcing mode the command fails when any error or critical finding is
reported. With --watch the configured policy paths are watched and the
servers are linted again whenever a policy file changes.`,
		Example: `  cbc lint
  cbc lint --server web01 --server db01
  cbc lint --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ctx, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			mode, err := e.cfg.PolicyMode()
			if err != nil {
				return err
			}
			store, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			eng, err := e.policies(ctx)
			if err != nil {
				return err
			}

			searcher := assemble.Instrument(store)
			a := assemble.New(searcher, e.cfg.AssembleOptions(), e.logger)
			if len(servers) == 0 {
				hosts, err := assemble.LoadDHCPHosts(ctx, searcher)
				if err != nil {
					return err
				}
				for _, h := range hosts {
					servers = append(servers, h.Name)
				}
			}

			out := cmd.OutOrStdout()
			run := func(ctx context.Context) error {
				results, err := lintServers(ctx, a, eng, e.tel.Metrics, servers)
				if err != nil {
					return err
				}
				if err := printLint(out, results); err != nil {
					return err
				}
				if mode != policy.ModeEnforcing {
					return nil
				}
				var errs []error
				for _, r := range results {
					errs = append(errs, r.Err())
				}
				return errors.Join(errs...)
			}

			if !watch {
				return run(ctx)
			}
			if len(e.cfg.Policy.Paths) == 0 {
				return fmt.Errorf("--watch needs policy.paths in the config")
			}
			if err := run(ctx); err != nil {
				e.logger.Warn().Err(err).Msg("Lint failed")
			}

			loader := policy.NewLoader(e.logger)
			err = loader.Watch(ctx, e.cfg.Policy.Paths, func(policies []policy.Policy) error {
				if err := eng.ReplaceCustomPolicies(ctx, policies); err != nil {
					return err
				}
				e.disablePolicies(eng)
				if err := run(ctx); err != nil {
					e.logger.Warn().Err(err).Msg("Lint failed")
				}
				return nil
			})
			if err != nil {
				return err
			}
			defer loader.StopWatching()

			e.logger.Info().Strs("paths", e.cfg.Policy.Paths).Msg("Watching policies")
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&servers, "server", "s", nil, "server to lint (repeatable)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "lint again when policy files change")

	return cmd
}

// lintServers evaluates every server and records its findings.
func lintServers(ctx context.Context, a *assemble.Assembler, eng *policy.Engine, metrics *telemetry.Metrics, servers []string) ([]*policy.Result, error) {
	results := make([]*policy.Result, 0, len(servers))
	for _, name := range servers {
		srv, err := a.Server(ctx, name)
		if err != nil {
			return nil, err
		}
		in, err := a.LintInput(ctx, srv)
		if err != nil {
			return nil, fmt.Errorf("failed to gather %s: %w", name, err)
		}
		res, err := eng.Evaluate(ctx, in)
		if err != nil {
			return nil, err
		}
		for _, v := range res.Violations {
			metrics.RecordPolicyFinding(v.Policy, string(v.Severity))
		}
		results = append(results, res)
	}
	return results, nil
}

func printLint(w io.Writer, results []*policy.Result) error {
	if jsonOutput {
		return printJSON(w, results)
	}
	for _, r := range results {
		if len(r.Violations) == 0 {
			fmt.Fprintf(w, "✓ %s\n", r.Server)
			continue
		}
		mark := "!"
		if !r.Allowed {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s: %d finding(s)\n", mark, r.Server, len(r.Violations))
		for _, v := range r.Violations {
			fmt.Fprintf(w, "    %s\n", v.String())
		}
	}
	return nil
}
