package commands

import (
	"fmt"

	"github.com/openfroyo/cbc/pkg/assemble"
	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/spf13/cobra"
)

func newIPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ip",
		Short: "Manage build addresses",
	}
	cmd.AddCommand(newIPAssignCommand())
	return cmd
}

func newIPAssignCommand() *cobra.Command {
	var (
		server   string
		domain   string
		hostname string
		actor    string
	)

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Give a server the next free address of a build domain",
		Long: `Pick the lowest address of the build domain's range that no server uses
and record it as the server's build address. The assignment is written to
the audit log.`,
		Example: `  cbc ip assign --server web01 --domain example.com
  cbc ip assign --server web01 --domain example.com --hostname www`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ctx, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			store, err := e.openStore(ctx)
			if err != nil {
				return err
			}

			ip, err := assemble.AssignIP(ctx, store, assemble.AssignRequest{
				Server:   server,
				Domain:   domain,
				Hostname: hostname,
				Actor:    actor,
			}, e.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, ip)
			}
			fmt.Fprintf(out, "✓ %s: %s (%s)\n", server, engine.IPv4String(ip.IP), domain)
			return nil
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "", "server name")
	cmd.Flags().StringVarP(&domain, "domain", "d", "", "build domain name")
	cmd.Flags().StringVar(&hostname, "hostname", "", "hostname to record (defaults to the server name)")
	cmd.Flags().StringVar(&actor, "actor", "", "name recorded in the audit log")
	_ = cmd.MarkFlagRequired("server")
	_ = cmd.MarkFlagRequired("domain")

	return cmd
}
