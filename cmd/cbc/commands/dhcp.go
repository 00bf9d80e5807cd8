package commands

import (
	"github.com/openfroyo/cbc/pkg/assemble"
	"github.com/openfroyo/cbc/pkg/output"
	"github.com/spf13/cobra"
)

func newDHCPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dhcp",
		Short: "Generate dhcpd include files",
		Long: `Generate the ISC dhcpd include files for network installs.

  - hosts: one fixed-address reservation per built server
  - networks: one shared-network per build domain a local interface serves`,
	}

	cmd.AddCommand(newDHCPHostsCommand())
	cmd.AddCommand(newDHCPNetworksCommand())

	return cmd
}

func newDHCPHostsCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "Generate host reservations",
		Example: `  cbc dhcp hosts
  cbc dhcp hosts --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ctx, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			if _, err := e.openStore(ctx); err != nil {
				return err
			}
			w, err := e.writer(dryRun)
			if err != nil {
				return err
			}
			defer w.Close()

			g, err := e.generator(ctx, w, false)
			if err != nil {
				return err
			}
			report, err := g.DHCPHosts(ctx)
			return finishDHCP(cmd, w, report, err)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the file instead of writing it")
	return cmd
}

func newDHCPNetworksCommand() *cobra.Command {
	var (
		dryRun bool
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "networks",
		Short: "Generate shared-network declarations",
		Long: `Generate one shared-network declaration per network that serves a build
domain. Interfaces come from dhcp.interfaces, or from the host when none
are configured. Loopback and point-to-point interfaces are ignored.

Networks are deduplicated by network address; --strict also compares the
netmask.`,
		Example: `  cbc dhcp networks
  cbc dhcp networks --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ctx, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			ifaces, err := e.cfg.Interfaces()
			if err != nil {
				return err
			}
			opts := e.cfg.NetallocOptions()
			if cmd.Flags().Changed("strict") {
				opts.StrictKey = strict
			}

			if _, err := e.openStore(ctx); err != nil {
				return err
			}
			w, err := e.writer(dryRun)
			if err != nil {
				return err
			}
			defer w.Close()

			g, err := e.generator(ctx, w, false)
			if err != nil {
				return err
			}
			report, err := g.DHCPNetworks(ctx, ifaces, opts)
			return finishDHCP(cmd, w, report, err)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the file instead of writing it")
	cmd.Flags().BoolVar(&strict, "strict", false, "deduplicate by network and netmask")
	return cmd
}

func finishDHCP(cmd *cobra.Command, w output.Writer, report *assemble.Report, runErr error) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := printJSON(out, report); err != nil {
			return err
		}
		return runErr
	}
	printReport(out, report)
	if mem, ok := w.(*output.Memory); ok {
		printDocuments(out, mem)
	}
	return runErr
}
