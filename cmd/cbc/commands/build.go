package commands

import (
	"fmt"
	"io"

	"github.com/openfroyo/cbc/pkg/assemble"
	"github.com/openfroyo/cbc/pkg/output"
	"github.com/spf13/cobra"
)

func newBuildCommand() *cobra.Command {
	var (
		servers     []string
		all         bool
		parallelism int
		docType     string
		dryRun      bool
		noLint      bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generate the install documents of servers",
		Long: `Generate the install documents of one or more servers.

Document types:
  - answer: preseed or kickstart, picked from the server's OS
  - preseed, kickstart: force one answer file dialect
  - script: the post-install host script
  - pxe: the pxelinux.cfg boot stanza
  - all: answer, script and pxe (default)

Each document is written under paths.root and, when remote is configured,
published over SFTP. A document that fails does not stop the others; the
command fails if any did.

Each server is linted before its answer file is written. In enforcing mode
error and critical findings block the answer file.

Several servers, or every built server with --all, are built concurrently
on --parallel workers.`,
		Example: `  # Build everything for a server
  cbc build --server web01

  # Build only the PXE stanza
  cbc build --server web01 --type pxe

  # Print the documents instead of writing them
  cbc build --server web01 --dry-run

  # Rebuild every server eight at a time
  cbc build --all --parallel 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(servers) == 0) == !all {
				return fmt.Errorf("exactly one of --server or --all is required")
			}
			kinds, err := assemble.ParseKinds(docType)
			if err != nil {
				return err
			}

			e, ctx, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			store, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			if all {
				hosts, err := assemble.LoadDHCPHosts(ctx, assemble.Instrument(store))
				if err != nil {
					return err
				}
				for _, h := range hosts {
					servers = append(servers, h.Name)
				}
			}

			w, err := e.writer(dryRun)
			if err != nil {
				return err
			}
			defer w.Close()

			g, err := e.generator(ctx, w, !noLint)
			if err != nil {
				return err
			}

			reports, buildErr := g.BuildAll(ctx, servers, kinds, parallelism)

			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := printJSON(out, reports); err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					printReport(out, r)
				}
			}
			if mem, ok := w.(*output.Memory); ok && !jsonOutput {
				printDocuments(out, mem)
			}

			return buildErr
		},
	}

	cmd.Flags().StringArrayVarP(&servers, "server", "s", nil, "server name (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "build every server with a build address")
	cmd.Flags().IntVarP(&parallelism, "parallel", "p", assemble.DefaultParallelism, "servers built at once")
	cmd.Flags().StringVarP(&docType, "type", "t", "all", "document type: answer|preseed|kickstart|script|pxe|all")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print documents instead of writing them")
	cmd.Flags().BoolVar(&noLint, "no-lint", false, "skip policy lint")

	return cmd
}

func printReport(w io.Writer, r *assemble.Report) {
	if r == nil {
		return
	}
	if r.Server != "" {
		fmt.Fprintf(w, "%s:\n", r.Server)
	}
	if r.Lint != nil {
		for _, v := range r.Lint.Violations {
			fmt.Fprintf(w, "! %s\n", v.String())
		}
	}
	for _, d := range r.Documents {
		if d.Err != nil {
			fmt.Fprintf(w, "✗ %-10s %v\n", d.Kind, d.Err)
			continue
		}
		fmt.Fprintf(w, "✓ %-10s %s (%d bytes)\n", d.Kind, d.Path, d.Bytes)
	}
}

func printDocuments(w io.Writer, mem *output.Memory) {
	for _, path := range mem.Order {
		fmt.Fprintf(w, "\n==> %s <==\n%s", path, mem.Files[path])
	}
}
