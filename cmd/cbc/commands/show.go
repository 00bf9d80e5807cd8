package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/openfroyo/cbc/pkg/assemble"
	"github.com/openfroyo/cbc/pkg/engine"
	"github.com/openfroyo/cbc/pkg/partition"
	"github.com/spf13/cobra"
)

func newShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show build database records",
	}
	cmd.AddCommand(newShowPartitionsCommand())
	return cmd
}

func newShowPartitionsCommand() *cobra.Command {
	var (
		scheme string
		server string
		render string
	)

	cmd := &cobra.Command{
		Use:   "partitions",
		Short: "Show a partition scheme",
		Long: `Show the partitions of a scheme, by scheme name or through the scheme a
server uses. --render prints the installer directives the scheme compiles
to instead of the table.`,
		Example: `  cbc show partitions --scheme base
  cbc show partitions --server web01 --render partman`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (scheme == "") == (server == "") {
				return fmt.Errorf("exactly one of --scheme or --server is required")
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
			searcher := assemble.Instrument(store)

			var ps engine.PartitionScheme
			if scheme != "" {
				ps, err = assemble.LoadSchemeByName(ctx, searcher, scheme, e.logger)
			} else {
				a := assemble.New(searcher, e.cfg.AssembleOptions(), e.logger)
				srv, serr := a.Server(ctx, server)
				if serr != nil {
					return serr
				}
				ps, err = a.Facts(srv).Scheme(ctx)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if render != "" {
				return renderScheme(out, e, ps, render)
			}
			if jsonOutput {
				return printJSON(out, ps)
			}
			printScheme(out, ps)
			return nil
		},
	}

	cmd.Flags().StringVar(&scheme, "scheme", "", "scheme name")
	cmd.Flags().StringVarP(&server, "server", "s", "", "server whose scheme to show")
	cmd.Flags().StringVar(&render, "render", "", "print directives: partman|kickstart")

	return cmd
}

func printScheme(w io.Writer, ps engine.PartitionScheme) {
	layout := "plain"
	if ps.LVM {
		layout = "lvm"
	}
	fmt.Fprintf(w, "Scheme %s (%s, %d partitions)\n\n", ps.Name, layout, len(ps.Partitions))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tMOUNT\tFS\tMIN\tMAX\tVOLUME\tOPTIONS")
	for _, p := range ps.Partitions {
		lv := ""
		if ps.LVM {
			lv = partition.LogicalVolumeName(p)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Priority,
			p.MountPoint,
			p.Filesystem,
			humanize.IBytes(p.MinSizeMB*1024*1024),
			humanize.IBytes(p.MaxSizeMB*1024*1024),
			lv,
			strings.Join(p.Options, ","),
		)
	}
	tw.Flush()
}

func renderScheme(w io.Writer, e *env, ps engine.PartitionScheme, dialect string) error {
	var d partition.Dialect
	switch dialect {
	case "partman":
		d = partition.Partman
	case "kickstart":
		d = partition.Kickstart
	default:
		return fmt.Errorf("unknown dialect %q, want partman or kickstart", dialect)
	}

	buf := engine.NewBuffer(0)
	report, err := partition.New(e.logger).Compile(ps, d, partition.Layout{VolumeGroup: e.cfg.Build.VolumeGroup}, buf)
	if err != nil {
		return err
	}
	for _, warn := range report.Warnings {
		fmt.Fprintf(w, "# warning: %s\n", warn)
	}
	_, err = w.Write(buf.Bytes())
	return err
}
