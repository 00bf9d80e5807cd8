package commands

import (
	"errors"
	"fmt"

	"github.com/openfroyo/cbc/pkg/config"
	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(newConfigValidateCommand())
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Check a configuration file",
		Long: `Parse and validate a YAML or CUE configuration file. Every problem found
is listed with its key path and, for CUE files, its position. The path
defaults to --config.`,
		Example: `  cbc config validate cbc.yaml
  cbc config validate --json site.cue`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no configuration file given")
			}

			out := cmd.OutOrStdout()
			_, err := config.Load(path)

			var verrs config.ValidationErrors
			if errors.As(err, &verrs) {
				if jsonOutput {
					if perr := printJSON(out, verrs); perr != nil {
						return perr
					}
				} else {
					for _, v := range verrs {
						fmt.Fprintf(out, "✗ %s\n", v.String())
					}
				}
				return fmt.Errorf("%s: %d problem(s)", path, len(verrs))
			}
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(out, config.ValidationErrors{})
			}
			fmt.Fprintf(out, "✓ %s is valid\n", path)
			return nil
		},
	}
}
