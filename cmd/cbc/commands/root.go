package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cbc",
		Short: "cbc - network install documents from the build database",
		Long: `cbc turns the facts held in a build database into the files a network
install needs:

  - preseed and kickstart answer files
  - post-install host scripts
  - pxelinux boot stanzas
  - dhcpd host reservations and shared networks

Builds can be linted with Rego policies before their answer file is written,
and documents can be published to a remote TFTP/DHCP host over SFTP.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (.yaml, .json or .cue)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newBuildCommand())
	rootCmd.AddCommand(newDHCPCommand())
	rootCmd.AddCommand(newIPCommand())
	rootCmd.AddCommand(newLintCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newMetricsCommand())

	return rootCmd
}
