package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/openfroyo/cbc/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the build database and output directories",
		Long: `Create the build database, apply its migrations, and create the output
directories. Without --config a default cbc.yaml is written as well.

Migrations are idempotent, so init can be re-run after an upgrade.`,
		Example: `  # Initialize in the current directory
  cbc init

  # Initialize from an existing config
  cbc init --config /etc/cbc/cbc.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ctx, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			out := cmd.OutOrStdout()

			if configPath == "" {
				path := "cbc.yaml"
				written, err := writeDefaultConfig(path, e.cfg, force)
				if err != nil {
					return err
				}
				if written {
					fmt.Fprintf(out, "✓ Created config file: %s\n", path)
				} else {
					fmt.Fprintf(out, "✓ Config file already exists: %s\n", path)
				}
			}

			if dir := filepath.Dir(e.cfg.Store.Path); e.cfg.Store.Path != ":memory:" && dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", dir, err)
				}
			}

			store, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			fmt.Fprintf(out, "✓ Initialized build database: %s\n", e.cfg.Store.Path)

			for _, dir := range []string{e.cfg.Paths.Web, e.cfg.Paths.TFTP, e.cfg.Paths.DHCP} {
				path := filepath.Join(e.cfg.Paths.Root, dir)
				if err := os.MkdirAll(path, 0755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", path, err)
				}
				fmt.Fprintf(out, "✓ Created directory: %s\n", path)
			}

			log.Info().
				Str("db", e.cfg.Store.Path).
				Str("root", e.cfg.Paths.Root).
				Msg("Workspace initialized")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing cbc.yaml")

	return cmd
}

// writeDefaultConfig writes cfg as YAML unless path exists and force is
// off. It reports whether the file was written.
func writeDefaultConfig(path string, cfg *config.Config, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("failed to encode config: %w", err)
	}
	header := []byte("# cbc configuration\n")
	if err := os.WriteFile(path, append(header, data...), 0644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}
