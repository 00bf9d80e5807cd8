package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/openfroyo/cbc/pkg/assemble"
	"github.com/openfroyo/cbc/pkg/config"
	"github.com/openfroyo/cbc/pkg/output"
	"github.com/openfroyo/cbc/pkg/policy"
	"github.com/openfroyo/cbc/pkg/stores"
	"github.com/openfroyo/cbc/pkg/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// env is what a command runs with: the loaded config, telemetry, and the
// store once opened.
type env struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	store  *stores.SQLiteStore
	logger zerolog.Logger
}

// setup loads the config and starts telemetry. The returned context
// carries the telemetry.
func setup(cmd *cobra.Command) (*env, context.Context, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	zerolog.SetGlobalLevel(telemetry.ParseLevel(cfg.Telemetry.Logging.Level))

	tel, err := telemetry.NewTelemetry(cfg.Telemetry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start telemetry: %w", err)
	}

	e := &env{
		cfg:    cfg,
		tel:    tel,
		logger: tel.Logger.Zerolog(),
	}
	return e, tel.WithContext(cmd.Context()), nil
}

// openStore opens the build database without migrating it.
func (e *env) openStore(ctx context.Context) (*stores.SQLiteStore, error) {
	sc, err := e.cfg.StoreConfig()
	if err != nil {
		return nil, err
	}
	store, err := stores.NewSQLiteStore(sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", sc.Path, err)
	}
	e.store = store
	return store, nil
}

// writer returns the local document writer, teed to SFTP when a remote is
// configured. dryRun keeps documents in memory.
func (e *env) writer(dryRun bool) (output.Writer, error) {
	if dryRun {
		return output.NewMemory(), nil
	}

	local := output.NewLocalWriter(e.cfg.Paths.Root)
	sftpCfg, err := e.cfg.SFTPConfig()
	if err != nil {
		return nil, err
	}
	if sftpCfg == nil {
		return local, nil
	}
	if err := sftpCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid remote config: %w", err)
	}
	remote, err := output.NewSFTPWriter(sftpCfg, e.logger)
	if err != nil {
		return nil, err
	}
	return output.Tee(local, remote), nil
}

// policies returns a lint engine with the configured custom policies
// loaded and disabled policies switched off.
func (e *env) policies(ctx context.Context) (*policy.Engine, error) {
	eng, err := policy.NewEngine(e.logger)
	if err != nil {
		return nil, err
	}
	if len(e.cfg.Policy.Paths) > 0 {
		if err := eng.LoadPolicies(ctx, e.cfg.Policy.Paths); err != nil {
			return nil, err
		}
	}
	e.disablePolicies(eng)
	return eng, nil
}

func (e *env) disablePolicies(eng *policy.Engine) {
	for _, name := range e.cfg.Policy.Disabled {
		if err := eng.DisablePolicy(name); err != nil {
			e.logger.Warn().Err(err).Str("policy", name).Msg("Cannot disable policy")
		}
	}
}

// generator wires a Generator over the open store.
func (e *env) generator(ctx context.Context, w output.Writer, lint bool) (*assemble.Generator, error) {
	mode, err := e.cfg.PolicyMode()
	if err != nil {
		return nil, err
	}

	gc := assemble.GeneratorConfig{
		Searcher:   e.store,
		Writer:     w,
		Options:    e.cfg.AssembleOptions(),
		Paths:      e.cfg.DocumentPaths(),
		Auditor:    e.store,
		PolicyMode: mode,
		Logger:     e.logger,
	}
	if lint {
		eng, err := e.policies(ctx)
		if err != nil {
			return nil, err
		}
		gc.Linter = eng
	}
	return assemble.NewGenerator(gc), nil
}

// close releases the store and shuts telemetry down, which writes the
// metrics textfile.
func (e *env) close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to close store")
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.tel.Shutdown(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
