package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v2"

	"github.com/bluetuith-org/autopair/config"
	"github.com/bluetuith-org/autopair/orchestrator"
)

// session holds a running pairing orchestrator and its configuration.
type session struct {
	cfg          *config.Config
	logger       *slog.Logger
	orchestrator *orchestrator.Orchestrator

	closePlatform func() error
}

// loadConfig loads and validates the configuration.
func loadConfig(cliCtx *cli.Context) (*config.Config, *koanf.Koanf, error) {
	// required for koanf to merge all global flags under the root namespace.
	if lineage := cliCtx.Lineage(); len(lineage) > 0 {
		if root := lineage[len(lineage)-1]; root.Command != nil {
			root.Command.Name = "global"
		}
	}

	k, cfg := koanf.New("."), config.NewConfig()
	if err := cfg.Load(k, cliCtx); err != nil {
		return nil, nil, err
	}

	if err := cfg.ValidateValues(); err != nil {
		return nil, nil, err
	}

	return cfg, k, nil
}

// newLogger returns a logger that writes to the standard error output.
func newLogger(values config.Values) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: values.Level}))
}

// startSession loads the configuration, connects to the platform and starts the orchestrator.
// If onResolved is not nil, it is called after every resolved pairing challenge.
func startSession(ctx context.Context, cliCtx *cli.Context, onResolved orchestrator.ResolvedFunc) (*session, error) {
	cfg, _, err := loadConfig(cliCtx)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Values)
	slog.SetDefault(logger)

	p, closePlatform, err := newPlatform(cfg.Values.Adapter, logger.With("component", "platform"))
	if err != nil {
		return nil, err
	}

	o := orchestrator.New(p, orchestrator.Options{
		PIN:    cfg.Values.PIN,
		Logger: logger,
	})

	o.OnChallengeResolved(onResolved)

	if err := o.Start(ctx); err != nil {
		_ = closePlatform()

		return nil, err
	}

	return &session{
		cfg:           cfg,
		logger:        logger,
		orchestrator:  o,
		closePlatform: closePlatform,
	}, nil
}

// stop stops the orchestrator and closes the platform.
func (s *session) stop() {
	_ = s.orchestrator.Stop()

	if err := s.closePlatform(); err != nil {
		s.logger.Debug("closing the platform returned an error", "error", err)
	}
}
