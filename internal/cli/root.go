// Package cli implements tutorctl, the operator CLI. Every command builds
// the same object graph as the server and works on it directly, without
// caregiver authentication.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yungbote/neurobridge-tutor/internal/app"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

// Opener builds the app for one command run.
type Opener func(ctx context.Context, cfg app.Config) (*app.App, error)

type root struct {
	open       Opener
	tuningFile string
	noMigrate  bool
}

// DefaultOpener reads the environment's logger mode and builds the app.
func DefaultOpener(ctx context.Context, cfg app.Config) (*app.App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return app.New(ctx, cfg, log)
}

func NewRootCmd(open Opener) *cobra.Command {
	r := &root{open: open}
	cmd := &cobra.Command{
		Use:           "tutorctl",
		Short:         "Operate the adaptive tutor backend",
		Long:          "Operator commands for the tutor: schema migration, content ingest, index rebuilds and rule inspection.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&r.tuningFile, "tuning", "", "Tuning YAML file (default: $TUNING_FILE)")
	cmd.PersistentFlags().BoolVar(&r.noMigrate, "no-migrate", false, "Skip schema migration on startup")

	cmd.AddCommand(
		r.migrateCmd(),
		r.ingestCmd(),
		r.reindexCmd(),
		r.rulesCmd(),
	)
	return cmd
}

func (r *root) config() app.Config {
	cfg := app.LoadConfig()
	if r.tuningFile != "" {
		cfg.TuningFile = r.tuningFile
	}
	if r.noMigrate {
		cfg.AutoMigrate = false
	}
	return cfg
}

// withApp opens the app, runs fn and closes it again.
func (r *root) withApp(cmd *cobra.Command, cfg app.Config, fn func(a *app.App) error) error {
	a, err := r.open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
