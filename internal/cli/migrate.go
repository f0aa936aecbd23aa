package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/neurobridge-tutor/internal/app"
)

func (r *root) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := r.config()
			cfg.AutoMigrate = true
			return r.withApp(cmd, cfg, func(a *app.App) error {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "{\"ok\":true,\"driver\":%q}\n", cfg.DB.Driver)
				return err
			})
		},
	}
}
