package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/neurobridge-tutor/internal/app"
)

func (r *root) reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Push every stored chunk into the search index",
		Long:  "Embeds chunks stored without a vector and upserts all chunks into the configured retrieval backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, r.config(), func(a *app.App) error {
				n, err := a.Services.Ingest.Reindex(cmd.Context())
				if err != nil {
					return fmt.Errorf("reindex after %d chunks: %w", n, err)
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"backend": a.Services.Retrieval.Backend,
					"indexed": n,
				})
			})
		},
	}
}
