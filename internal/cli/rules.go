package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/neurobridge-tutor/internal/app"
	"github.com/yungbote/neurobridge-tutor/internal/platform/dbctx"
)

func (r *root) rulesCmd() *cobra.Command {
	var (
		childID string
		fresh   bool
	)
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the adaptation rules derived for a child",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(childID)
			if err != nil {
				return fmt.Errorf("invalid --child: %w", err)
			}
			return r.withApp(cmd, r.config(), func(a *app.App) error {
				ctx := cmd.Context()
				dbc := dbctx.Context{Ctx: ctx}
				child, err := a.Repos.Child.GetByID(dbc, id)
				if err != nil {
					return err
				}
				if child == nil {
					return fmt.Errorf("child %s not found", id)
				}
				profile, err := a.Repos.NeuroProfile.GetByChild(dbc, id)
				if err != nil {
					return err
				}
				disabilities, err := a.Repos.Disability.ListByChild(dbc, id)
				if err != nil {
					return err
				}
				if fresh {
					a.Services.Rules.Invalidate(ctx, id)
				}
				return writeJSON(cmd.OutOrStdout(), a.Services.Rules.Rules(ctx, id, profile, disabilities))
			})
		},
	}
	cmd.Flags().StringVar(&childID, "child", "", "Child profile id")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Drop the cached rules before deriving")
	_ = cmd.MarkFlagRequired("child")
	return cmd
}
