package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	dashprefs "github.com/goliatone/go-dashprefs"
)

func newRankCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "rank <scope>",
		Short: "List the commonly used items of a scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			return a.withStore(cmd.Context(), db, args[0], func(store *dashprefs.Store) error {
				for _, id := range store.Usage().CommonlyUsed(limit) {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of items (defaults to usage.limit)")
	return cmd
}

func newPruneCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prune [scope...]",
		Short: "Drop usage timestamps outside the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			scopes := args
			if len(scopes) == 0 {
				if scopes, err = db.Scopes(cmd.Context()); err != nil {
					return err
				}
			}
			for _, scope := range scopes {
				err := a.withStore(cmd.Context(), db, scope, func(store *dashprefs.Store) error {
					if store.Usage().Prune() {
						fmt.Fprintf(cmd.OutOrStdout(), "pruned %s\n", scope)
					}
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}
