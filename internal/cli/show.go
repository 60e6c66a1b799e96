package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	dashprefs "github.com/goliatone/go-dashprefs"
)

func newShowCommand(a *app) *cobra.Command {
	var section string
	cmd := &cobra.Command{
		Use:   "show <scope>",
		Short: "Print the migrated customization tree of a scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			return a.withStore(cmd.Context(), db, args[0], func(store *dashprefs.Store) error {
				var value any = store.Snapshot()
				if section != "" {
					if value = store.Section(section); value == nil {
						return fmt.Errorf("unknown section %q", section)
					}
				}
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(value)
			})
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "print a single section (home, pages, ui, background, entities)")
	return cmd
}
