package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	dashprefs "github.com/goliatone/go-dashprefs"
)

func newImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <scope> <file>",
		Short: "Replace the customizations of a scope with a JSON document",
		Long: `Import reads a customization document (current or legacy schema, "-" for
stdin), migrates it and stores it as the complete tree of the scope.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}
			if !json.Valid(data) {
				return fmt.Errorf("%s is not valid JSON", args[1])
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			return a.withStore(cmd.Context(), db, args[0], func(store *dashprefs.Store) error {
				store.SetAll(dashprefs.Migrate(data))
				if err := store.Flush(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s (snapshot %s)\n", store.Scope(), store.LastSnapshotID())
				return nil
			})
		},
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
