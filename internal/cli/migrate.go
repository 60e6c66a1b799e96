package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	dashprefs "github.com/goliatone/go-dashprefs"
	"github.com/goliatone/go-dashprefs/pkg/activity"
	"github.com/goliatone/go-dashprefs/pkg/state"
)

func newMigrateCommand(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate [scope...]",
		Short: "Rewrite legacy customization documents in the current schema",
		Long: `Migrate loads every stored document (or only the given scopes) and
rewrites the ones still in the flat legacy schema. Current documents are left
untouched, so the command is safe to run repeatedly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			scopes := args
			if len(scopes) == 0 {
				if scopes, err = db.Scopes(ctx); err != nil {
					return err
				}
			}
			emitter := activity.NewEmitter(a.activityHooks(), activity.Config{
				Disabled: a.config.Activity.Disabled,
				Channel:  a.config.Activity.Channel,
				Verbs:    a.config.Activity.Verbs,
			})

			migrated := 0
			for _, scope := range scopes {
				changed, err := a.migrateScope(ctx, db, emitter, scope, dryRun)
				if err != nil {
					return err
				}
				if changed {
					migrated++
					fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", scope)
				}
			}
			if migrated == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "All documents are current.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report legacy documents without rewriting them")
	return cmd
}

func (a *app) migrateScope(ctx context.Context, db state.Store, emitter *activity.Emitter, scope string, dryRun bool) (bool, error) {
	ref := state.Ref{Scope: scope, Domain: a.config.Domain}
	raw, _, ok, err := db.Load(ctx, ref)
	if err != nil {
		return false, fmt.Errorf("load %q: %w", scope, err)
	}
	if !ok {
		return false, nil
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		a.logger.Warn("skipping unreadable document", zap.String("scope", scope), zap.Error(err))
		return false, nil
	}
	if !dashprefs.IsLegacy(payload) {
		return false, nil
	}
	if dryRun {
		return true, nil
	}

	doc, err := json.Marshal(dashprefs.Migrate(payload))
	if err != nil {
		return false, err
	}
	stored, err := db.Save(ctx, ref, doc, state.Meta{
		SnapshotID: uuid.NewString(),
		Extra:      map[string]string{"migrated_from": "legacy"},
	})
	if err != nil {
		return false, fmt.Errorf("save %q: %w", scope, err)
	}
	err = emitter.Customization(ctx, activity.VerbCustomizationsMigrated, activity.CustomizationEventInput{
		ActorID:    cliActor,
		Scope:      scope,
		SnapshotID: stored.SnapshotID,
	})
	if err != nil {
		a.logger.Warn("activity hook failed", zap.String("verb", activity.VerbCustomizationsMigrated), zap.Error(err))
	}
	return true, nil
}
