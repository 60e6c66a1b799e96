package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dashprefs "github.com/goliatone/go-dashprefs"
	"github.com/goliatone/go-dashprefs/pkg/state"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func readDoc(t *testing.T, dbPath, scope string) map[string]any {
	t.Helper()
	db, err := state.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	raw, _, ok, err := db.Load(context.Background(), state.Ref{Scope: scope})
	if err != nil || !ok {
		t.Fatalf("load %s: ok=%v err=%v", scope, ok, err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return payload
}

func TestImportThenShow(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "prefs.db")
	legacy := writeFile(t, dir, "legacy.json", `{"favorites":["light.desk"],"hideHeader":true}`)

	out, err := run(t, "--db", dbPath, "import", "kitchen", legacy)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.HasPrefix(out, "imported kitchen (snapshot ") {
		t.Fatalf("unexpected import output %q", out)
	}
	if dashprefs.IsLegacy(readDoc(t, dbPath, "kitchen")) {
		t.Fatalf("expected imported document in the current schema")
	}

	out, err = run(t, "--db", dbPath, "show", "kitchen", "--section", "home")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var home dashprefs.HomeSection
	if err := json.Unmarshal([]byte(out), &home); err != nil {
		t.Fatalf("decode show output %q: %v", out, err)
	}
	if len(home.Favorites) != 1 || home.Favorites[0] != "light.desk" {
		t.Fatalf("unexpected favorites %v", home.Favorites)
	}

	if _, err := run(t, "--db", dbPath, "show", "kitchen", "--section", "sidebar"); err == nil {
		t.Fatalf("expected unknown section error")
	}
}

func TestImportRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.json", `{"home":`)
	if _, err := run(t, "--db", filepath.Join(dir, "prefs.db"), "import", "kitchen", bad); err == nil {
		t.Fatalf("expected invalid JSON error")
	}
}

func TestMigrateRewritesLegacyDocuments(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "prefs.db")
	t.Setenv(envDB, dbPath)

	db, err := state.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	seed := map[string]string{
		"garage":  `{"favorites":["cover.garage"],"sceneOrder":["scene.night"]}`,
		"kitchen": `{"home":{"favorites":["light.kitchen"]}}`,
	}
	for scope, doc := range seed {
		if _, err := db.Save(ctx, state.Ref{Scope: scope}, []byte(doc), state.Meta{}); err != nil {
			t.Fatalf("seed %s: %v", scope, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	out, err := run(t, "migrate", "--dry-run")
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if out != "migrated garage\n" {
		t.Fatalf("unexpected dry run output %q", out)
	}
	if !dashprefs.IsLegacy(readDoc(t, dbPath, "garage")) {
		t.Fatalf("dry run must not rewrite documents")
	}

	if _, err := run(t, "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	tree := dashprefs.Migrate(readDoc(t, dbPath, "garage"))
	if got := tree.Pages[dashprefs.ContextScenes].Order; len(got) != 1 || got[0] != "scene.night" {
		t.Fatalf("expected scene order migrated, got %v", got)
	}

	out, err = run(t, "migrate")
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if out != "All documents are current.\n" {
		t.Fatalf("unexpected second migrate output %q", out)
	}
}

func TestRankAndPrune(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "prefs.db")
	now := time.Now()
	recent := now.Add(-time.Hour).UnixMilli()
	stale := now.Add(-72 * time.Hour).UnixMilli()
	doc := fmt.Sprintf(`{"home":{"usage":{"light.a":[%d,%d,%d],"light.b":[%d],"light.c":[%d,%d]},"excluded_from_commonly_used":["light.c"]}}`,
		stale, recent, recent, recent, recent, recent)
	path := writeFile(t, dir, "usage.json", doc)
	if _, err := run(t, "--db", dbPath, "import", "kitchen", path); err != nil {
		t.Fatalf("import: %v", err)
	}

	out, err := run(t, "--db", dbPath, "rank", "kitchen")
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if out != "light.a\n" {
		t.Fatalf("unexpected rank output %q", out)
	}

	out, err = run(t, "--db", dbPath, "prune")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if out != "pruned kitchen\n" {
		t.Fatalf("unexpected prune output %q", out)
	}
	tree := dashprefs.Migrate(readDoc(t, dbPath, "kitchen"))
	if got := tree.Home.Usage["light.a"]; len(got) != 2 {
		t.Fatalf("expected stale timestamp pruned, got %v", got)
	}
}
