package shopdiff

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sokinpui/shopdiff.go/cli"
	"github.com/sokinpui/shopdiff.go/internal/changeset"
	"github.com/sokinpui/shopdiff.go/internal/config"
	"github.com/sokinpui/shopdiff.go/internal/source"
	"github.com/sokinpui/shopdiff.go/internal/ui"
	"github.com/sokinpui/shopdiff.go/model"
)

func TestMain(m *testing.M) {
	ui.SetOutput(io.Discard)
	os.Exit(m.Run())
}

const pagesDiff = `diff --git a/repo-shopify-data/Pages.json b/repo-shopify-data/Pages.json
index 1111111..2222222 100644
--- a/repo-shopify-data/Pages.json
+++ b/repo-shopify-data/Pages.json
@@ -1,4 +1,4 @@
   {
-    "ID": "101",
+    "ID": "102",
     "Title": "About"
diff --git a/repo-shopify-data/Redirects.json b/repo-shopify-data/Redirects.json
--- a/repo-shopify-data/Redirects.json
+++ b/repo-shopify-data/Redirects.json
@@ -10,3 +10,3 @@
-    "ID": "gid://shopify/UrlRedirect/7",
+    "ID": "gid://shopify/UrlRedirect/8",
`

type fakePublisher struct {
	paths   []string
	message string
	calls   int
}

func (f *fakePublisher) Publish(_ context.Context, paths []string, message string) (bool, error) {
	f.calls++
	f.paths = paths
	f.message = message
	return true, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// newWorkspace lays out a repo dir with two sections and the captured diff.
func newWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, "repo-shopify-data", "Pages.json"),
		`[{"ID": "102", "Title": "About"}, {"ID": "103", "Title": "Contact"}]`)
	writeFile(t, filepath.Join(ws, "repo-shopify-data", "Redirects.json"),
		`[{"ID": "gid://shopify/UrlRedirect/1", "Path": "/a"}]`)
	writeFile(t, filepath.Join(ws, "changes", "git-diff", "changes.diff"), pagesDiff)
	return ws
}

func newApp(t *testing.T, cfg *cli.Config) *App {
	t.Helper()
	if cfg.Source == "" {
		cfg.Source = "file"
	}
	if cfg.ImportDir == "" {
		cfg.ImportDir = "output_json"
	}
	app, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return app
}

func readRecords(t *testing.T, path string) []json.RawMessage {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	records, err := changeset.Decode(data)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return records
}

func TestExecutePipeline(t *testing.T) {
	ws := newWorkspace(t)
	app := newApp(t, &cli.Config{Workspace: ws})

	summary, err := app.Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	manifest, err := os.ReadFile(filepath.Join(ws, "changes", "id-output", "changed_ids.txt"))
	if err != nil {
		t.Fatal(err)
	}
	want := "Pages -> 101, 102\nRedirects -> gid://shopify/UrlRedirect/7, gid://shopify/UrlRedirect/8\n"
	if string(manifest) != want {
		t.Errorf("manifest = %q, want %q", manifest, want)
	}

	records := readRecords(t, filepath.Join(ws, "changes", "change-only-jsons", "Pages.json"))
	if len(records) != 1 {
		t.Fatalf("Pages.json has %d records, want 1", len(records))
	}
	if id, _ := changeset.RecordID(records[0], "ID"); id != "102" {
		t.Errorf("record ID = %q, want 102", id)
	}
	if _, err := os.Stat(filepath.Join(ws, "changes", "change-only-jsons", "Redirects.json")); !os.IsNotExist(err) {
		t.Errorf("Redirects.json should not be written, stat err = %v", err)
	}

	if !reflect.DeepEqual(summary.Written, []string{filepath.Join("changes", "change-only-jsons", "Pages.json")}) {
		t.Errorf("Written = %v", summary.Written)
	}
	if !reflect.DeepEqual(summary.Skipped, []string{"Redirects"}) {
		t.Errorf("Skipped = %v", summary.Skipped)
	}
	if summary.RunID != app.RunID() || summary.Published {
		t.Errorf("summary = %+v", summary)
	}
}

func TestExecuteStreamingMode(t *testing.T) {
	ws := newWorkspace(t)
	app := newApp(t, &cli.Config{Workspace: ws, Mode: "streaming", IDsOnly: true})

	summary, err := app.Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got, _ := summary.Changed.Lookup("Pages"); !reflect.DeepEqual(got, []string{"101", "102"}) {
		t.Errorf("Pages IDs = %v", got)
	}
}

func TestExecuteIDsOnly(t *testing.T) {
	ws := newWorkspace(t)
	app := newApp(t, &cli.Config{Workspace: ws, IDsOnly: true})

	summary, err := app.Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if summary.Changed.Count() != 4 || len(summary.Written) != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(ws, "changes", "change-only-jsons")); !os.IsNotExist(err) {
		t.Errorf("ids-only should not materialize, stat err = %v", err)
	}
}

func TestExecuteChangesOnly(t *testing.T) {
	ws := newWorkspace(t)
	writeFile(t, filepath.Join(ws, "changes", "id-output", "changed_ids.txt"), "Pages -> 103\n")
	app := newApp(t, &cli.Config{Workspace: ws, ChangesOnly: true})

	summary, err := app.Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	records := readRecords(t, filepath.Join(ws, "changes", "change-only-jsons", "Pages.json"))
	if len(records) != 1 {
		t.Fatalf("Pages.json has %d records, want 1", len(records))
	}
	if id, _ := changeset.RecordID(records[0], "ID"); id != "103" {
		t.Errorf("record ID = %q, want 103", id)
	}
	if len(summary.Written) != 1 {
		t.Errorf("Written = %v", summary.Written)
	}
}

func TestExecuteChangesOnlyWithoutManifest(t *testing.T) {
	ws := newWorkspace(t)
	app := newApp(t, &cli.Config{Workspace: ws, ChangesOnly: true})

	summary, err := app.Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if summary.Message == "" || len(summary.Written) != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestExecuteMissingDiff(t *testing.T) {
	ws := t.TempDir()
	app := newApp(t, &cli.Config{Workspace: ws})

	_, err := app.Execute()
	if !errors.Is(err, source.ErrInputNotFound) {
		t.Errorf("err = %v, want ErrInputNotFound", err)
	}
}

func TestNewExplicitConfigMissing(t *testing.T) {
	_, err := New(&cli.Config{Workspace: t.TempDir(), ConfigFile: "ci.properties", Source: "file"})
	if !errors.Is(err, config.ErrConfigurationMissing) {
		t.Errorf("err = %v, want ErrConfigurationMissing", err)
	}
}

func TestNewReadsConfigFile(t *testing.T) {
	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, "config.properties"), "REPO_DIR=data\nEXTRACT_MODE=streaming\n")
	app := newApp(t, &cli.Config{Workspace: ws})

	s := app.Settings()
	if s.RepoPrefix != "data" || s.RepoDir != filepath.Join(ws, "data") {
		t.Errorf("settings = %+v", s)
	}
	if s.ExtractMode.String() != "streaming" {
		t.Errorf("mode = %v", s.ExtractMode)
	}
}

func TestExecutePublish(t *testing.T) {
	ws := newWorkspace(t)
	app := newApp(t, &cli.Config{Workspace: ws, Publish: true})
	pub := &fakePublisher{}
	app.SetPublisher(pub)

	summary, err := app.Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !summary.Published || pub.calls != 1 {
		t.Fatalf("published = %v, calls = %d", summary.Published, pub.calls)
	}
	if !strings.HasPrefix(pub.message, "Update extracted changes") || !strings.Contains(pub.message, "Run-Id: "+app.RunID()) {
		t.Errorf("message = %q", pub.message)
	}
	wantPaths := []string{
		filepath.Join(ws, "changes", "id-output", "changed_ids.txt"),
		filepath.Join(ws, "changes", "change-only-jsons", "Pages.json"),
	}
	if !reflect.DeepEqual(pub.paths, wantPaths) {
		t.Errorf("paths = %v, want %v", pub.paths, wantPaths)
	}
}

func TestExecuteBaseline(t *testing.T) {
	ws := newWorkspace(t)
	writeFile(t, filepath.Join(ws, "previous", "Pages.json"),
		"[\n    {\n        \"ID\": \"102\",\n        \"Title\": \"Old\"\n    }\n]")
	writeFile(t, filepath.Join(ws, "previous", "Redirects.json"),
		`[{"ID": "gid://shopify/UrlRedirect/1", "Path": "/a"}]`)
	writeFile(t, filepath.Join(ws, "repo-shopify-data", "Pages.json"),
		"[\n    {\n        \"ID\": \"102\",\n        \"Title\": \"New\"\n    }\n]")
	app := newApp(t, &cli.Config{Workspace: ws, Baseline: "previous"})

	summary, err := app.Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	want := model.ChangedIDs{{Section: "Pages", IDs: []string{"102"}}}
	if !reflect.DeepEqual(summary.Changed, want) {
		t.Errorf("Changed = %+v, want %+v", summary.Changed, want)
	}
	diff, err := os.ReadFile(filepath.Join(ws, "changes", "git-diff", "changes.diff"))
	if err != nil || !strings.HasPrefix(string(diff), "diff --git a/repo-shopify-data/Pages.json") {
		t.Errorf("diff file = %q, %v", diff, err)
	}
}

func TestExecuteBaselineMissing(t *testing.T) {
	ws := newWorkspace(t)
	app := newApp(t, &cli.Config{Workspace: ws, Baseline: "nowhere"})
	if _, err := app.Execute(); !errors.Is(err, source.ErrInputNotFound) {
		t.Errorf("err = %v, want ErrInputNotFound", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ws := newWorkspace(t)
	app := newApp(t, &cli.Config{Workspace: ws, Export: true})
	summary, err := app.Execute()
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if len(summary.Written) != 1 {
		t.Fatalf("Written = %v, want one workbook", summary.Written)
	}

	workbook := summary.Written[0]
	app = newApp(t, &cli.Config{Workspace: ws, Import: workbook, ImportDir: "imported"})
	if _, err := app.Execute(); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	records := readRecords(t, filepath.Join(ws, "imported", "Pages.json"))
	if len(records) != 2 {
		t.Errorf("imported %d Pages records, want 2", len(records))
	}
}

func TestExecuteHistory(t *testing.T) {
	ws := newWorkspace(t)
	first := newApp(t, &cli.Config{Workspace: ws})
	if _, err := first.Execute(); err != nil {
		t.Fatal(err)
	}

	app := newApp(t, &cli.Config{Workspace: ws, History: true})
	summary, err := app.Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(summary.Message, first.RunID()) || !strings.Contains(summary.Message, "changes/change-only-jsons/Pages.json") {
		t.Errorf("history = %q", summary.Message)
	}
}

func TestLibraryHelpers(t *testing.T) {
	changed := Extract(pagesDiff, Config{Mode: Streaming})

	t.Run("Manifest round trip", func(t *testing.T) {
		parsed, err := ParseManifest(FormatManifest(changed))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(parsed, changed) {
			t.Fatalf("ParseManifest = %+v, want %+v", parsed, changed)
		}
	})

	t.Run("Materialize with default ID field", func(t *testing.T) {
		load := func(section string) ([]json.RawMessage, error) {
			if section != "Pages" {
				return nil, nil
			}
			return []json.RawMessage{json.RawMessage(`{"ID":"101"}`), json.RawMessage(`{"ID":"999"}`)}, nil
		}
		got, err := Materialize(changed, load, Config{})
		if err != nil {
			t.Fatalf("Materialize failed: %v", err)
		}
		if len(got) != 1 || len(got["Pages"]) != 1 || string(got["Pages"][0]) != `{"ID":"101"}` {
			t.Errorf("Materialize = %s", got)
		}
	})
}
