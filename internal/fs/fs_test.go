package fs

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestPathResolver(t *testing.T) {
	ws := t.TempDir()
	r, err := NewPathResolver(ws)
	if err != nil {
		t.Fatalf("NewPathResolver failed: %v", err)
	}

	if got, want := r.Resolve("changes/id-output"), filepath.Join(ws, "changes/id-output"); got != want {
		t.Errorf("Resolve(relative) = %q, want %q", got, want)
	}
	abs := filepath.Join(string(filepath.Separator), "tmp", "x.diff")
	if got := r.Resolve(abs); got != abs {
		t.Errorf("Resolve(absolute) = %q, want %q", got, abs)
	}
	if got := r.Resolve(""); got != "" {
		t.Errorf("Resolve(empty) = %q, want empty", got)
	}
	if got, want := r.Relative(filepath.Join(ws, "a", "b.json")), filepath.Join("a", "b.json"); got != want {
		t.Errorf("Relative() = %q, want %q", got, want)
	}
}

func TestPathResolverUsesGitHubWorkspace(t *testing.T) {
	ws := t.TempDir()
	t.Setenv("GITHUB_WORKSPACE", ws)
	r, err := NewPathResolver("")
	if err != nil {
		t.Fatal(err)
	}
	if r.Workspace() != ws {
		t.Errorf("Workspace() = %q, want %q", r.Workspace(), ws)
	}
}

func TestResetDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(dir, "Pages.json")
	if err := os.WriteFile(stale, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ResetDir(dir); err != nil {
		t.Fatalf("ResetDir failed: %v", err)
	}
	if Exists(stale) {
		t.Error("stale file survived ResetDir")
	}
	if !Exists(dir) {
		t.Error("directory was not recreated")
	}
}

func TestListJSON(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Redirects.json", "Pages.json", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.json"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ListJSON(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "Pages.json"), filepath.Join(dir, "Redirects.json")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListJSON() = %v, want %v", got, want)
	}

	missing, err := ListJSON(filepath.Join(dir, "nope"))
	if err != nil || missing != nil {
		t.Errorf("ListJSON(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestSectionName(t *testing.T) {
	if got := SectionName("/repo/repo-shopify-data/Blog-Posts.json"); got != "Blog-Posts" {
		t.Errorf("SectionName() = %q", got)
	}
}

func TestWriteFileReplaces(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "deep", "Pages.json")
	if err := WriteFile(dest, []byte("first")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFile(dest, []byte("second")); err != nil {
		t.Fatalf("second write: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want %q", data, "second")
	}
	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Errorf("expected only the destination file, found %d entries", len(entries))
	}
}

func TestFileSHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.json")
	if err := WriteFile(path, []byte("abc")); err != nil {
		t.Fatal(err)
	}
	got, err := FileSHA256(path)
	if err != nil {
		t.Fatalf("FileSHA256 failed: %v", err)
	}
	if want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"; got != want {
		t.Errorf("FileSHA256 = %s, want %s", got, want)
	}
	if _, err := FileSHA256(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
