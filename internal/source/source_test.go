package source

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sokinpui/shopdiff.go/internal/ui"
)

func TestMain(m *testing.M) {
	ui.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestGetContentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changes.diff")
	const diff = "diff --git a/repo-shopify-data/Pages.json b/repo-shopify-data/Pages.json\n"
	if err := os.WriteFile(path, []byte(diff), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := New(File, path).GetContent()
	if err != nil || got != diff {
		t.Errorf("GetContent() = %q, %v", got, err)
	}
}

func TestGetContentMissingFile(t *testing.T) {
	_, err := New(File, filepath.Join(t.TempDir(), "nope.diff")).GetContent()
	if !errors.Is(err, ErrInputNotFound) {
		t.Errorf("error = %v, want ErrInputNotFound", err)
	}
}

func TestGetContentStdinUnwrapsMarkdown(t *testing.T) {
	sp := New(Stdin, "")
	sp.stdin = strings.NewReader("See:\n\n```diff\n@@ -1 +1 @@\n```\n")
	got, err := sp.GetContent()
	if err != nil {
		t.Fatal(err)
	}
	if got != "@@ -1 +1 @@\n" {
		t.Errorf("GetContent() = %q", got)
	}
}

func TestGetContentClipboard(t *testing.T) {
	sp := New(Clipboard, "")
	sp.clip = func() (string, error) { return "   ", nil }
	if got, err := sp.GetContent(); err != nil || got != "" {
		t.Errorf("empty clipboard: %q, %v", got, err)
	}

	boom := errors.New("no display")
	sp.clip = func() (string, error) { return "", boom }
	if _, err := sp.GetContent(); !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"": File, "FILE": File, "stdin": Stdin, " clipboard ": Clipboard} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseKind("s3"); err == nil {
		t.Error("ParseKind(s3) should fail")
	}
}
