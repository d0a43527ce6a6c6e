package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/sokinpui/shopdiff.go/internal/parser"
	"github.com/sokinpui/shopdiff.go/internal/ui"
)

// ErrInputNotFound is returned when the diff file does not exist.
var ErrInputNotFound = errors.New("input not found")

// Kind selects where the diff text comes from.
type Kind string

const (
	File      Kind = "file"
	Stdin     Kind = "stdin"
	Clipboard Kind = "clipboard"
)

// ParseKind validates a --source value. Empty means File.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return File, nil
	case File, Stdin, Clipboard:
		return k, nil
	default:
		return "", fmt.Errorf("unknown source %q (want file, stdin or clipboard)", s)
	}
}

// SourceProvider retrieves the diff text.
type SourceProvider struct {
	kind  Kind
	path  string
	stdin io.Reader
	clip  func() (string, error)
}

// New creates a SourceProvider. path is only used for the File kind.
func New(kind Kind, path string) *SourceProvider {
	return &SourceProvider{kind: kind, path: path, stdin: os.Stdin, clip: clipboard.ReadAll}
}

// Kind returns the configured source kind.
func (sp *SourceProvider) Kind() Kind {
	return sp.kind
}

// GetContent returns the diff text, unwrapped from markdown fences when it
// was pasted from a PR comment.
func (sp *SourceProvider) GetContent() (string, error) {
	content, err := sp.read()
	if err != nil {
		return "", err
	}
	unwrapped, err := parser.UnwrapDiff(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse markdown input: %w", err)
	}
	return unwrapped, nil
}

func (sp *SourceProvider) read() (string, error) {
	switch sp.kind {
	case Stdin:
		ui.Header("--- Reading diff from stdin ---")
		content, err := io.ReadAll(sp.stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(content), nil

	case Clipboard:
		ui.Header("--- Reading diff from clipboard ---")
		content, err := sp.clip()
		if err != nil {
			return "", fmt.Errorf("failed to read from clipboard: %w", err)
		}
		if strings.TrimSpace(content) == "" {
			ui.Warning("Clipboard is empty. Nothing to process.")
			return "", nil
		}
		return content, nil

	default:
		ui.Header("--- Reading diff from %s ---", sp.path)
		content, err := os.ReadFile(sp.path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("%w: diff file %s", ErrInputNotFound, sp.path)
			}
			return "", fmt.Errorf("failed to read diff file: %w", err)
		}
		return string(content), nil
	}
}
