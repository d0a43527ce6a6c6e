package gitops

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/sokinpui/shopdiff.go/internal/config"
	"github.com/sokinpui/shopdiff.go/internal/fs"
	"github.com/sokinpui/shopdiff.go/internal/ui"
)

// Publisher stages paths, commits them and pushes the result. It either
// succeeds as a whole or returns an error; committed is false when there
// was nothing new to commit.
type Publisher interface {
	Publish(ctx context.Context, paths []string, message string) (committed bool, err error)
}

// Runner executes one git command in dir, writing its stdout to stdout.
type Runner func(ctx context.Context, dir string, stdout io.Writer, args ...string) error

// ExecRunner runs the git binary.
func ExecRunner(ctx context.Context, dir string, stdout io.Writer, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Git drives the repository in Dir.
type Git struct {
	Dir      string
	Settings config.Git
	Run      Runner
}

var _ Publisher = (*Git)(nil)

// New creates a Git for the repository at dir using the git binary.
func New(dir string, settings config.Git) *Git {
	return &Git{Dir: dir, Settings: settings, Run: ExecRunner}
}

func (g *Git) git(ctx context.Context, args ...string) error {
	return g.Run(ctx, g.Dir, io.Discard, args...)
}

func (g *Git) output(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	err := g.Run(ctx, g.Dir, &out, args...)
	return out.String(), err
}

// Capture saves `git diff` of paths to diffFile. An empty paths list diffs
// the whole worktree.
func (g *Git) Capture(ctx context.Context, diffFile string, paths []string) error {
	args := []string{"diff"}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}
	ui.Info("Running: git diff on %d path(s)...", len(paths))
	diff, err := g.output(ctx, args...)
	if err != nil {
		return fmt.Errorf("failed to capture diff: %w", err)
	}
	if err := fs.WriteFile(diffFile, []byte(diff)); err != nil {
		return fmt.Errorf("failed to save diff: %w", err)
	}
	ui.Success("Git diff output saved to %s", diffFile)
	return nil
}

// Publish commits paths on the configured branch and pushes it.
func (g *Git) Publish(ctx context.Context, paths []string, message string) (bool, error) {
	if len(paths) == 0 {
		ui.Info("Nothing to publish.")
		return false, nil
	}
	s := g.Settings
	if err := s.Validate(); err != nil {
		return false, err
	}

	if err := g.git(ctx, "config", "user.name", s.UserName); err != nil {
		return false, err
	}
	if err := g.git(ctx, "config", "user.email", s.UserEmail); err != nil {
		return false, err
	}

	// Untracked outputs survive the rebase as they are; stash ignores them.
	status, err := g.output(ctx, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return false, err
	}
	stashed := false
	if strings.TrimSpace(status) != "" {
		ui.Info("Stashing local changes before pulling...")
		if err := g.git(ctx, "stash", "push", "-m", "Saving unstaged changes before pull"); err != nil {
			return false, err
		}
		stashed = true
	}

	for _, args := range [][]string{
		{"fetch", s.Remote, s.Branch},
		{"checkout", s.Branch},
		{"pull", "--rebase", s.Remote, s.Branch},
	} {
		if err := g.git(ctx, args...); err != nil {
			return false, err
		}
	}

	if stashed {
		ui.Info("Restoring stashed changes...")
		if err := g.git(ctx, "stash", "pop"); err != nil {
			return false, err
		}
	}

	if err := g.git(ctx, append([]string{"add", "--"}, paths...)...); err != nil {
		return false, err
	}
	if err := g.git(ctx, "diff", "--cached", "--quiet"); err == nil {
		ui.Info("No new changes detected. Skipping commit.")
		return false, nil
	}
	if err := g.git(ctx, "commit", "-m", message); err != nil {
		return false, err
	}

	if err := g.git(ctx, "push", s.Remote, s.Branch); err != nil {
		if !s.ForcePush {
			return false, err
		}
		ui.Warning("Push failed. Retrying with force...")
		if err := g.git(ctx, "push", s.Remote, s.Branch, "--force"); err != nil {
			return false, err
		}
	}
	ui.Success("Changes pushed to %s/%s.", s.Remote, s.Branch)
	return true, nil
}
