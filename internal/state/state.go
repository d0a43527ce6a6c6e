package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sokinpui/shopdiff.go/internal/fs"
)

const (
	stateDirName  = ".shopdiff"
	stateFileName = "runs.log"
	// MaxHistory is how many runs the log keeps.
	MaxHistory = 50
)

// Operation is one file a run produced.
type Operation struct {
	Path        string
	Action      string
	ContentHash string // SHA256 hash of the file content after the run
}

// HistoryEntry represents one complete run of the tool.
type HistoryEntry struct {
	RunID      string
	Timestamp  int64
	Operations []Operation
}

// Manager handles the lifecycle of the run log.
type Manager struct {
	statePath string
	history   []HistoryEntry
	StateDir  string
	now       func() time.Time
}

// New loads the run log kept under root.
func New(root string) (*Manager, error) {
	stateDir := filepath.Join(root, stateDirName)
	m := &Manager{
		statePath: filepath.Join(stateDir, stateFileName),
		StateDir:  stateDir,
		now:       time.Now,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	for _, block := range strings.Split(content, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		if len(lines) < 2 {
			return fmt.Errorf("invalid run log: incomplete run header")
		}

		ts, err := strconv.ParseInt(lines[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid run log: could not parse timestamp from '%s': %w", lines[0], err)
		}
		entry := HistoryEntry{Timestamp: ts, RunID: lines[1]}

		opLines := lines[2:]
		if len(opLines)%3 != 0 {
			return fmt.Errorf("invalid run log: incomplete operation record in run %s", entry.RunID)
		}
		for i := 0; i < len(opLines); i += 3 {
			entry.Operations = append(entry.Operations, Operation{
				Action:      opLines[i],
				Path:        opLines[i+1],
				ContentHash: opLines[i+2],
			})
		}
		m.history = append(m.history, entry)
	}
	return nil
}

func (m *Manager) save() error {
	var blocks []string
	for _, entry := range m.history {
		lines := []string{strconv.FormatInt(entry.Timestamp, 10), entry.RunID}
		for _, op := range entry.Operations {
			lines = append(lines, op.Action, op.Path, op.ContentHash)
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return fs.WriteFile(m.statePath, []byte(strings.Join(blocks, "\n\n")+"\n"))
}

// Write appends a run to the log, dropping the oldest runs beyond MaxHistory.
func (m *Manager) Write(runID string, operations []Operation) error {
	m.history = append(m.history, HistoryEntry{
		RunID:      runID,
		Timestamp:  m.now().UTC().Unix(),
		Operations: operations,
	})
	if len(m.history) > MaxHistory {
		m.history = m.history[len(m.history)-MaxHistory:]
	}
	return m.save()
}

// History returns the recorded runs, oldest first.
func (m *Manager) History() []HistoryEntry {
	return m.history
}

// Last returns the most recent run that produced a file at path.
func (m *Manager) Last(path string) (HistoryEntry, Operation, bool) {
	for i := len(m.history) - 1; i >= 0; i-- {
		for _, op := range m.history[i].Operations {
			if op.Path == path {
				return m.history[i], op, true
			}
		}
	}
	return HistoryEntry{}, Operation{}, false
}

// CreateOperations hashes the given files. paths are recorded relative to
// root when possible.
func CreateOperations(root, action string, paths []string) []Operation {
	ops := make([]Operation, 0, len(paths))
	for _, p := range paths {
		hash, err := fs.FileSHA256(p)
		if err != nil {
			// Recorded without a hash; the file may have been removed since.
			hash = "-"
		}
		rel := p
		if r, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(r, "..") {
			rel = filepath.ToSlash(r)
		}
		ops = append(ops, Operation{Path: rel, Action: action, ContentHash: hash})
	}
	return ops
}
