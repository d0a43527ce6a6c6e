package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/sokinpui/shopdiff.go/model"
)

const (
	arrow     = " -> "
	separator = ", "
)

var linePattern = regexp.MustCompile(`^([\w-]+) -> (.+)$`)

// Write emits one `<Section> -> id1, id2` line per section.
func Write(w io.Writer, changed model.ChangedIDs) error {
	bw := bufio.NewWriter(w)
	for _, s := range changed {
		if len(s.IDs) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(bw, "%s%s%s\n", s.Section, arrow, strings.Join(s.IDs, separator)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Format returns the manifest text for changed.
func Format(changed model.ChangedIDs) string {
	var b strings.Builder
	_ = Write(&b, changed)
	return b.String()
}

// Read parses manifest lines. Lines that do not look like `<Section> -> ids`
// are skipped. A section listed twice keeps its last line.
func Read(r io.Reader) (model.ChangedIDs, error) {
	changed := model.ChangedIDs{}
	index := make(map[string]int)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		match := linePattern.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if match == nil {
			continue
		}
		entry := model.SectionIDs{Section: match[1], IDs: strings.Split(match[2], separator)}
		if i, ok := index[entry.Section]; ok {
			changed[i] = entry
			continue
		}
		index[entry.Section] = len(changed)
		changed = append(changed, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return changed, nil
}

// ReadFile parses the manifest at path. The returned error wraps
// os.ErrNotExist when the file is absent.
func ReadFile(path string) (model.ChangedIDs, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
