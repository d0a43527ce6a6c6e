package parser

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// diffLangs are the fence info strings treated as diff content.
var diffLangs = map[string]bool{"diff": true, "patch": true}

// DiffBlocks walks the markdown AST of source and returns the bodies of the
// fenced code blocks tagged diff or patch, in document order.
func DiffBlocks(source []byte) ([]string, error) {
	var blocks []string
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	err := ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if !diffLangs[strings.ToLower(string(fenced.Language(source)))] {
			return ast.WalkSkipChildren, nil
		}

		var body strings.Builder
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			body.Write(seg.Value(source))
		}
		blocks = append(blocks, body.String())
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

// UnwrapDiff returns the concatenated diff blocks of a markdown document,
// such as a diff pasted into a PR comment. Raw git output, or content that
// holds no diff blocks, is returned unchanged.
func UnwrapDiff(content string) (string, error) {
	if isRawDiff(content) {
		return content, nil
	}
	blocks, err := DiffBlocks([]byte(content))
	if err != nil {
		return "", err
	}
	if len(blocks) == 0 {
		return content, nil
	}

	var b strings.Builder
	for _, block := range blocks {
		b.WriteString(block)
		if !strings.HasSuffix(block, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// isRawDiff reports whether a git file header comes before any code fence,
// as in `git diff`, `git show` or `git log -p` output. A fenced line inside
// such a diff is diff content, not markdown.
func isRawDiff(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "diff --git ") {
			return true
		}
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			return false
		}
	}
	return false
}
