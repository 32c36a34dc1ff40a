package summarize

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// plainify flattens markdown to plain text by walking goldmark's parsed
// AST and concatenating text segments, inserting a space after each
// paragraph, heading, list item and code block and collapsing runs of
// whitespace. It exists so a tool result or assistant message
// that happens to contain its own Markdown (headings, code fences, lists)
// can't be mistaken for transcript structure when embedded in a rendered
// transcript line.
func plainify(markdown string) string {
	if markdown == "" {
		return ""
	}
	source := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.Kind() {
			case ast.KindParagraph, ast.KindHeading, ast.KindListItem, ast.KindCodeBlock, ast.KindFencedCodeBlock:
				if buf.Len() > 0 {
					buf.WriteByte(' ')
				}
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
		case *ast.String:
			buf.Write(node.Value)
		}
		if cb, ok := n.(*ast.CodeBlock); ok {
			lines := cb.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
		}
		if fcb, ok := n.(*ast.FencedCodeBlock); ok {
			lines := fcb.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})

	return collapseWhitespace(buf.String())
}

func collapseWhitespace(s string) string {
	var b []byte
	lastSpace := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		isSpace := c == ' ' || c == '\n' || c == '\t' || c == '\r'
		if isSpace {
			if lastSpace {
				continue
			}
			b = append(b, ' ')
			lastSpace = true
			continue
		}
		b = append(b, c)
		lastSpace = false
	}
	for len(b) > 0 && b[len(b)-1] == ' ' {
		b = b[:len(b)-1]
	}
	return string(b)
}
