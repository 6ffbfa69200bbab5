package ingest

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	quarry "github.com/davrk/quarry"
)

// markdownReader parses markdown with goldmark and emits one segment
// per top-level section (split on level 1–2 headings) of plain text.
type markdownReader struct{}

func (markdownReader) Read(content []byte) ([]quarry.Segment, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(text.NewReader(content))

	var segs []quarry.Segment
	var cur strings.Builder
	var heading string

	flush := func() {
		t := strings.TrimSpace(cur.String())
		cur.Reset()
		if t == "" {
			return
		}
		seg := quarry.Segment{Text: t}
		if heading != "" {
			seg.Metadata = map[string]string{"section": heading}
		}
		segs = append(segs, seg)
	}

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok && h.Level <= 2 {
			flush()
			heading = strings.TrimSpace(markdownNodeText(h, content))
			cur.WriteString(heading)
			cur.WriteString("\n\n")
			continue
		}
		cur.WriteString(markdownNodeText(node, content))
		cur.WriteString("\n\n")
	}
	flush()
	return segs, nil
}

// markdownNodeText collects the plain text under n, including fenced
// code block contents.
func markdownNodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := t.(interface{ Lines() *text.Segments }).Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
