package enhance

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
)

var sanitizeMD = goldmark.New()

// Sanitize undoes the markdown wrapping chat models sometimes add
// around an otherwise plain answer. If the whole response is a single
// fenced code block, the fence is stripped and the inner text returned;
// anything else passes through untouched apart from trimming.
func Sanitize(response string) string {
	trimmed := strings.TrimSpace(response)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	src := []byte(trimmed)
	doc := sanitizeMD.Parser().Parse(gtext.NewReader(src))

	first := doc.FirstChild()
	if first == nil || first.NextSibling() != nil {
		return trimmed
	}
	fence, ok := first.(*ast.FencedCodeBlock)
	if !ok {
		return trimmed
	}

	var buf bytes.Buffer
	lines := fence.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return strings.TrimSpace(buf.String())
}
