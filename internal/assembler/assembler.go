// Package assembler turns a page stream into an ordered document model
// and the single concatenated text the chunker operates on.
package assembler

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pdfrefine/pdfrefine/internal/document"
)

// ErrEmptyDocument means no page produced text, tables, or images.
// An image-only document is not an error; it assembles to a
// zero-content Document and the caller decides what to do with it.
var ErrEmptyDocument = errors.New("document contains no extractable content")

// Source is the page-stream capability the reader provides: metadata up
// front, then a lazy forward-only sequence of pages.
type Source interface {
	Metadata() document.Metadata
	Pages() *PageStream
}

// PageStream adapts any page-yielding function to the assembler.
// The reader wraps its iterator in one of these.
type PageStream struct {
	Next func() (*document.Page, error)
}

// Assemble drains the source and produces the document model plus the
// concatenated, preprocessed text. Block order is deterministic: page
// index ascending, then top-to-bottom, then left-to-right.
func Assemble(src Source) (*document.Document, string, error) {
	doc := &document.Document{Metadata: src.Metadata()}

	stream := src.Pages()
	for {
		page, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("read page: %w", err)
		}
		sortPage(page)
		for i := range page.Tables {
			page.Tables[i].Rows = CleanTable(page.Tables[i].Rows)
		}
		doc.Pages = append(doc.Pages, *page)
	}

	if !doc.HasContent() {
		if doc.HasImages() {
			// Image-only: legitimate zero-content document.
			return doc, "", nil
		}
		return nil, "", ErrEmptyDocument
	}

	return doc, concatText(doc), nil
}

// sortPage orders a page's blocks by vertical position (top first),
// breaking ties left-to-right so output is reproducible across runs.
func sortPage(page *document.Page) {
	sort.SliceStable(page.TextBlocks, func(i, j int) bool {
		a, b := page.TextBlocks[i].BoundingBox, page.TextBlocks[j].BoundingBox
		topA, topB := a.Y+a.Height, b.Y+b.Height
		if topA != topB {
			return topA > topB
		}
		return a.X < b.X
	})
	sort.SliceStable(page.Tables, func(i, j int) bool {
		a, b := page.Tables[i].BoundingBox, page.Tables[j].BoundingBox
		topA, topB := a.Y+a.Height, b.Y+b.Height
		if topA != topB {
			return topA > topB
		}
		return a.X < b.X
	})
}

// concatText joins all blocks in document order with blank lines and
// runs the cleanup pass over the result.
func concatText(doc *document.Document) string {
	var sb strings.Builder
	for _, page := range doc.Pages {
		for _, block := range page.TextBlocks {
			if block.Content == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(block.Content)
		}
	}
	return CleanText(sb.String())
}
