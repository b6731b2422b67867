package assembler

import (
	"errors"
	"io"
	"testing"

	"github.com/pdfrefine/pdfrefine/internal/document"
)

// fakeSource replays a fixed slice of pages.
type fakeSource struct {
	meta  document.Metadata
	pages []document.Page
}

func (s *fakeSource) Metadata() document.Metadata { return s.meta }

func (s *fakeSource) Pages() *PageStream {
	i := 0
	return &PageStream{
		Next: func() (*document.Page, error) {
			if i >= len(s.pages) {
				return nil, io.EOF
			}
			p := s.pages[i]
			i++
			return &p, nil
		},
	}
}

func block(content string, x, y, w, h float64) document.TextBlock {
	return document.TextBlock{
		Content:     content,
		BoundingBox: document.BoundingBox{X: x, Y: y, Width: w, Height: h},
	}
}

func TestAssemble_DeterministicOrder(t *testing.T) {
	// Blocks arrive shuffled; output must be page order, then top to
	// bottom, then left to right.
	src := &fakeSource{
		meta: document.Metadata{PageCount: 2},
		pages: []document.Page{
			{Index: 0, TextBlocks: []document.TextBlock{
				block("bottom", 50, 100, 200, 12),
				block("top-right", 300, 700, 200, 12),
				block("top-left", 50, 700, 200, 12),
			}},
			{Index: 1, TextBlocks: []document.TextBlock{
				block("second page", 50, 700, 200, 12),
			}},
		},
	}

	doc, text, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	want := "top-left\n\ntop-right\n\nbottom\n\nsecond page"
	if text != want {
		t.Errorf("expected %q, got %q", want, text)
	}
	if len(doc.Pages) != 2 {
		t.Errorf("expected 2 pages, got %d", len(doc.Pages))
	}
	if got := doc.Pages[0].TextBlocks[0].Content; got != "top-left" {
		t.Errorf("expected first block %q, got %q", "top-left", got)
	}
}

func TestAssemble_RepeatedRunsIdentical(t *testing.T) {
	pages := []document.Page{
		{Index: 0, TextBlocks: []document.TextBlock{
			block("a", 10, 500, 100, 12),
			block("b", 10, 500, 100, 12), // same position, stable order
			block("c", 10, 200, 100, 12),
		}},
	}

	_, first, err := Assemble(&fakeSource{pages: pages})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	_, second, err := Assemble(&fakeSource{pages: pages})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if first != second {
		t.Error("expected identical text across runs")
	}
	if first != "a\n\nb\n\nc" {
		t.Errorf("expected stable tie-break order, got %q", first)
	}
}

func TestAssemble_EmptyDocument(t *testing.T) {
	src := &fakeSource{pages: []document.Page{{Index: 0}, {Index: 1}}}
	_, _, err := Assemble(src)
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestAssemble_ImageOnlyIsNotAnError(t *testing.T) {
	src := &fakeSource{
		meta:  document.Metadata{PageCount: 1},
		pages: []document.Page{{Index: 0, HasImages: true}},
	}
	doc, text, err := Assemble(src)
	if err != nil {
		t.Fatalf("expected image-only document to assemble, got %v", err)
	}
	if text != "" {
		t.Errorf("expected zero-content text, got %q", text)
	}
	if !doc.HasImages() {
		t.Error("expected HasImages to survive assembly")
	}
}

func TestAssemble_TablesSortedAndCleaned(t *testing.T) {
	src := &fakeSource{
		pages: []document.Page{
			{Index: 0,
				TextBlocks: []document.TextBlock{block("intro", 10, 700, 100, 12)},
				Tables: []document.Table{
					{
						Rows:        [][]string{{" Name ", "Qty\x00"}, {"bolt", " 4"}},
						BoundingBox: document.BoundingBox{X: 10, Y: 100, Width: 300, Height: 50},
					},
					{
						Rows:        [][]string{{"upper"}},
						BoundingBox: document.BoundingBox{X: 10, Y: 400, Width: 300, Height: 50},
					},
				},
			},
		},
	}

	doc, _, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	tables := doc.Tables()
	if len(tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(tables))
	}
	if tables[0].Rows[0][0] != "upper" {
		t.Errorf("expected higher table first, got %q", tables[0].Rows[0][0])
	}
	if got := tables[1].Rows[0][1]; got != "Qty" {
		t.Errorf("expected cleaned cell %q, got %q", "Qty", got)
	}
}

func TestAssemble_PropagatesStreamError(t *testing.T) {
	streamErr := errors.New("page 3 unreadable")
	src := &PageStream{Next: func() (*document.Page, error) { return nil, streamErr }}
	_, _, err := Assemble(&errSource{stream: src})
	if !errors.Is(err, streamErr) {
		t.Fatalf("expected wrapped stream error, got %v", err)
	}
}

type errSource struct {
	stream *PageStream
}

func (s *errSource) Metadata() document.Metadata { return document.Metadata{} }
func (s *errSource) Pages() *PageStream          { return s.stream }

func TestCleanText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips artifacts",
			in:   "before\fafter\x00end\r",
			want: "beforeafterend",
		},
		{
			name: "rejoins hyphen breaks",
			in:   "a hyphen-\nated word",
			want: "a hyphenated word",
		},
		{
			name: "collapses runs of spaces and tabs",
			in:   "too   many\t\tspaces",
			want: "too many spaces",
		},
		{
			name: "collapses blank line runs",
			in:   "one\n\n\n\n\ntwo",
			want: "one\n\ntwo",
		},
		{
			name: "trims per line and overall",
			in:   "  line one  \n  line two  ",
			want: "line one\nline two",
		},
		{
			name: "nfc normalization",
			in:   "cafe\u0301",
			want: "caf\u00e9",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanText(tc.in); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
