package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func reassemble(t *testing.T, text string, opts Options) string {
	t.Helper()
	chunks, err := Split(text, opts)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	var sb strings.Builder
	for i, c := range chunks {
		if c.Seq != i {
			t.Errorf("expected seq %d, got %d", i, c.Seq)
		}
		if c.Range.Start != sb.Len() {
			t.Errorf("chunk %d: expected range start %d, got %d", i, sb.Len(), c.Range.Start)
		}
		if c.Range.End-c.Range.Start != len(c.Text) {
			t.Errorf("chunk %d: range width %d does not match text length %d", i, c.Range.End-c.Range.Start, len(c.Text))
		}
		if text[c.Range.Start:c.Range.End] != c.Text {
			t.Errorf("chunk %d: range does not slice back to chunk text", i)
		}
		sb.WriteString(c.Text)
	}
	return sb.String()
}

func TestSplit_Lossless(t *testing.T) {
	texts := []string{
		"short",
		strings.Repeat("The quick brown fox jumps over the lazy dog. ", 100),
		"First paragraph with some text.\n\nSecond paragraph, a bit longer than the first one.\n\nThird.",
		strings.Repeat("word ", 5000),
	}
	for _, text := range texts {
		got := reassemble(t, text, DefaultOptions())
		if got != text {
			t.Errorf("reassembled text differs from input (len %d vs %d)", len(got), len(text))
		}
	}
}

func TestSplit_LosslessUnicode(t *testing.T) {
	text := strings.Repeat("Résumé naïve façade — 日本語のテキスト。", 200)
	got := reassemble(t, text, Options{MaxChunkSize: 100, MinChunkSize: 20})
	if got != text {
		t.Error("reassembled unicode text differs from input")
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("Some sentence here. Another one follows! A third?\n\n", 50)
	opts := Options{MaxChunkSize: 300, MinChunkSize: 50}
	a, err := Split(text, opts)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	b, err := Split(text, opts)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("expected identical chunk counts, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSplit_RespectsBounds(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 200)
	opts := Options{MaxChunkSize: 250, MinChunkSize: 100}
	chunks, err := Split(text, opts)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	for i, c := range chunks {
		if len(c.Text) > opts.MaxChunkSize {
			t.Errorf("chunk %d exceeds max: %d bytes", i, len(c.Text))
		}
		if i < len(chunks)-1 && len(c.Text) < opts.MinChunkSize {
			t.Errorf("non-final chunk %d below min: %d bytes", i, len(c.Text))
		}
	}
}

func TestSplit_SentenceBoundaries(t *testing.T) {
	chunks, err := Split("A. B. C.", Options{MaxChunkSize: 4, MinChunkSize: 1})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	want := []string{"A. ", "B. ", "C."}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, c := range chunks {
		if c.Text != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], c.Text)
		}
	}
}

func TestSplit_PrefersParagraphBreak(t *testing.T) {
	// A paragraph break and a later sentence break both fit in the
	// window; the paragraph break wins.
	text := "First paragraph ends here.\n\nSecond one. It keeps going for a while after the break."
	chunks, err := Split(text, Options{MaxChunkSize: 45, MinChunkSize: 10})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if got := chunks[0].Text; got != "First paragraph ends here.\n\n" {
		t.Errorf("expected first chunk to end at paragraph break, got %q", got)
	}
}

func TestSplit_NeverSplitsWords(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta epsilon ", 100)
	chunks, err := Split(text, Options{MaxChunkSize: 37, MinChunkSize: 5})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	for i, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c.Text, " ") {
			t.Errorf("chunk %d does not end on a word boundary: %q", i, c.Text)
		}
	}
}

func TestSplit_HardCutLongWord(t *testing.T) {
	// No whitespace at all: the cutter must hard-cut, on rune
	// boundaries, and still reassemble losslessly.
	text := strings.Repeat("é", 500)
	chunks, err := Split(text, Options{MaxChunkSize: 101, MinChunkSize: 50})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	var sb strings.Builder
	for i, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d splits a multi-byte rune", i)
		}
		sb.WriteString(c.Text)
	}
	if sb.String() != text {
		t.Error("reassembled text differs from input")
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	chunks, err := Split("", DefaultOptions())
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if chunks != nil {
		t.Errorf("expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestSplit_InvalidBounds(t *testing.T) {
	cases := []Options{
		{MaxChunkSize: 0, MinChunkSize: 0},
		{MaxChunkSize: -5, MinChunkSize: 0},
		{MaxChunkSize: 100, MinChunkSize: -1},
		{MaxChunkSize: 100, MinChunkSize: 200},
	}
	for _, opts := range cases {
		if _, err := Split("text", opts); !errors.Is(err, errBadBounds) {
			t.Errorf("expected bounds error for %+v, got %v", opts, err)
		}
	}
}

func TestSplit_SingleChunkWhenSmall(t *testing.T) {
	text := "fits in one chunk"
	chunks, err := Split(text, DefaultOptions())
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("expected chunk text %q, got %q", text, chunks[0].Text)
	}
}
