// Package chunker splits document text into bounded, order-tagged
// chunks at paragraph or sentence boundaries. Concatenating the chunks
// in sequence order reproduces the input byte for byte.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pdfrefine/pdfrefine/internal/document"
)

// Options controls chunk sizing, in bytes.
type Options struct {
	MaxChunkSize int
	MinChunkSize int
}

// DefaultOptions mirrors the service defaults: chunks around 1000 bytes,
// never below 200 except for the final remainder.
func DefaultOptions() Options {
	return Options{MaxChunkSize: 1000, MinChunkSize: 200}
}

var errBadBounds = errors.New("chunker: invalid size bounds")

// Validate checks the size bounds.
func (o Options) Validate() error {
	if o.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: max %d must be positive", errBadBounds, o.MaxChunkSize)
	}
	if o.MinChunkSize < 0 {
		return fmt.Errorf("%w: min %d must not be negative", errBadBounds, o.MinChunkSize)
	}
	if o.MinChunkSize > o.MaxChunkSize {
		return fmt.Errorf("%w: min %d exceeds max %d", errBadBounds, o.MinChunkSize, o.MaxChunkSize)
	}
	return nil
}

// Split cuts text into chunks. Greedy boundary-seeking: fill up to
// MaxChunkSize, then back off to the latest paragraph break, else
// sentence break, else word boundary, else a hard cut on a rune
// boundary. Every chunk except the last lands in [Min, Max]; output is
// deterministic for identical input and options.
func Split(text string, opts Options) ([]document.Chunk, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	min := opts.MinChunkSize
	if min == 0 {
		min = 1
	}

	var chunks []document.Chunk
	start := 0
	for start < len(text) {
		remaining := len(text) - start
		var size int
		if remaining <= opts.MaxChunkSize {
			size = remaining
		} else {
			size = findCut(text[start:start+opts.MaxChunkSize], min)
		}
		chunks = append(chunks, document.Chunk{
			Seq:  len(chunks),
			Text: text[start : start+size],
			Range: document.OffsetRange{
				Start: start,
				End:   start + size,
			},
		})
		start += size
	}
	return chunks, nil
}

// findCut picks the cut position within a full window, preferring the
// latest safe boundary that still leaves at least min bytes.
func findCut(window string, min int) int {
	if cut := lastParagraphBreak(window); cut >= min {
		return cut
	}
	if cut := lastSentenceBreak(window); cut >= min {
		return cut
	}
	if cut := lastWordBreak(window); cut >= min {
		return cut
	}
	return runeAlignedCut(window)
}

// lastParagraphBreak returns the position just after the last blank
// line, or 0 if there is none.
func lastParagraphBreak(window string) int {
	idx := strings.LastIndex(window, "\n\n")
	if idx < 0 {
		return 0
	}
	return idx + 2
}

// lastSentenceBreak returns the position just after the last
// terminator-plus-space sequence, or 0.
func lastSentenceBreak(window string) int {
	for i := len(window) - 2; i >= 0; i-- {
		c := window[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		next := window[i+1]
		if next == ' ' || next == '\n' {
			return i + 2
		}
	}
	return 0
}

// lastWordBreak returns the position just after the last whitespace
// byte, or 0. Cutting here never splits a word.
func lastWordBreak(window string) int {
	idx := strings.LastIndexAny(window, " \n\t")
	if idx < 0 {
		return 0
	}
	return idx + 1
}

// runeAlignedCut is the last resort for a window with no usable
// boundary (one enormous word): cut at the window end, backing off any
// trailing UTF-8 sequence the window truncates.
func runeAlignedCut(window string) int {
	cut := len(window)
	for i := len(window) - 1; i >= 0 && len(window)-i < utf8.UTFMax; i-- {
		if !utf8.RuneStart(window[i]) {
			continue
		}
		if r, _ := utf8.DecodeRuneInString(window[i:]); r == utf8.RuneError {
			cut = i
		}
		break
	}
	if cut < 1 {
		cut = 1
	}
	return cut
}
