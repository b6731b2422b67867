// Package document holds the data model shared across the refinement
// pipeline. Everything here is built once per run and never mutated
// afterwards.
package document

// Metadata describes a source PDF.
type Metadata struct {
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	PageCount int    `json:"page_count"`
	Encrypted bool   `json:"encrypted"`
}

// BoundingBox is a page-space rectangle. Position is advisory metadata
// carried through for exporters; it never affects enhancement.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TextBlock is a paragraph-level run of text with its position.
type TextBlock struct {
	Content     string      `json:"content"`
	BoundingBox BoundingBox `json:"bounding_box"`
	PageIndex   int         `json:"page_index"`
}

// Table is a detected grid of cells on a page.
type Table struct {
	Rows        [][]string  `json:"rows"`
	BoundingBox BoundingBox `json:"bounding_box"`
	PageIndex   int         `json:"page_index"`
}

// Page is the decoded content of a single PDF page.
type Page struct {
	Index      int         `json:"index"`
	TextBlocks []TextBlock `json:"text_blocks"`
	Tables     []Table     `json:"tables"`

	// HasImages distinguishes an image-only page from a truly empty one.
	HasImages bool `json:"has_images"`
}

// Document is the assembled, ordered content of a whole PDF.
type Document struct {
	Metadata Metadata `json:"metadata"`
	Pages    []Page   `json:"pages"`
}

// Tables returns all tables across pages in page order.
func (d *Document) Tables() []Table {
	var tables []Table
	for _, p := range d.Pages {
		tables = append(tables, p.Tables...)
	}
	return tables
}

// HasContent reports whether any page produced text or tables.
func (d *Document) HasContent() bool {
	for _, p := range d.Pages {
		if len(p.TextBlocks) > 0 || len(p.Tables) > 0 {
			return true
		}
	}
	return false
}

// HasImages reports whether any page contains image objects.
func (d *Document) HasImages() bool {
	for _, p := range d.Pages {
		if p.HasImages {
			return true
		}
	}
	return false
}

// OffsetRange is a half-open byte range [Start, End) into the
// concatenated document text.
type OffsetRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Chunk is a bounded, order-tagged slice of the document text submitted
// as one enhancement unit. Concatenating all chunks' Text in Seq order
// reproduces the source text exactly.
type Chunk struct {
	Seq   int         `json:"seq"`
	Text  string      `json:"text"`
	Range OffsetRange `json:"range"`
}

// ChunkStatus is the terminal state of one chunk.
type ChunkStatus string

const (
	ChunkSuccess ChunkStatus = "success"
	ChunkFailed  ChunkStatus = "failed"
)

// ErrorKind classifies why a chunk failed. Aggregated into FailedRange
// reason codes for the caller.
type ErrorKind string

const (
	ErrKindNone         ErrorKind = ""
	ErrKindTimeout      ErrorKind = "timeout"
	ErrKindRateLimited  ErrorKind = "rate_limited"
	ErrKindTransient    ErrorKind = "transient"
	ErrKindAuth         ErrorKind = "auth"
	ErrKindInvalidInput ErrorKind = "invalid_input"
	ErrKindCanceled     ErrorKind = "canceled"
)

// ChunkResult is the outcome of enhancing one chunk. Written exactly once
// by the worker that processed the chunk.
type ChunkResult struct {
	Seq      int         `json:"seq"`
	Status   ChunkStatus `json:"status"`
	Enhanced string      `json:"enhanced,omitempty"`
	ErrKind  ErrorKind   `json:"error_kind,omitempty"`
	Attempts int         `json:"attempts"`
}

// FailedRange marks a span of the source text that retained its original
// wording, with the reason enhancement did not happen.
type FailedRange struct {
	OffsetRange
	Reason ErrorKind `json:"reason"`
}

// EnhancementStats summarizes a run for status reporting.
type EnhancementStats struct {
	TotalChunks   int `json:"total_chunks"`
	Enhanced      int `json:"enhanced"`
	Failed        int `json:"failed"`
	TotalAttempts int `json:"total_attempts"`
}

// EnhancedDocument is the pipeline's final output: the source document
// plus the reassembled text. FailedRanges flags spans that kept their
// original text so a downstream exporter can mark them; Canceled reports
// a deliberately stopped, best-effort run.
type EnhancedDocument struct {
	Document     *Document        `json:"document"`
	SourceText   string           `json:"source_text"`
	EnhancedText string           `json:"enhanced_text"`
	FailedRanges []FailedRange    `json:"failed_ranges"`
	Canceled     bool             `json:"canceled,omitempty"`
	Stats        EnhancementStats `json:"stats"`
}
