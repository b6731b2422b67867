// Package reader opens PDF documents and yields their pages lazily.
// Text extraction is position-aware; table detection is best-effort.
package reader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pdfrefine/pdfrefine/internal/document"
)

// Input errors. These fail the whole run and are never retried.
var (
	ErrEncryptedWithoutPassword = errors.New("pdf is encrypted and no password was provided")
	ErrInvalidPassword          = errors.New("pdf password is invalid")
	ErrCorruptDocument          = errors.New("pdf is corrupt or truncated")
	ErrUnsupportedFormat        = errors.New("file is not a supported pdf")
	ErrFileTooLarge             = errors.New("file exceeds the configured size limit")
)

// maxPasswordAttempts bounds decryption retries. Three consecutive
// failures classify as an invalid password instead of looping.
const maxPasswordAttempts = 3

// DocumentHandle is an open PDF. Pages are decoded on demand so memory
// stays bounded by one page, not the whole document.
type DocumentHandle struct {
	f       *os.File
	tmpPath string // decrypted copy, removed on Close
	r       *pdflib.Reader
	meta    document.Metadata
}

// Open opens the PDF at path, decrypting with password if needed.
// maxBytes of 0 means no size limit.
func Open(path, password string, maxBytes int64) (*DocumentHandle, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if maxBytes > 0 && fi.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, fi.Size(), maxBytes)
	}
	if err := sniffHeader(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	attempts := 0
	pw := func() string {
		if password == "" || attempts >= maxPasswordAttempts {
			return ""
		}
		attempts++
		return password
	}

	r, err := pdflib.NewReaderEncrypted(f, fi.Size(), pw)
	if err != nil {
		f.Close()
		switch {
		case errors.Is(err, pdflib.ErrInvalidPassword) && password == "":
			return nil, ErrEncryptedWithoutPassword
		case errors.Is(err, pdflib.ErrInvalidPassword):
			// The pure-Go reader only speaks older encryption schemes.
			// Let pdfcpu try before declaring the password wrong.
			return openViaDecrypt(path, password)
		default:
			return nil, classifyOpenError(path, password, err)
		}
	}

	h := &DocumentHandle{f: f, r: r}
	h.meta = extractMetadata(r, attempts > 0)
	return h, nil
}

// openViaDecrypt writes a decrypted temp copy with pdfcpu and reopens it.
func openViaDecrypt(path, password string) (*DocumentHandle, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp("", "pdfrefine-dec-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password
	if err := api.Decrypt(in, tmp, conf); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		// We already know the file is encrypted; a failed decrypt with
		// the supplied password means the password is wrong.
		return nil, fmt.Errorf("%w: %s", ErrInvalidPassword, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("reopen decrypted copy: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("stat decrypted copy: %w", err)
	}
	r, err := pdflib.NewReader(f, fi.Size())
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: %s", ErrCorruptDocument, err)
	}

	h := &DocumentHandle{f: f, tmpPath: tmpPath, r: r}
	h.meta = extractMetadata(r, true)
	return h, nil
}

// classifyOpenError distinguishes a corrupt file from a valid PDF the
// text extractor cannot parse, using pdfcpu's validator as the referee.
func classifyOpenError(path, password string, cause error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrCorruptDocument, cause)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password
	if _, err := api.ReadValidateAndOptimize(f, conf); err != nil {
		return fmt.Errorf("%w: %s", ErrCorruptDocument, cause)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, cause)
}

// sniffHeader rejects files that are not PDFs at all before any parsing.
// PDF allows junk bytes before the %PDF- marker, so search the first 1KB.
func sniffHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if !bytes.Contains(buf[:n], []byte("%PDF-")) {
		return ErrUnsupportedFormat
	}
	return nil
}

func extractMetadata(r *pdflib.Reader, encrypted bool) document.Metadata {
	meta := document.Metadata{
		PageCount: r.NumPage(),
		Encrypted: encrypted,
	}
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return meta
	}
	meta.Title = stringValue(info.Key("Title"))
	meta.Author = stringValue(info.Key("Author"))
	return meta
}

func stringValue(v pdflib.Value) string {
	if v.Kind() != pdflib.String {
		return ""
	}
	return v.Text()
}

// Metadata returns the document's metadata. Available immediately after
// Open without decoding any page.
func (h *DocumentHandle) Metadata() document.Metadata {
	return h.meta
}

// Pages returns a fresh forward-only iterator over the document's pages.
func (h *DocumentHandle) Pages() *PageIterator {
	return &PageIterator{h: h}
}

// Close releases the underlying file and any decrypted temp copy.
func (h *DocumentHandle) Close() error {
	err := h.f.Close()
	if h.tmpPath != "" {
		os.Remove(h.tmpPath)
	}
	return err
}

// PageIterator walks pages front to back. It is restartable only from
// the beginning, via Reset.
type PageIterator struct {
	h    *DocumentHandle
	next int // 0-based index of the next page to decode
}

// Next decodes and returns the next page, or io.EOF after the last one.
func (it *PageIterator) Next() (*document.Page, error) {
	if it.next >= it.h.r.NumPage() {
		return nil, io.EOF
	}
	idx := it.next
	it.next++
	page := it.h.decodePage(idx)
	return page, nil
}

// Reset rewinds the iterator to the first page.
func (it *PageIterator) Reset() {
	it.next = 0
}

// decodePage extracts one page's blocks, tables, and image flag.
// Extraction faults on a single page degrade that page to empty rather
// than failing the document.
func (h *DocumentHandle) decodePage(idx int) *document.Page {
	page := &document.Page{Index: idx}

	p := h.r.Page(idx + 1)
	if p.V.IsNull() {
		return page
	}
	page.HasImages = pageHasImages(p)

	runs := collectRuns(p)
	if len(runs) == 0 {
		return page
	}
	lines := groupLines(runs)
	page.TextBlocks = buildBlocks(lines, idx)
	page.Tables = detectTables(lines, idx)
	return page
}

// collectRuns pulls positioned text fragments off a page. The content
// parser panics on some malformed font programs, so recover and report
// no runs for that page.
func collectRuns(p pdflib.Page) (runs []textRun) {
	defer func() {
		if recover() != nil {
			runs = nil
		}
	}()
	content := p.Content()
	runs = make([]textRun, 0, len(content.Text))
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		runs = append(runs, textRun{
			x: t.X, y: t.Y, w: t.W,
			size: t.FontSize,
			s:    t.S,
		})
	}
	return runs
}

// pageHasImages checks the page's XObject resources for image streams.
func pageHasImages(p pdflib.Page) (has bool) {
	defer func() {
		if recover() != nil {
			has = false
		}
	}()
	xobj := p.Resources().Key("XObject")
	if xobj.Kind() != pdflib.Dict {
		return false
	}
	for _, name := range xobj.Keys() {
		if xobj.Key(name).Key("Subtype").Name() == "Image" {
			return true
		}
	}
	return false
}
