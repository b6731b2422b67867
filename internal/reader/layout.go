package reader

import (
	"sort"
	"strings"

	"github.com/pdfrefine/pdfrefine/internal/document"
)

// textRun is one positioned text fragment from a page's content stream.
// Y is the baseline in PDF coordinates (origin bottom-left, Y grows up).
type textRun struct {
	x, y, w float64
	size    float64
	s       string
}

// Layout tolerances, in points. Runs within lineTolerance of a baseline
// belong to the same line; a vertical gap larger than paraGapFactor times
// the line height starts a new paragraph block.
const (
	lineTolerance     = 2.0
	paraGapFactor     = 1.8
	defaultLineHeight = 12.0
)

// line is a row of runs sharing a baseline, ordered left to right.
type line struct {
	y    float64
	runs []textRun
}

// groupLines buckets runs into baseline rows, top of page first.
func groupLines(runs []textRun) []line {
	if len(runs) == 0 {
		return nil
	}
	sorted := make([]textRun, len(runs))
	copy(sorted, runs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].y != sorted[j].y {
			return sorted[i].y > sorted[j].y // higher Y = higher on page
		}
		return sorted[i].x < sorted[j].x
	})

	var lines []line
	cur := line{y: sorted[0].y, runs: []textRun{sorted[0]}}
	for _, r := range sorted[1:] {
		if cur.y-r.y <= lineTolerance {
			cur.runs = append(cur.runs, r)
			continue
		}
		lines = append(lines, cur)
		cur = line{y: r.y, runs: []textRun{r}}
	}
	lines = append(lines, cur)

	for i := range lines {
		sort.Slice(lines[i].runs, func(a, b int) bool {
			return lines[i].runs[a].x < lines[i].runs[b].x
		})
	}
	return lines
}

// text joins a line's runs, inserting a space wherever the horizontal
// gap between fragments is wider than a quarter of the font size.
func (l line) text() string {
	var sb strings.Builder
	for i, r := range l.runs {
		if i > 0 {
			prev := l.runs[i-1]
			gap := r.x - (prev.x + prev.w)
			if gap > spaceThreshold(prev.size) && !strings.HasSuffix(sb.String(), " ") {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(r.s)
	}
	return strings.TrimSpace(sb.String())
}

func spaceThreshold(fontSize float64) float64 {
	if fontSize <= 0 {
		fontSize = defaultLineHeight
	}
	return fontSize * 0.25
}

func (l line) height() float64 {
	h := 0.0
	for _, r := range l.runs {
		if r.size > h {
			h = r.size
		}
	}
	if h == 0 {
		h = defaultLineHeight
	}
	return h
}

func (l line) bounds() (left, right float64) {
	left = l.runs[0].x
	right = l.runs[0].x + l.runs[0].w
	for _, r := range l.runs[1:] {
		if r.x < left {
			left = r.x
		}
		if r.x+r.w > right {
			right = r.x + r.w
		}
	}
	return left, right
}

// buildBlocks merges consecutive lines into paragraph blocks. Lines
// separated by more than paraGapFactor line heights start a new block.
func buildBlocks(lines []line, pageIndex int) []document.TextBlock {
	var blocks []document.TextBlock
	var group []line

	flush := func() {
		if len(group) == 0 {
			return
		}
		if b, ok := blockFromLines(group, pageIndex); ok {
			blocks = append(blocks, b)
		}
		group = nil
	}

	for i, l := range lines {
		if len(group) > 0 {
			prev := group[len(group)-1]
			gap := prev.y - l.y
			if gap > paraGapFactor*prev.height() {
				flush()
			}
		}
		group = append(group, lines[i])
	}
	flush()
	return blocks
}

func blockFromLines(group []line, pageIndex int) (document.TextBlock, bool) {
	var parts []string
	for _, l := range group {
		if t := l.text(); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return document.TextBlock{}, false
	}

	left, right := group[0].bounds()
	top := group[0].y + group[0].height()
	bottom := group[len(group)-1].y
	for _, l := range group[1:] {
		ll, rr := l.bounds()
		if ll < left {
			left = ll
		}
		if rr > right {
			right = rr
		}
	}

	return document.TextBlock{
		Content:   strings.Join(parts, "\n"),
		PageIndex: pageIndex,
		BoundingBox: document.BoundingBox{
			X:      left,
			Y:      bottom,
			Width:  right - left,
			Height: top - bottom,
		},
	}, true
}
