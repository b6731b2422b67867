package reader

import (
	"github.com/pdfrefine/pdfrefine/internal/document"
)

// Table detection heuristics. A line whose runs split into two or more
// cells (separated by gaps wider than cellGap points) is a candidate
// table row; a streak of candidate rows becomes a table when enough of
// them agree on a column count. Detection is best-effort: a miss just
// means no table output, never an error, and the text still reaches the
// text blocks untouched.
const (
	cellGap           = 12.0
	minTableRows      = 2
	minTableCols      = 2
	minColConsistency = 0.6
)

// detectTables scans a page's lines for grids of aligned cells.
func detectTables(lines []line, pageIndex int) []document.Table {
	var tables []document.Table
	var streak []line

	flush := func() {
		if t, ok := tableFromStreak(streak, pageIndex); ok {
			tables = append(tables, t)
		}
		streak = nil
	}

	for _, l := range lines {
		if len(splitCells(l)) >= minTableCols {
			streak = append(streak, l)
			continue
		}
		flush()
	}
	flush()
	return tables
}

// splitCells cuts a line into cell strings at wide horizontal gaps.
func splitCells(l line) []string {
	var cells []string
	var cur []textRun
	for i, r := range l.runs {
		if i > 0 {
			prev := l.runs[i-1]
			if r.x-(prev.x+prev.w) > cellGap {
				cells = appendCell(cells, cur)
				cur = nil
			}
		}
		cur = append(cur, r)
	}
	cells = appendCell(cells, cur)
	return cells
}

func appendCell(cells []string, runs []textRun) []string {
	if len(runs) == 0 {
		return cells
	}
	text := line{y: runs[0].y, runs: runs}.text()
	if text == "" {
		return cells
	}
	return append(cells, text)
}

// tableFromStreak turns a run of candidate rows into a table if the rows
// agree on a dominant column count. Rows with a different cell count are
// skipped rather than force-fit.
func tableFromStreak(streak []line, pageIndex int) (document.Table, bool) {
	if len(streak) < minTableRows {
		return document.Table{}, false
	}

	colCounts := make(map[int]int)
	for _, l := range streak {
		colCounts[len(splitCells(l))]++
	}
	dominant, freq := 0, 0
	for count, n := range colCounts {
		if n > freq {
			dominant, freq = count, n
		}
	}
	if dominant < minTableCols {
		return document.Table{}, false
	}
	if float64(freq)/float64(len(streak)) < minColConsistency {
		return document.Table{}, false
	}

	var rows [][]string
	kept := streak[:0:0]
	for _, l := range streak {
		cells := splitCells(l)
		if len(cells) != dominant {
			continue
		}
		rows = append(rows, cells)
		kept = append(kept, l)
	}
	if len(rows) < minTableRows {
		return document.Table{}, false
	}

	left, right := kept[0].bounds()
	top := kept[0].y + kept[0].height()
	bottom := kept[len(kept)-1].y
	for _, l := range kept[1:] {
		ll, rr := l.bounds()
		if ll < left {
			left = ll
		}
		if rr > right {
			right = rr
		}
	}

	return document.Table{
		Rows:      rows,
		PageIndex: pageIndex,
		BoundingBox: document.BoundingBox{
			X:      left,
			Y:      bottom,
			Width:  right - left,
			Height: top - bottom,
		},
	}, true
}
