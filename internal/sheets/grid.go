package sheets

import "aspire/internal/core"

// Grid is a whole sheet held in memory, row 1 first. Adapters without a
// server-side range engine read and write through it.
type Grid [][]string

// Slice returns the cells of g inside r the way the Sheets API reports them:
// trailing empty cells and trailing empty rows are left out. r must not be named.
func (g Grid) Slice(r Range) core.RawTable {
	firstRow, lastRow := bounds(r.StartRow, r.EndRow, len(g))
	out := core.RawTable{}
	for row := firstRow; row <= lastRow; row++ {
		var cells []string
		if row-1 < len(g) {
			cells = g[row-1]
		}
		firstCol, lastCol := bounds(r.StartCol, r.EndCol, len(cells))
		line := []string{}
		for col := firstCol; col <= lastCol && col-1 < len(cells); col++ {
			line = append(line, cells[col-1])
		}
		out = append(out, trimCells(line))
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out
}

// NextRow returns the first row below the last non-empty row inside the
// columns of r, never above r's start row.
func (g Grid) NextRow(r Range) int {
	start := r.StartRow
	if start == 0 {
		start = 1
	}
	next := start
	for row := start; row <= len(g); row++ {
		cells := g[row-1]
		firstCol, lastCol := bounds(r.StartCol, r.EndCol, len(cells))
		for col := firstCol; col <= lastCol && col-1 < len(cells); col++ {
			if cells[col-1] != "" {
				next = row + 1
				break
			}
		}
	}
	return next
}

// Put writes rows with their top-left cell at (col, row), growing g as needed.
func (g *Grid) Put(col, row int, rows core.RawTable) {
	if col < 1 {
		col = 1
	}
	if row < 1 {
		row = 1
	}
	for i, cells := range rows {
		idx := row - 1 + i
		for len(*g) <= idx {
			*g = append(*g, nil)
		}
		line := (*g)[idx]
		for len(line) < col-1+len(cells) {
			line = append(line, "")
		}
		copy(line[col-1:], cells)
		(*g)[idx] = line
	}
}

// Write stores rows at r, appending below existing data when r appends.
func (g *Grid) Write(r Range, rows core.RawTable) {
	row := r.StartRow
	if r.OpenEnded() {
		row = g.NextRow(r)
	}
	g.Put(r.StartCol, row, rows)
}

func bounds(start, end, size int) (int, int) {
	if start == 0 {
		start = 1
	}
	if end == 0 {
		end = size
	}
	return start, end
}

func trimCells(cells []string) []string {
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}
