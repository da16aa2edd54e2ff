package sheets

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrInvalidRange = errors.New("invalid A1 range")

// Range is a parsed A1 reference. Zero columns or rows mean the side is open:
// "B:F" has no rows, "2:2" has no columns, "B9:I" has an open end row.
// A reference without a '!' is kept as Name (a named range or a whole sheet).
type Range struct {
	Sheet    string
	Name     string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// ParseRange parses references such as "Dashboard!F4:O", "BackendData!2:2",
// "'My Sheet'!A1" and "Payees".
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Range{}, ErrInvalidRange
	}
	sep := strings.LastIndex(s, "!")
	if sep < 0 {
		return Range{Name: s}, nil
	}
	r := Range{Sheet: unquoteSheet(s[:sep])}
	if r.Sheet == "" {
		return Range{}, fmt.Errorf("%w: %q has no sheet", ErrInvalidRange, s)
	}
	span := s[sep+1:]
	start, end, found := strings.Cut(span, ":")
	var err error
	if r.StartCol, r.StartRow, err = parseCell(start); err != nil {
		return Range{}, fmt.Errorf("%w: %q: %v", ErrInvalidRange, s, err)
	}
	if !found {
		r.EndCol, r.EndRow = r.StartCol, r.StartRow
		return r, nil
	}
	if r.EndCol, r.EndRow, err = parseCell(end); err != nil {
		return Range{}, fmt.Errorf("%w: %q: %v", ErrInvalidRange, s, err)
	}
	return r, nil
}

// IsNamed reports whether the reference had no sheet qualifier.
func (r Range) IsNamed() bool {
	return r.Name != ""
}

// OpenEnded reports whether rows are unbounded at the bottom, which makes a
// write an append.
func (r Range) OpenEnded() bool {
	return !r.IsNamed() && r.EndRow == 0
}

// Appends reports whether a write to r adds rows after the existing data
// rather than overwriting cells. Named ranges grow like open tables.
func (r Range) Appends() bool {
	return r.IsNamed() || r.OpenEnded()
}

// FirstRow is the sheet row the range starts at, or 0 for named ranges.
// Column-only references such as "B:I" start at row 1.
func (r Range) FirstRow() int {
	switch {
	case r.IsNamed():
		return 0
	case r.StartRow == 0:
		return 1
	}
	return r.StartRow
}

// AtRow narrows the column span of r to a single sheet row, which must lie
// within r.
func (r Range) AtRow(row int) (Range, error) {
	if r.IsNamed() || r.StartCol == 0 || row < r.FirstRow() || (r.EndRow > 0 && row > r.EndRow) {
		return Range{}, fmt.Errorf("%w: cannot target row %d of %s", ErrInvalidRange, row, r)
	}
	out := r
	out.StartRow, out.EndRow = row, row
	return out, nil
}

func (r Range) String() string {
	if r.IsNamed() {
		return r.Name
	}
	start := formatCell(r.StartCol, r.StartRow)
	end := formatCell(r.EndCol, r.EndRow)
	sheet := r.Sheet
	if strings.ContainsAny(sheet, "'!") {
		sheet = "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}
	if start == end && r.StartCol != 0 && r.StartRow != 0 {
		return sheet + "!" + start
	}
	return sheet + "!" + start + ":" + end
}

func unquoteSheet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") {
		s = strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}

// parseCell splits "F4", "F", "4" or "$F$4" into column and row numbers.
func parseCell(cell string) (col, row int, err error) {
	cell = strings.ReplaceAll(strings.TrimSpace(cell), "$", "")
	if cell == "" {
		return 0, 0, errors.New("empty cell reference")
	}
	i := 0
	for i < len(cell) && (cell[i] >= 'A' && cell[i] <= 'Z' || cell[i] >= 'a' && cell[i] <= 'z') {
		i++
	}
	if i > 0 {
		if col, err = excelize.ColumnNameToNumber(cell[:i]); err != nil {
			return 0, 0, err
		}
	}
	if i < len(cell) {
		if row, err = strconv.Atoi(cell[i:]); err != nil || row < 1 {
			return 0, 0, fmt.Errorf("bad row in %q", cell)
		}
	}
	return col, row, nil
}

func formatCell(col, row int) string {
	var b strings.Builder
	if col > 0 {
		name, err := excelize.ColumnNumberToName(col)
		if err == nil {
			b.WriteString(name)
		}
	}
	if row > 0 {
		b.WriteString(strconv.Itoa(row))
	}
	return b.String()
}
