// Package xlsx serves a local Excel workbook exported from an Aspire
// spreadsheet through the sheets ports, for offline use.
package xlsx

import (
	"context"
	"fmt"
	"sync"

	"github.com/xuri/excelize/v2"

	"aspire/internal/core"
	"aspire/internal/sheets"
)

// Workbook is one spreadsheet backed by an .xlsx file. Spreadsheet IDs passed
// to Read and Write are ignored. Every write is saved to disk.
type Workbook struct {
	mu   sync.Mutex
	file *excelize.File
	path string
}

var _ sheets.Transport = (*Workbook)(nil)

// Open loads the workbook at path.
func Open(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %q: %w", path, err)
	}
	return &Workbook{file: f, path: path}, nil
}

// New wraps an open file. An empty path keeps writes in memory.
func New(f *excelize.File, path string) *Workbook {
	return &Workbook{file: f, path: path}
}

func (w *Workbook) Read(ctx context.Context, _ string, locations []string) ([]sheets.ValueBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]sheets.ValueBlock, 0, len(locations))
	for _, loc := range locations {
		r, _, err := w.resolve(loc)
		if err != nil {
			return nil, err
		}
		grid, err := w.grid(r.Sheet)
		if err != nil {
			return nil, err
		}
		out = append(out, sheets.ValueBlock{Range: loc, Values: grid.Slice(r)})
	}
	return out, nil
}

func (w *Workbook) Write(ctx context.Context, _ string, location string, block sheets.ValueBlock) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	r, named, err := w.resolve(location)
	if err != nil {
		return err
	}
	if idx, _ := w.file.GetSheetIndex(r.Sheet); idx < 0 {
		if _, err := w.file.NewSheet(r.Sheet); err != nil {
			return fmt.Errorf("create sheet %q: %w", r.Sheet, err)
		}
	}

	row := r.StartRow
	if named || r.OpenEnded() {
		grid, err := w.grid(r.Sheet)
		if err != nil {
			return err
		}
		open := r
		open.EndRow = 0
		row = grid.NextRow(open)
	}
	if err := w.put(r.Sheet, max(r.StartCol, 1), max(row, 1), block.Values); err != nil {
		return err
	}
	if w.path == "" {
		return nil
	}
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

// resolve turns a location into a sheet range. A bare name is a defined name
// or else a whole sheet.
func (w *Workbook) resolve(location string) (sheets.Range, bool, error) {
	r, err := sheets.ParseRange(location)
	if err != nil {
		return sheets.Range{}, false, err
	}
	if !r.IsNamed() {
		return r, false, nil
	}
	for _, dn := range w.file.GetDefinedName() {
		if dn.Name != r.Name {
			continue
		}
		target, err := sheets.ParseRange(dn.RefersTo)
		if err != nil || target.IsNamed() {
			return sheets.Range{}, false, fmt.Errorf("%w: defined name %s refers to %q",
				sheets.ErrInvalidRange, dn.Name, dn.RefersTo)
		}
		return target, true, nil
	}
	return sheets.Range{Sheet: r.Name}, true, nil
}

func (w *Workbook) grid(sheet string) (sheets.Grid, error) {
	if idx, _ := w.file.GetSheetIndex(sheet); idx < 0 {
		return nil, fmt.Errorf("%w: no sheet %q", sheets.ErrInvalidRange, sheet)
	}
	rows, err := w.file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return sheets.Grid(rows), nil
}

func (w *Workbook) put(sheet string, col, row int, rows core.RawTable) error {
	for i, cells := range rows {
		cell, err := excelize.CoordinatesToCellName(col, row+i)
		if err != nil {
			return fmt.Errorf("%w: %v", sheets.ErrInvalidRange, err)
		}
		values := make([]any, len(cells))
		for j, v := range cells {
			values[j] = v
		}
		if err := w.file.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
