// Package memory is an in-process spreadsheet store used as the development
// backend and in tests.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"aspire/internal/core"
	"aspire/internal/sheets"
)

var ErrUnknownSpreadsheet = errors.New("unknown spreadsheet")

// Spreadsheet is the seed format: sheets by title and named ranges by name.
type Spreadsheet struct {
	Sheets map[string][][]string `json:"sheets"`
	Names  map[string]string     `json:"names,omitempty"`
}

type book struct {
	sheets map[string]*sheets.Grid
	names  map[string]sheets.Range
}

// Store holds spreadsheets keyed by ID.
type Store struct {
	mu    sync.Mutex
	books map[string]*book

	reads  atomic.Int64
	writes atomic.Int64
}

var _ sheets.Transport = (*Store)(nil)

func New() *Store {
	return &Store{books: map[string]*book{}}
}

// NewFromFile loads spreadsheets from a JSON object keyed by spreadsheet ID.
// A missing file yields the demo spreadsheet under "demo".
func NewFromFile(path string) (*Store, error) {
	s := New()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) || path == "" {
		return s, s.Seed(DemoSpreadsheetID, Demo())
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed map[string]Spreadsheet
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for id, sp := range seed {
		if err := s.Seed(id, sp); err != nil {
			return nil, fmt.Errorf("seed %s: %w", id, err)
		}
	}
	return s, nil
}

// Seed replaces the contents of a spreadsheet.
func (s *Store) Seed(spreadsheetID string, sp Spreadsheet) error {
	b := &book{sheets: map[string]*sheets.Grid{}, names: map[string]sheets.Range{}}
	for title, rows := range sp.Sheets {
		g := make(sheets.Grid, len(rows))
		for i, row := range rows {
			g[i] = append([]string(nil), row...)
		}
		b.sheets[title] = &g
	}
	for name, ref := range sp.Names {
		r, err := sheets.ParseRange(ref)
		if err != nil || r.IsNamed() {
			return fmt.Errorf("named range %s: %w", name, sheets.ErrInvalidRange)
		}
		b.names[name] = r
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[spreadsheetID] = b
	return nil
}

func (s *Store) Read(ctx context.Context, spreadsheetID string, locations []string) ([]sheets.ValueBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.reads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[spreadsheetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSpreadsheet, spreadsheetID)
	}
	out := make([]sheets.ValueBlock, 0, len(locations))
	for _, loc := range locations {
		g, r, err := b.resolve(loc, false)
		if err != nil {
			return nil, err
		}
		out = append(out, sheets.ValueBlock{Range: loc, Values: g.Slice(r)})
	}
	return out, nil
}

func (s *Store) Write(ctx context.Context, spreadsheetID, location string, block sheets.ValueBlock) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writes.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[spreadsheetID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSpreadsheet, spreadsheetID)
	}
	g, r, err := b.resolve(location, true)
	if err != nil {
		return err
	}
	if named, _ := sheets.ParseRange(location); named.IsNamed() {
		// Named ranges grow downwards like open tables.
		r.EndRow = 0
	}
	g.Write(r, block.Values)
	return nil
}

// Reads and Writes count transport calls.
func (s *Store) Reads() int64  { return s.reads.Load() }
func (s *Store) Writes() int64 { return s.writes.Load() }

// resolve maps a location to its grid. A bare name is a named range or else a
// whole sheet. Writing to a missing sheet creates it.
func (b *book) resolve(location string, create bool) (*sheets.Grid, sheets.Range, error) {
	r, err := sheets.ParseRange(location)
	if err != nil {
		return nil, sheets.Range{}, err
	}
	if r.IsNamed() {
		if nr, ok := b.names[r.Name]; ok {
			r = nr
		} else {
			r = sheets.Range{Sheet: r.Name}
		}
	}
	g, ok := b.sheets[r.Sheet]
	if !ok {
		if !create {
			return nil, sheets.Range{}, fmt.Errorf("%w: no sheet %q", sheets.ErrInvalidRange, r.Sheet)
		}
		g = &sheets.Grid{}
		b.sheets[r.Sheet] = g
	}
	return g, r, nil
}

// Rows returns a copy of a whole sheet, for inspection in tests and tools.
func (s *Store) Rows(spreadsheetID, sheet string) core.RawTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[spreadsheetID]
	if !ok {
		return nil
	}
	g, ok := b.sheets[sheet]
	if !ok {
		return nil
	}
	out := make(core.RawTable, len(*g))
	for i, row := range *g {
		out[i] = append([]string(nil), row...)
	}
	return out
}
