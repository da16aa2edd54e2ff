package content

import (
	"context"
	"sync"
	"sync/atomic"

	"aspire/internal/core"
	"aspire/internal/sheets"
)

type writeCall struct {
	spreadsheetID string
	location      string
	block         sheets.ValueBlock
}

// fakeTransport serves canned tables by location and records every call.
type fakeTransport struct {
	mu        sync.Mutex
	tables    map[string]core.RawTable
	reads     [][]string
	writes    []writeCall
	readCalls atomic.Int32

	readErr  error
	writeErr error
	// gate, when set, holds every read until it is closed.
	gate chan struct{}
	// blocks overrides the number of returned blocks when non-zero.
	blocks int
}

func newFakeTransport(version string) *fakeTransport {
	return &fakeTransport{tables: map[string]core.RawTable{
		DefaultVersionLocation: {{"Aspire Budget", "", version}},
	}}
}

func (f *fakeTransport) set(location string, rows core.RawTable) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[location] = rows
	return f
}

func (f *fakeTransport) Read(ctx context.Context, _ string, locations []string) ([]sheets.ValueBlock, error) {
	f.readCalls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, append([]string(nil), locations...))
	if f.readErr != nil {
		return nil, f.readErr
	}
	n := len(locations)
	if f.blocks != 0 {
		n = f.blocks
	}
	out := make([]sheets.ValueBlock, 0, n)
	for i := 0; i < n; i++ {
		loc := locations[i%len(locations)]
		out = append(out, sheets.ValueBlock{Range: loc, Values: f.tables[loc]})
	}
	return out, nil
}

func (f *fakeTransport) Write(_ context.Context, spreadsheetID, location string, block sheets.ValueBlock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, writeCall{spreadsheetID, location, block})
	return f.writeErr
}

func (f *fakeTransport) readLocations() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.reads...)
}

func (f *fakeTransport) writeCalls() []writeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]writeCall(nil), f.writes...)
}
