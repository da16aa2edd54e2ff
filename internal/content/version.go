package content

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"aspire/internal/cache"
	"aspire/internal/core"
	applog "aspire/internal/log"
	"aspire/internal/sheets"
)

// VersionState tells whether a spreadsheet's schema version is known yet.
type VersionState int

const (
	Unresolved VersionState = iota
	Resolved
)

func (s VersionState) String() string {
	if s == Resolved {
		return "resolved"
	}
	return "unresolved"
}

const (
	DefaultVersionCacheSize      = 256
	DefaultVersionResolveTimeout = 15 * time.Second
)

// VersionResolver reads and remembers the schema version of spreadsheets.
// A version never changes while a spreadsheet is open, so a resolved value is
// reused until it is evicted or forgotten. Concurrent first lookups for the
// same spreadsheet share one read. Failures are not remembered.
type VersionResolver struct {
	reader  sheets.ValuesReader
	cache   *cache.LRUCache[core.SchemaVersion]
	group   singleflight.Group
	timeout time.Duration
	logger  *applog.Logger
}

// NewVersionResolver builds a resolver reading through reader. A cacheSize or
// timeout of zero selects the defaults. A zero ttl keeps versions until evicted.
func NewVersionResolver(reader sheets.ValuesReader, cacheSize int, ttl, timeout time.Duration, logger *applog.Logger) *VersionResolver {
	if cacheSize <= 0 {
		cacheSize = DefaultVersionCacheSize
	}
	if timeout <= 0 {
		timeout = DefaultVersionResolveTimeout
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &VersionResolver{
		reader:  reader,
		cache:   cache.NewLRUCache[core.SchemaVersion](cacheSize, ttl),
		timeout: timeout,
		logger:  logger,
	}
}

// State returns the cached version of a spreadsheet, if any.
func (r *VersionResolver) State(spreadsheetID string) (VersionState, core.SchemaVersion) {
	if v, ok := r.cache.Get(spreadsheetID); ok {
		return Resolved, v
	}
	return Unresolved, ""
}

// Cache exposes the version cache for periodic sweeping of expired entries.
func (r *VersionResolver) Cache() cache.Cleaner {
	return r.cache
}

// Forget drops the cached version so the next lookup reads it again.
func (r *VersionResolver) Forget(spreadsheetID string) {
	r.cache.Delete(spreadsheetID)
}

// Resolve returns the schema version of a spreadsheet. The version cell is
// dataMap[core.KeyVersion] when present, DefaultVersionLocation otherwise.
//
// A caller whose ctx ends stops waiting, but the shared read keeps running
// under the resolver's own timeout so other waiters still get the result.
// The location of the caller that started the read is the one used.
func (r *VersionResolver) Resolve(ctx context.Context, spreadsheetID string, dataMap core.DataMap) (core.SchemaVersion, error) {
	if v, ok := r.cache.Get(spreadsheetID); ok {
		return v, nil
	}

	location := DefaultVersionLocation
	if loc, ok := dataMap[core.KeyVersion]; ok && loc != "" {
		location = loc
	}

	ch := r.group.DoChan(spreadsheetID, func() (any, error) {
		if v, ok := r.cache.Get(spreadsheetID); ok {
			return v, nil
		}
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		v, err := r.read(readCtx, spreadsheetID, location)
		if err != nil {
			return core.SchemaVersion(""), err
		}
		r.cache.Set(spreadsheetID, v)
		r.logger.InfoContext(ctx, "Schema version resolved",
			applog.FieldSpreadsheetID, spreadsheetID,
			applog.FieldRange, location,
			applog.FieldSchemaVersion, v.String())
		return v, nil
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("resolve version: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(core.SchemaVersion), nil
	}
}

func (r *VersionResolver) read(ctx context.Context, spreadsheetID, location string) (core.SchemaVersion, error) {
	blocks, err := r.reader.Read(ctx, spreadsheetID, []string{location})
	if err != nil {
		return "", fmt.Errorf("read version cell %s: %w", location, err)
	}
	raw, err := lastCell(blocks)
	if err != nil {
		return "", fmt.Errorf("version cell %s: %w", location, err)
	}
	v, err := core.ParseSchemaVersion(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSchemaVersion, raw)
	}
	return v, nil
}

// lastCell extracts the last cell of the last row of a single block.
func lastCell(blocks []sheets.ValueBlock) (string, error) {
	if len(blocks) != 1 {
		return "", fmt.Errorf("%w: expected 1 block, got %d", ErrInconsistentRemoteData, len(blocks))
	}
	rows := blocks[0].Values
	if len(rows) == 0 {
		return "", fmt.Errorf("%w: no rows", ErrInconsistentRemoteData)
	}
	row := rows[len(rows)-1]
	if len(row) == 0 {
		return "", fmt.Errorf("%w: no cells", ErrInconsistentRemoteData)
	}
	return row[len(row)-1], nil
}
