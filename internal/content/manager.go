package content

import (
	"context"
	"fmt"
	"time"

	"aspire/internal/core"
	applog "aspire/internal/log"
	"aspire/internal/sheets"
)

// Encoder renders a value for a write. The version is empty when the range
// came from the DataMap.
type Encoder func(v core.SchemaVersion) (core.RawTable, error)

// Options tunes a Manager. Zero values select defaults.
type Options struct {
	VersionCacheSize      int
	VersionCacheTTL       time.Duration
	VersionResolveTimeout time.Duration
	Logger                *applog.Logger
	Now                   func() time.Time
}

// Manager runs the read, batch read and write pipelines against one transport.
// It is safe for concurrent use.
type Manager struct {
	transport sheets.Transport
	versions  *VersionResolver
	ranges    *RangeResolver
	logger    *applog.Logger
	now       func() time.Time
}

func NewManager(transport sheets.Transport, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentContent)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	versions := NewVersionResolver(transport, opts.VersionCacheSize, opts.VersionCacheTTL, opts.VersionResolveTimeout, logger)
	return &Manager{
		transport: transport,
		versions:  versions,
		ranges:    NewRangeResolver(versions, logger),
		logger:    logger,
		now:       now,
	}
}

// Versions exposes the resolver, e.g. to forget a version after the DataMap changed.
func (m *Manager) Versions() *VersionResolver {
	return m.versions
}

// Version resolves the schema version of a spreadsheet.
func (m *Manager) Version(ctx context.Context, spreadsheetID string, dataMap core.DataMap) (core.SchemaVersion, error) {
	return m.versions.Resolve(ctx, spreadsheetID, dataMap)
}

// Read fetches the single range of k.
func (m *Manager) Read(ctx context.Context, k Kind, spreadsheetID string, dataMap core.DataMap) (core.RawTable, error) {
	rows, _, err := m.read(ctx, k, spreadsheetID, dataMap)
	return rows, err
}

// read is Read that also reports the range the rows came from.
func (m *Manager) read(ctx context.Context, k Kind, spreadsheetID string, dataMap core.DataMap) (core.RawTable, Resolution, error) {
	if !k.Readable() {
		return nil, Resolution{}, fmt.Errorf("read %s: %w", k, ErrUnsupportedDataset)
	}
	res, err := m.ranges.RangeFor(ctx, k, spreadsheetID, dataMap)
	if err != nil {
		return nil, Resolution{}, fmt.Errorf("read %s: %w", k, err)
	}
	blocks, err := m.transport.Read(ctx, spreadsheetID, []string{res.Range})
	if err != nil {
		m.logFailure(ctx, applog.OpRead, k, spreadsheetID, res.Range, err)
		return nil, Resolution{}, fmt.Errorf("read %s at %s: %w", k, res.Range, err)
	}
	if len(blocks) != 1 {
		return nil, Resolution{}, fmt.Errorf("read %s at %s: %w: expected 1 block, got %d",
			k, res.Range, ErrInconsistentRemoteData, len(blocks))
	}
	return blocks[0].Values, res, nil
}

// ReadBatch fetches every range of a batched kind in one transport call and
// reduces each block to the first cell of its rows. Any malformed block fails
// the whole batch.
func (m *Manager) ReadBatch(ctx context.Context, k Kind, spreadsheetID string, dataMap core.DataMap) ([][]string, error) {
	if !k.Batched() {
		return nil, fmt.Errorf("read batch %s: %w", k, ErrUnsupportedDataset)
	}
	v, err := m.versions.Resolve(ctx, spreadsheetID, dataMap)
	if err != nil {
		return nil, fmt.Errorf("read batch %s: %w", k, err)
	}
	locations, err := m.ranges.RangesFor(k, v)
	if err != nil {
		return nil, fmt.Errorf("read batch %s: %w", k, err)
	}
	blocks, err := m.transport.Read(ctx, spreadsheetID, locations)
	if err != nil {
		m.logFailure(ctx, applog.OpReadBatch, k, spreadsheetID, fmt.Sprint(locations), err)
		return nil, fmt.Errorf("read batch %s: %w", k, err)
	}
	if len(blocks) != len(locations) {
		return nil, fmt.Errorf("read batch %s: %w: expected %d blocks, got %d",
			k, ErrInconsistentRemoteData, len(locations), len(blocks))
	}
	lists := make([][]string, 0, len(blocks))
	for i, b := range blocks {
		list, err := FirstCells(b.Values)
		if err != nil {
			return nil, fmt.Errorf("read batch %s at %s: %w", k, locations[i], err)
		}
		lists = append(lists, list)
	}
	return lists, nil
}

// Write encodes a value and stores it at the range of k. Nothing is sent when
// the range cannot be resolved or the value cannot be encoded.
func (m *Manager) Write(ctx context.Context, k Kind, spreadsheetID string, dataMap core.DataMap, encode Encoder) error {
	if !k.Writable() {
		return fmt.Errorf("write %s: %w", k, ErrUnsupportedDataset)
	}
	res, err := m.ranges.RangeFor(ctx, k, spreadsheetID, dataMap)
	if err != nil {
		return fmt.Errorf("write %s: %w", k, err)
	}
	return m.send(ctx, k, spreadsheetID, res, encode)
}

func (m *Manager) send(ctx context.Context, k Kind, spreadsheetID string, res Resolution, encode Encoder) error {
	rows, err := encode(res.Version)
	if err != nil {
		return fmt.Errorf("write %s: encode: %w", k, err)
	}
	block := sheets.ValueBlock{Range: res.Range, Values: rows}
	if err := m.transport.Write(ctx, spreadsheetID, res.Range, block); err != nil {
		m.logFailure(ctx, applog.OpWrite, k, spreadsheetID, res.Range, err)
		return fmt.Errorf("write %s at %s: %w", k, res.Range, err)
	}
	m.logger.DebugContext(ctx, "Content written",
		applog.FieldSpreadsheetID, spreadsheetID,
		applog.FieldDataset, k.String(),
		applog.FieldRange, res.Range,
		applog.FieldRows, len(rows))
	return nil
}

func (m *Manager) logFailure(ctx context.Context, op string, k Kind, spreadsheetID, rng string, err error) {
	m.logger.ErrorContext(ctx, "Transport call failed",
		applog.FieldOperation, op,
		applog.FieldSpreadsheetID, spreadsheetID,
		applog.FieldDataset, k.String(),
		applog.FieldRange, rng,
		applog.FieldError, err)
}

func (m *Manager) Dashboard(ctx context.Context, spreadsheetID string, dataMap core.DataMap) (core.Dashboard, error) {
	rows, err := m.Read(ctx, KindDashboard, spreadsheetID, dataMap)
	if err != nil {
		return core.Dashboard{}, err
	}
	return DecodeDashboard(rows), nil
}

func (m *Manager) AccountBalances(ctx context.Context, spreadsheetID string, dataMap core.DataMap) (core.AccountBalances, error) {
	rows, err := m.Read(ctx, KindAccountBalances, spreadsheetID, dataMap)
	if err != nil {
		return core.AccountBalances{}, err
	}
	return DecodeAccountBalances(rows), nil
}

// Transactions reads the transaction list. Malformed and reconciled rows are
// dropped, and the count is logged.
func (m *Manager) Transactions(ctx context.Context, spreadsheetID string, dataMap core.DataMap) (core.Transactions, error) {
	rows, res, err := m.read(ctx, KindTransactions, spreadsheetID, dataMap)
	if err != nil {
		return core.Transactions{}, err
	}
	trx := DecodeTransactions(rows, firstDataRow(res.Range), m.now)
	if dropped := len(rows) - len(trx.Transactions); dropped > 0 {
		m.logger.DebugContext(ctx, "Transaction rows skipped",
			applog.FieldSpreadsheetID, spreadsheetID,
			applog.FieldRows, len(rows),
			applog.FieldDropped, dropped)
	}
	return trx, nil
}

func (m *Manager) TrxCategories(ctx context.Context, spreadsheetID string, dataMap core.DataMap) (core.TrxCategories, error) {
	rows, err := m.Read(ctx, KindTrxCategories, spreadsheetID, dataMap)
	if err != nil {
		return core.TrxCategories{}, err
	}
	return DecodeTrxCategories(rows), nil
}

// AddTransactionMetadata reads categories, accounts and payees in one batch.
func (m *Manager) AddTransactionMetadata(ctx context.Context, spreadsheetID string, dataMap core.DataMap) (core.AddTransactionMetadata, error) {
	lists, err := m.ReadBatch(ctx, KindAddTransactionMetadata, spreadsheetID, dataMap)
	if err != nil {
		return core.AddTransactionMetadata{}, err
	}
	return DecodeAddTransactionMetadata(lists)
}

// WriteTransaction appends t, or overwrites its own row when t was read from
// the sheet. Row targeting needs an A1 range, so a named DataMap range is
// bypassed for it in favour of the version layout. A row outside the range
// fails with sheets.ErrInvalidRange.
func (m *Manager) WriteTransaction(ctx context.Context, spreadsheetID string, dataMap core.DataMap, t core.Transaction) error {
	encode := func(v core.SchemaVersion) (core.RawTable, error) { return EncodeTransaction(t, v) }
	if t.RowNum == nil {
		return m.Write(ctx, KindTransaction, spreadsheetID, dataMap, encode)
	}

	res, err := m.ranges.RangeFor(ctx, KindTransaction, spreadsheetID, dataMap)
	if err == nil && res.Named {
		if r, perr := sheets.ParseRange(res.Range); perr != nil || r.IsNamed() {
			res, err = m.ranges.fromVersion(ctx, KindTransaction, spreadsheetID, dataMap)
		}
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", KindTransaction, err)
	}
	r, err := sheets.ParseRange(res.Range)
	if err != nil {
		return fmt.Errorf("write %s: %w", KindTransaction, err)
	}
	row, err := r.AtRow(*t.RowNum)
	if err != nil {
		return fmt.Errorf("write %s: %w", KindTransaction, err)
	}
	res.Range = row.String()
	return m.send(ctx, KindTransaction, spreadsheetID, res, encode)
}

// firstDataRow is the sheet row of the first transaction under rng. Named
// ranges cannot be inspected and are assumed to follow the built-in layout.
func firstDataRow(rng string) int {
	r, err := sheets.ParseRange(rng)
	if err != nil || r.IsNamed() {
		return transactionsFirstRow
	}
	return r.FirstRow()
}

// WriteCategoryTransfer appends ct dated today.
func (m *Manager) WriteCategoryTransfer(ctx context.Context, spreadsheetID string, dataMap core.DataMap, ct core.CategoryTransfer) error {
	now := m.now()
	return m.Write(ctx, KindCategoryTransfer, spreadsheetID, dataMap, func(core.SchemaVersion) (core.RawTable, error) {
		return EncodeCategoryTransfer(ct, now), nil
	})
}
