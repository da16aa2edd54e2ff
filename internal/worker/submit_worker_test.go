package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aspire/internal/amqp"
	"aspire/internal/content"
	"aspire/internal/core"
	"aspire/internal/sheets"
	"aspire/internal/sheets/memory"
)

const demo = memory.DemoSpreadsheetID

var fixedNow = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

type staticDefaults struct {
	dm  core.DataMap
	err error
}

func (s staticDefaults) DataMap(context.Context, string) (core.DataMap, error) {
	return s.dm, s.err
}

func newWorker(t *testing.T, scripts sheets.ScriptRunner, defaults DataMapSource) (*SubmitWorker, *memory.Store) {
	t.Helper()
	store, err := memory.NewFromFile("")
	require.NoError(t, err)
	cm := content.NewManager(store, content.Options{Now: func() time.Time { return fixedNow }})
	return NewSubmitWorker(cm, scripts, defaults, nil, nil), store
}

func transaction() core.Transaction {
	return core.Transaction{
		Amount:   "$12.50",
		Memo:     "lunch",
		Date:     time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Account:  "Cash",
		Category: "Fun",
		Type:     core.Outflow,
		Approval: core.Approved,
		Payee:    "Cafe",
	}
}

func lastRow(t *testing.T, store *memory.Store, sheet string) []string {
	t.Helper()
	rows := store.Rows(demo, sheet)
	require.NotEmpty(t, rows)
	return rows[len(rows)-1]
}

func TestHandleTransactionAppends(t *testing.T) {
	w, store := newWorker(t, nil, nil)
	msg := amqp.NewTransactionSubmitMessage(demo, nil, transaction(), false)

	require.NoError(t, w.HandleTransaction(context.Background(), msg))

	rows := store.Rows(demo, "My Transactions")
	require.Len(t, rows, 12)
	assert.Equal(t, []string{"", "03/04/2024", "Cash", "Cafe", "Fun", "lunch", "$12.50", "", "✅"}, rows[11])
}

func TestHandleTransactionRunsScriptAfterWrite(t *testing.T) {
	runner := &memory.ScriptRunner{}
	w, store := newWorker(t, runner, nil)

	require.NoError(t, w.HandleTransaction(context.Background(),
		amqp.NewTransactionSubmitMessage(demo, nil, transaction(), true)))

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, sheets.FunctionAddTransaction, calls[0].Function)
	assert.Equal(t, []any{"03/04/2024", "$12.50", "Fun", "Cash", "lunch", "Cafe", "outflow", "approved"}, calls[0].Params)
	assert.Len(t, store.Rows(demo, "My Transactions"), 12)

	// Not requested: no script call.
	require.NoError(t, w.HandleTransaction(context.Background(),
		amqp.NewTransactionSubmitMessage(demo, nil, transaction(), false)))
	assert.Len(t, runner.Calls(), 1)
}

func TestHandleTransactionScriptFailureAfterWriteIsAcked(t *testing.T) {
	runner := &memory.ScriptRunner{Err: errors.New("quota exceeded")}
	w, store := newWorker(t, runner, nil)
	msg := amqp.NewTransactionSubmitMessage(demo, nil, transaction(), true)

	require.NoError(t, w.HandleTransaction(context.Background(), msg))

	assert.Len(t, runner.Calls(), 1)
	rows := store.Rows(demo, "My Transactions")
	require.Len(t, rows, 12)
	assert.Equal(t, "Cafe", rows[11][3])
}

func TestHandleTransactionSkipsScriptWhenWriteFails(t *testing.T) {
	runner := &memory.ScriptRunner{}
	w, store := newWorker(t, runner, nil)
	tx := transaction()
	row := 99
	tx.RowNum = &row
	msg := amqp.NewTransactionSubmitMessage(demo, core.DataMap{core.KeyTransactions: "My Transactions!B9:I11"}, tx, true)

	err := w.HandleTransaction(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, amqp.ErrPermanent)
	assert.Empty(t, runner.Calls())
	assert.Len(t, store.Rows(demo, "My Transactions"), 11)
}

func TestHandleTransactionUpdatesOwnRow(t *testing.T) {
	w, store := newWorker(t, nil, nil)
	tx := transaction()
	row := 10
	tx.RowNum = &row
	tx.Approval = core.Pending

	require.NoError(t, w.HandleTransaction(context.Background(),
		amqp.NewTransactionSubmitMessage(demo, nil, tx, false)))

	rows := store.Rows(demo, "My Transactions")
	require.Len(t, rows, 11)
	assert.Equal(t, "Cafe", rows[9][3])
	assert.Equal(t, "\U0001F17F\uFE0F", rows[9][8])
}

func TestHandleTransactionRejectsInvalid(t *testing.T) {
	w, store := newWorker(t, nil, nil)

	tests := []struct {
		name   string
		mutate func(*amqp.TransactionSubmitMessage)
	}{
		{"bad date", func(m *amqp.TransactionSubmitMessage) { m.Date = "yesterday" }},
		{"no account", func(m *amqp.TransactionSubmitMessage) { m.Account = "" }},
		{"reconciled", func(m *amqp.TransactionSubmitMessage) { m.Approval = string(core.Reconcile) }},
		{"bad type", func(m *amqp.TransactionSubmitMessage) { m.Type = "transfer" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := amqp.NewTransactionSubmitMessage(demo, nil, transaction(), false)
			tt.mutate(msg)
			err := w.HandleTransaction(context.Background(), msg)
			assert.ErrorIs(t, err, amqp.ErrPermanent)
		})
	}
	assert.Len(t, store.Rows(demo, "My Transactions"), 11)
}

func TestHandleCategoryTransfer(t *testing.T) {
	w, store := newWorker(t, nil, nil)
	ct := core.CategoryTransfer{Amount: "$20.00", FromCategory: "Fun", ToCategory: "Groceries", Memo: "top up"}

	require.NoError(t, w.HandleCategoryTransfer(context.Background(), amqp.NewCategoryTransferMessage(demo, nil, ct)))

	assert.Equal(t, []string{"", "03/05/2024", "$20.00", "Fun", "Groceries", "top up"}, lastRow(t, store, "Category Transfers"))

	same := amqp.NewCategoryTransferMessage(demo, nil, core.CategoryTransfer{Amount: "1", FromCategory: "Fun", ToCategory: "Fun"})
	assert.ErrorIs(t, w.HandleCategoryTransfer(context.Background(), same), amqp.ErrPermanent)
}

func TestDataMapPrecedence(t *testing.T) {
	stored := core.DataMap{core.KeyCategoryTransfers: "Stored"}
	w, store := newWorker(t, nil, staticDefaults{dm: stored})
	ct := core.CategoryTransfer{Amount: "1", FromCategory: "A", ToCategory: "B"}

	// The stored DataMap names a range that is a fresh sheet in memory.
	require.NoError(t, w.HandleCategoryTransfer(context.Background(), amqp.NewCategoryTransferMessage(demo, nil, ct)))
	assert.Len(t, store.Rows(demo, "Stored"), 1)

	// A DataMap on the message wins.
	require.NoError(t, w.HandleCategoryTransfer(context.Background(),
		amqp.NewCategoryTransferMessage(demo, core.DataMap{core.KeyCategoryTransfers: "Inline"}, ct)))
	assert.Len(t, store.Rows(demo, "Inline"), 1)
	assert.Len(t, store.Rows(demo, "Stored"), 1)

	broken, _ := newWorker(t, nil, staticDefaults{err: errors.New("disk")})
	err := broken.HandleCategoryTransfer(context.Background(), amqp.NewCategoryTransferMessage(demo, nil, ct))
	require.Error(t, err)
	assert.False(t, errors.Is(err, amqp.ErrPermanent))
}

func TestUnsupportedVersionIsPermanent(t *testing.T) {
	w, store := newWorker(t, nil, nil)
	require.NoError(t, store.Seed(demo, memory.Spreadsheet{Sheets: map[string][][]string{
		"BackendData": {{}, {"1.0"}},
	}}))

	err := w.HandleTransaction(context.Background(), amqp.NewTransactionSubmitMessage(demo, nil, transaction(), false))
	assert.ErrorIs(t, err, amqp.ErrPermanent)
	assert.ErrorIs(t, err, content.ErrUnsupportedSchemaVersion)
}
