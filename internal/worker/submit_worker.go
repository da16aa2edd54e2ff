// Package worker applies queued submissions to spreadsheets.
package worker

import (
	"context"
	"errors"
	"fmt"

	"aspire/internal/amqp"
	"aspire/internal/content"
	"aspire/internal/core"
	applog "aspire/internal/log"
	"aspire/internal/sheets"
)

// DataMapSource supplies the stored named ranges of a spreadsheet.
type DataMapSource interface {
	DataMap(ctx context.Context, spreadsheetID string) (core.DataMap, error)
}

// SubmitWorker writes queued transactions and category transfers through the
// content manager.
type SubmitWorker struct {
	content  *content.Manager
	scripts  sheets.ScriptRunner
	defaults DataMapSource
	fallback core.DataMap
	logger   *applog.Logger
}

// NewSubmitWorker creates a worker. scripts and defaults may be nil. fallback
// is used for messages without a DataMap when no stored one exists.
func NewSubmitWorker(cm *content.Manager, scripts sheets.ScriptRunner, defaults DataMapSource, fallback core.DataMap, logger *applog.Logger) *SubmitWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentWorker)
	return &SubmitWorker{
		content:  cm,
		scripts:  scripts,
		defaults: defaults,
		fallback: fallback,
		logger:   logger,
	}
}

var _ amqp.Handler = (*SubmitWorker)(nil)

// HandleTransaction writes the transaction. When the message asks for it and
// a script runner is configured, addTransaction runs once the write has
// landed. A script failure after that point is logged but not returned, so
// the message is acked and a redelivery cannot write the row twice.
func (w *SubmitWorker) HandleTransaction(ctx context.Context, msg *amqp.TransactionSubmitMessage) error {
	t, err := msg.Transaction()
	if err != nil {
		return fmt.Errorf("%w: %w", amqp.ErrPermanent, err)
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", amqp.ErrPermanent, err)
	}

	dm, err := w.dataMap(ctx, msg.SpreadsheetID, msg.DataMap)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Processing transaction submission",
		applog.FieldMessageID, msg.ID,
		applog.FieldSpreadsheetID, msg.SpreadsheetID)

	if err := w.content.WriteTransaction(ctx, msg.SpreadsheetID, dm, t); err != nil {
		return classify(err)
	}

	w.logger.InfoContext(ctx, "Transaction written",
		applog.FieldMessageID, msg.ID,
		applog.FieldSpreadsheetID, msg.SpreadsheetID,
		"row", t.Identifier())

	if msg.AddViaScript && w.scripts != nil {
		if err := w.runScript(ctx, sheets.FunctionAddTransaction, scriptParams(t)...); err != nil {
			w.logger.ErrorContext(ctx, "Script failed after transaction was written",
				applog.FieldMessageID, msg.ID,
				applog.FieldSpreadsheetID, msg.SpreadsheetID,
				applog.FieldFunction, sheets.FunctionAddTransaction,
				applog.FieldError, err)
		}
	}
	return nil
}

func (w *SubmitWorker) HandleCategoryTransfer(ctx context.Context, msg *amqp.CategoryTransferMessage) error {
	ct := msg.CategoryTransfer()
	if err := ct.Validate(); err != nil {
		return fmt.Errorf("%w: %w", amqp.ErrPermanent, err)
	}

	dm, err := w.dataMap(ctx, msg.SpreadsheetID, msg.DataMap)
	if err != nil {
		return err
	}

	if err := w.content.WriteCategoryTransfer(ctx, msg.SpreadsheetID, dm, ct); err != nil {
		return classify(err)
	}

	w.logger.InfoContext(ctx, "Category transfer written",
		applog.FieldMessageID, msg.ID,
		applog.FieldSpreadsheetID, msg.SpreadsheetID)
	return nil
}

func (w *SubmitWorker) dataMap(ctx context.Context, spreadsheetID string, dm core.DataMap) (core.DataMap, error) {
	if len(dm) > 0 {
		return dm, nil
	}
	if w.defaults != nil {
		stored, err := w.defaults.DataMap(ctx, spreadsheetID)
		if err != nil {
			return nil, fmt.Errorf("load data map: %w", err)
		}
		if len(stored) > 0 {
			return stored, nil
		}
	}
	return w.fallback, nil
}

func (w *SubmitWorker) runScript(ctx context.Context, function string, params ...any) error {
	done, err := w.scripts.Run(ctx, function, params...)
	if err != nil {
		return fmt.Errorf("run %s: %w", function, err)
	}
	if !done {
		w.logger.WarnContext(ctx, "Script did not report completion", applog.FieldFunction, function)
	}
	return nil
}

// scriptParams lays the transaction out the way addTransaction expects:
// date, amount, category, account, memo, payee, type, approval.
func scriptParams(t core.Transaction) []any {
	return []any{
		t.Date.Format(content.DateLayout),
		t.Amount,
		t.Category,
		t.Account,
		t.Memo,
		t.Payee,
		string(t.Type),
		string(t.Approval),
	}
}

// classify marks failures that a retry cannot fix as permanent.
func classify(err error) error {
	for _, perm := range []error{
		content.ErrUnsupportedSchemaVersion,
		content.ErrUnsupportedForVersion,
		content.ErrUnsupportedDataset,
		content.ErrInconsistentRemoteData,
		core.ErrReconcileNotEdit,
		sheets.ErrInvalidRange,
	} {
		if errors.Is(err, perm) {
			return fmt.Errorf("%w: %w", amqp.ErrPermanent, err)
		}
	}
	return err
}
