// Package services orchestrates submissions across the queue and the
// in-process worker.
package services

import (
	"context"
	"errors"
	"fmt"

	"aspire/internal/amqp"
	"aspire/internal/core"
	applog "aspire/internal/log"
)

// ErrNoSubmitter is returned when neither a queue nor a direct handler is set.
var ErrNoSubmitter = errors.New("no submission path configured")

// Publisher queues submissions for the worker.
type Publisher interface {
	PublishTransaction(ctx context.Context, msg *amqp.TransactionSubmitMessage) error
	PublishCategoryTransfer(ctx context.Context, msg *amqp.CategoryTransferMessage) error
}

// Result describes an accepted submission.
type Result struct {
	ID     string
	Queued bool
}

// SubmissionService hands writes to the queue when one is configured and to
// the direct handler otherwise. A failed publish falls back to the direct
// handler when there is one.
type SubmissionService struct {
	queue  Publisher
	direct amqp.Handler
	logger *applog.Logger
}

func NewSubmissionService(queue Publisher, direct amqp.Handler, logger *applog.Logger) *SubmissionService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &SubmissionService{
		queue:  queue,
		direct: direct,
		logger: logger.WithComponent(applog.ComponentWorker),
	}
}

// Queued reports whether submissions go through the broker.
func (s *SubmissionService) Queued() bool {
	return s.queue != nil
}

// SubmitTransaction queues or writes t for the spreadsheet. dm may be nil, in
// which case the handler resolves the stored DataMap.
func (s *SubmissionService) SubmitTransaction(ctx context.Context, spreadsheetID string, dm core.DataMap, t core.Transaction, addViaScript bool) (Result, error) {
	msg := amqp.NewTransactionSubmitMessage(spreadsheetID, dm, t, addViaScript)
	queued, err := s.submit(ctx, msg.ID, spreadsheetID,
		func() error { return s.queue.PublishTransaction(ctx, msg) },
		func() error { return s.direct.HandleTransaction(ctx, msg) })
	if err != nil {
		return Result{}, err
	}
	return Result{ID: msg.ID, Queued: queued}, nil
}

// SubmitCategoryTransfer queues or writes ct for the spreadsheet.
func (s *SubmissionService) SubmitCategoryTransfer(ctx context.Context, spreadsheetID string, dm core.DataMap, ct core.CategoryTransfer) (Result, error) {
	msg := amqp.NewCategoryTransferMessage(spreadsheetID, dm, ct)
	queued, err := s.submit(ctx, msg.ID, spreadsheetID,
		func() error { return s.queue.PublishCategoryTransfer(ctx, msg) },
		func() error { return s.direct.HandleCategoryTransfer(ctx, msg) })
	if err != nil {
		return Result{}, err
	}
	return Result{ID: msg.ID, Queued: queued}, nil
}

func (s *SubmissionService) submit(ctx context.Context, id, spreadsheetID string, publish, apply func() error) (queued bool, err error) {
	if s.queue != nil {
		err := publish()
		if err == nil {
			return true, nil
		}
		if s.direct == nil {
			return false, fmt.Errorf("publish: %w", err)
		}
		s.logger.WarnContext(ctx, "Publish failed, applying directly",
			applog.FieldMessageID, id,
			applog.FieldSpreadsheetID, spreadsheetID,
			applog.FieldError, err)
	}
	if s.direct == nil {
		return false, ErrNoSubmitter
	}
	return false, apply()
}
