package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aspire/internal/amqp"
	"aspire/internal/core"
)

type fakePublisher struct {
	err          error
	transactions []*amqp.TransactionSubmitMessage
	transfers    []*amqp.CategoryTransferMessage
}

func (p *fakePublisher) PublishTransaction(_ context.Context, msg *amqp.TransactionSubmitMessage) error {
	if p.err != nil {
		return p.err
	}
	p.transactions = append(p.transactions, msg)
	return nil
}

func (p *fakePublisher) PublishCategoryTransfer(_ context.Context, msg *amqp.CategoryTransferMessage) error {
	if p.err != nil {
		return p.err
	}
	p.transfers = append(p.transfers, msg)
	return nil
}

type fakeHandler struct {
	err          error
	transactions int
	transfers    int
}

func (h *fakeHandler) HandleTransaction(context.Context, *amqp.TransactionSubmitMessage) error {
	h.transactions++
	return h.err
}

func (h *fakeHandler) HandleCategoryTransfer(context.Context, *amqp.CategoryTransferMessage) error {
	h.transfers++
	return h.err
}

func transaction() core.Transaction {
	return core.NewTransaction(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), "$1.00", core.Outflow)
}

func TestSubmitTransactionQueued(t *testing.T) {
	pub := &fakePublisher{}
	direct := &fakeHandler{}
	s := NewSubmissionService(pub, direct, nil)
	require.True(t, s.Queued())

	res, err := s.SubmitTransaction(context.Background(), "sheet", nil, transaction(), true)
	require.NoError(t, err)
	assert.True(t, res.Queued)
	require.Len(t, pub.transactions, 1)
	assert.Equal(t, res.ID, pub.transactions[0].ID)
	assert.True(t, pub.transactions[0].AddViaScript)
	assert.Zero(t, direct.transactions)
}

func TestSubmitTransactionDirect(t *testing.T) {
	direct := &fakeHandler{}
	s := NewSubmissionService(nil, direct, nil)
	assert.False(t, s.Queued())

	res, err := s.SubmitTransaction(context.Background(), "sheet", nil, transaction(), false)
	require.NoError(t, err)
	assert.False(t, res.Queued)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 1, direct.transactions)
}

func TestPublishFailureFallsBackToDirect(t *testing.T) {
	pub := &fakePublisher{err: amqp.ErrCircuitOpen}
	direct := &fakeHandler{}
	s := NewSubmissionService(pub, direct, nil)

	res, err := s.SubmitCategoryTransfer(context.Background(), "sheet", nil, core.CategoryTransfer{
		Amount: "1", FromCategory: "A", ToCategory: "B",
	})
	require.NoError(t, err)
	assert.False(t, res.Queued)
	assert.Equal(t, 1, direct.transfers)
}

func TestPublishFailureWithoutDirect(t *testing.T) {
	s := NewSubmissionService(&fakePublisher{err: amqp.ErrCircuitOpen}, nil, nil)

	_, err := s.SubmitTransaction(context.Background(), "sheet", nil, transaction(), false)
	assert.ErrorIs(t, err, amqp.ErrCircuitOpen)
}

func TestDirectErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	s := NewSubmissionService(nil, &fakeHandler{err: boom}, nil)

	_, err := s.SubmitTransaction(context.Background(), "sheet", nil, transaction(), false)
	assert.ErrorIs(t, err, boom)
}

func TestNoSubmitter(t *testing.T) {
	s := NewSubmissionService(nil, nil, nil)
	_, err := s.SubmitCategoryTransfer(context.Background(), "sheet", nil, core.CategoryTransfer{})
	assert.ErrorIs(t, err, ErrNoSubmitter)
}
