// Package amqp queues transaction and category transfer submissions on
// RabbitMQ so the API can answer before the spreadsheet is written.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures        = 5
	openTimeout        = 30 * time.Second
	maxBackoff         = 30 * time.Second
	maxPublishAttempts = 3
	publishTimeout     = 5 * time.Second

	// maxDeliveries caps how often a failing submission is handed out.
	maxDeliveries = 5
	// deliveryCountHeader is set by quorum queues on every redelivery.
	deliveryCountHeader = "x-delivery-count"
)

// requeueDelay is how long a failed delivery is held before it is requeued.
var requeueDelay = exponentialBackoff

var (
	ErrCircuitOpen      = errors.New("circuit breaker is open")
	ErrUnknownType      = errors.New("unknown message type")
	errDeliveriesClosed = errors.New("delivery channel closed")
)

// ErrPermanent marks handler failures that retrying cannot fix. Such messages
// are dropped instead of requeued.
var ErrPermanent = errors.New("permanent failure")

// Handler processes decoded submissions.
type Handler interface {
	HandleTransaction(ctx context.Context, msg *TransactionSubmitMessage) error
	HandleCategoryTransfer(ctx context.Context, msg *CategoryTransferMessage) error
}

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount int64
	state        int32
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}
	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	if c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed() {
		return nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	c.conn, c.channel = conn, channel

	if err := c.setup(); err != nil {
		c.closeLocked()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		amqp091.Table{
			"x-queue-type":     "quorum",
			"x-delivery-limit": int32(maxDeliveries),
		},
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name on a direct exchange.
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// PublishTransaction queues a transaction submission.
func (c *Client) PublishTransaction(ctx context.Context, msg *TransactionSubmitMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, TypeTransactionSubmit, msg.ID, body)
}

// PublishCategoryTransfer queues a category transfer submission.
func (c *Client) PublishCategoryTransfer(ctx context.Context, msg *CategoryTransferMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, TypeCategoryTransfer, msg.ID, body)
}

func (c *Client) publish(ctx context.Context, typ, id string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", typ, ErrCircuitOpen)
	}

	var lastErr error
	for attempt := 0; attempt < maxPublishAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(exponentialBackoff(attempt - 1)):
			}
		}

		lastErr = c.publishOnce(ctx, typ, id, body)
		if lastErr == nil {
			c.recordSuccess()
			slog.InfoContext(ctx, "Published submission",
				"type", typ,
				"message_id", id,
				"exchange", c.exchangeName,
				"queue", c.queueName)
			return nil
		}
		c.recordFailure()
		if !isConnectionError(lastErr) {
			break
		}
		slog.WarnContext(ctx, "Publish failed, retrying", "type", typ, "attempt", attempt+1, "error", lastErr)
	}
	return fmt.Errorf("publish %s: %w", typ, lastErr)
}

func (c *Client) publishOnce(ctx context.Context, typ, id string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return c.channel.PublishWithContext(ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Type:         typ,
			MessageId:    id,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// Consume delivers submissions to h until ctx is done, handling up to
// prefetch messages at once. Lost connections are re-established with
// exponential backoff.
func (c *Client) Consume(ctx context.Context, prefetch int, h Handler) error {
	if prefetch < 1 {
		prefetch = 1
	}
	attempt := 0
	for {
		connected, err := c.consumeOnce(ctx, prefetch, h)
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if !isConnectionError(err) && !errors.Is(err, errDeliveriesClosed) {
			return err
		}
		if connected {
			attempt = 0
		}
		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "Consumer disconnected, reconnecting", "error", err, "backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, prefetch int, h Handler) (bool, error) {
	c.mu.Lock()
	if err := c.connectLocked(); err != nil {
		c.mu.Unlock()
		return false, err
	}
	channel := c.channel
	c.mu.Unlock()

	if err := channel.Qos(prefetch, 0, false); err != nil {
		return true, fmt.Errorf("set qos: %w", err)
	}
	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return true, fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming submissions", "queue", c.queueName, "prefetch", prefetch)

	var g errgroup.Group
	g.SetLimit(prefetch)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return true, errDeliveriesClosed
			}
			g.Go(func() error {
				handleDelivery(ctx, delivery, h)
				return nil
			})
		}
	}
}

// handleDelivery decodes and dispatches one delivery, then acks it. Bad
// payloads and permanent failures are dropped. Other failures are requeued
// after a backoff until the message has been delivered maxDeliveries times.
func handleDelivery(ctx context.Context, d amqp091.Delivery, h Handler) {
	err := dispatch(ctx, d.Type, d.Body, h)
	count := deliveryCount(d)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			slog.ErrorContext(ctx, "Failed to ack message", "message_id", d.MessageId, "error", ackErr)
			return
		}
		slog.InfoContext(ctx, "Processed submission", "type", d.Type, "message_id", d.MessageId)
	case errors.Is(err, ErrPermanent) || errors.Is(err, ErrUnknownType):
		slog.ErrorContext(ctx, "Dropping submission", "type", d.Type, "message_id", d.MessageId, "error", err)
		d.Nack(false, false)
	case count+1 >= maxDeliveries:
		slog.ErrorContext(ctx, "Giving up on submission", "type", d.Type, "message_id", d.MessageId, "deliveries", count+1, "error", err)
		d.Nack(false, false)
	default:
		slog.ErrorContext(ctx, "Failed to handle submission, requeueing", "type", d.Type, "message_id", d.MessageId, "deliveries", count+1, "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(requeueDelay(count)):
		}
		d.Nack(false, true)
	}
}

// deliveryCount reports how many times d was handed out before. Queues that
// do not track the count only say whether d was redelivered at all.
func deliveryCount(d amqp091.Delivery) int {
	switch v := d.Headers[deliveryCountHeader].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	if d.Redelivered {
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, typ string, body []byte, h Handler) error {
	switch typ {
	case TypeTransactionSubmit:
		msg, err := TransactionSubmitMessageFromJSON(body)
		if err != nil {
			return fmt.Errorf("%w: decode transaction: %w", ErrPermanent, err)
		}
		return h.HandleTransaction(ctx, msg)
	case TypeCategoryTransfer:
		msg, err := CategoryTransferMessageFromJSON(body)
		if err != nil {
			return fmt.Errorf("%w: decode category transfer: %w", ErrPermanent, err)
		}
		return h.HandleCategoryTransfer(ctx, msg)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns 1s, 2s, 4s... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused",
		"connection closed",
		"connection reset",
		"eof",
		"broken pipe",
		"use of closed network connection",
		"dial amqp",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	return err
}
