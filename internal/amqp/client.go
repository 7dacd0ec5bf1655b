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
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures          = 5
	openTimeout          = 30 * time.Second
	publishTimeout       = 5 * time.Second
	maxBackoff           = 30 * time.Second
	maxReconnectAttempts = 10
)

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time

	// dial replaces connect in tests.
	dial         func() error
	reconnecting atomic.Bool
	stop         chan struct{}
	stopOnce     sync.Once
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
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	return nil
}

func (c *Client) setup(ch *amqp091.Channel) error {
	// Declare exchange
	err := ch.ExchangeDeclare(
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

	// Declare queue
	_, err = ch.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Bind queue to exchange
	err = ch.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

func (c *Client) redial() error {
	if c.dial != nil {
		return c.dial()
	}
	return c.connect()
}

// reconnect redials with exponential backoff until it succeeds, ctx ends or
// the attempts run out.
func (c *Client) reconnect(ctx context.Context) error {
	c.closeConn()
	var err error
	for attempt := 0; attempt < maxReconnectAttempts; attempt++ {
		if err = c.redial(); err == nil {
			if ctx.Err() != nil {
				c.closeConn()
				return ctx.Err()
			}
			slog.InfoContext(ctx, "AMQP reconnected", "attempt", attempt+1)
			return nil
		}
		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP reconnect failed", "attempt", attempt+1, "retry_in", wait, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("reconnect after %d attempts: %w", maxReconnectAttempts, err)
}

func (c *Client) stopCh() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop == nil {
		c.stop = make(chan struct{})
	}
	return c.stop
}

// scheduleReconnect starts a background reconnect unless one is running.
// It ends when the client is closed.
func (c *Client) scheduleReconnect() {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	stop := c.stopCh()
	go func() {
		defer c.reconnecting.Store(false)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-stop:
				cancel()
			case <-ctx.Done():
			}
		}()
		if err := c.reconnect(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("AMQP background reconnect gave up", "error", err)
		}
	}()
}

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
	msg := err.Error()
	for _, s := range []string{"connection", "EOF", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
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

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) currentChannel() *amqp091.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// PublishTransactionEvent publishes evt as a persistent message. It never
// retries: a connection failure is returned at once and reconnection runs in
// the background.
func (c *Client) PublishTransactionEvent(ctx context.Context, evt *TransactionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return errors.New("publish transaction event: circuit breaker is open")
	}

	body, err := evt.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, body); err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.scheduleReconnect()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	slog.InfoContext(ctx, "Published transaction event",
		"kind", evt.Kind,
		"transaction_id", evt.TransactionID,
		"exchange", c.exchangeName)

	return nil
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	ch := c.currentChannel()
	if ch == nil {
		return amqp091.ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

type deliveryAction int

const (
	actionAck deliveryAction = iota
	actionRequeue
	actionDrop
)

// decide runs handler for one message body. Undecodable messages are
// dropped; handler errors requeue.
func decide(ctx context.Context, body []byte, handler func(context.Context, *TransactionEvent) error) deliveryAction {
	msg, err := TransactionEventFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
		return actionDrop
	}
	if err := handler(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to handle message",
			"error", err,
			"kind", msg.Kind,
			"transaction_id", msg.TransactionID)
		return actionRequeue
	}
	return actionAck
}

// ConsumeTransactionEvents delivers events to handler until ctx ends,
// reconnecting when the broker drops the channel.
func (c *Client) ConsumeTransactionEvents(ctx context.Context, handler func(context.Context, *TransactionEvent) error) error {
	for {
		err := c.consume(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.WarnContext(ctx, "Consumer stopped, reconnecting", "error", err)
		if rerr := c.reconnect(ctx); rerr != nil {
			return rerr
		}
	}
}

func (c *Client) consume(ctx context.Context, handler func(context.Context, *TransactionEvent) error) error {
	ch := c.currentChannel()
	if ch == nil {
		return amqp091.ErrClosed
	}
	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming transaction events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			switch decide(ctx, delivery.Body, handler) {
			case actionDrop:
				delivery.Nack(false, false)
			case actionRequeue:
				delivery.Nack(false, true)
			default:
				delivery.Ack(false)
			}
		}
	}
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	stop := c.stopCh()
	c.stopOnce.Do(func() { close(stop) })
	c.closeConn()
	return nil
}
