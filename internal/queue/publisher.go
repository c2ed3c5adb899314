package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/model"
)

const (
	dialTimeout    = 2 * time.Second
	redialBackoff  = 5 * time.Second
	publishTimeout = 5 * time.Second
	eventBuffer    = 256
)

var (
	// ErrBrokerUnavailable is returned while the broker cannot be reached.
	// After a failed dial no new dial is attempted for redialBackoff.
	ErrBrokerUnavailable = errors.New("broker unavailable")
	ErrEventBufferFull   = errors.New("event buffer full")
	ErrPublisherClosed   = errors.New("publisher closed")
)

// DialBroker connects with a bounded TCP connect and AMQP handshake.
func DialBroker(url string, timeout time.Duration) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

type envelope struct {
	queue string
	body  []byte
}

// Publisher publishes JSON messages to durable queues. It keeps one
// connection and channel open and redials after a failure.
//
// Domain events (PublishTicketIssued, PublishTicketScanned) are buffered
// and forwarded by a background goroutine, so a slow or absent broker never
// holds up a request. Publish is synchronous and bounded by ctx and the
// dial timeout.
type Publisher struct {
	url  string
	log  logrus.FieldLogger
	dial func(url string) (*amqp.Connection, error)
	now  func() time.Time

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	dialing bool
	retryAt time.Time

	events    chan envelope
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewPublisher(url string, log logrus.FieldLogger) *Publisher {
	return newPublisher(url, log, func(u string) (*amqp.Connection, error) {
		return DialBroker(u, dialTimeout)
	})
}

func newPublisher(url string, log logrus.FieldLogger, dial func(string) (*amqp.Connection, error)) *Publisher {
	p := &Publisher{
		url:    url,
		log:    log.WithField("component", "amqp-publisher"),
		dial:   dial,
		now:    time.Now,
		events: make(chan envelope, eventBuffer),
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.forward()
	return p
}

// Publish marshals v and sends it as a persistent message to queue.
func (p *Publisher) Publish(ctx context.Context, queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", queue, err)
	}
	return p.send(ctx, queue, body)
}

func (p *Publisher) PublishTicketIssued(_ context.Context, ev TicketIssuedEvent) error {
	return p.enqueue(TicketIssuedQueue, ev)
}

func (p *Publisher) PublishTicketScanned(_ context.Context, ev TicketScannedEvent) error {
	return p.enqueue(TicketScannedQueue, ev)
}

// enqueue hands v to the forwarder without blocking. A full buffer drops
// the event.
func (p *Publisher) enqueue(queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", queue, err)
	}
	select {
	case <-p.done:
		return ErrPublisherClosed
	default:
	}
	select {
	case p.events <- envelope{queue: queue, body: body}:
		return nil
	default:
		return fmt.Errorf("%s: %w", queue, ErrEventBufferFull)
	}
}

func (p *Publisher) forward() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			if n := len(p.events); n > 0 {
				p.log.WithField("count", n).Warn("dropping unsent domain events on close")
			}
			return
		case e := <-p.events:
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			if err := p.send(ctx, e.queue, e.body); err != nil {
				p.log.WithError(err).WithField("queue", e.queue).Warn("domain event dropped")
			}
			cancel()
		}
	}
}

func (p *Publisher) send(ctx context.Context, queue string, body []byte) error {
	ch, err := p.channel()
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		p.drop(ch)
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.drop(ch)
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	return nil
}

// Close stops the forwarder and releases the broker connection.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		p.mu.Lock()
		p.reset()
		p.mu.Unlock()
	})
	return nil
}

// channel returns the cached channel, dialing when needed. The dial runs
// without p.mu held; callers arriving meanwhile, or within redialBackoff of
// a failed dial, get ErrBrokerUnavailable at once.
func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	if p.ch != nil && !p.ch.IsClosed() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	if p.dialing || p.now().Before(p.retryAt) {
		p.mu.Unlock()
		return nil, ErrBrokerUnavailable
	}
	p.dialing = true
	p.mu.Unlock()

	conn, err := p.dial(p.url)
	var ch *amqp.Channel
	if err == nil {
		if ch, err = conn.Channel(); err != nil {
			_ = conn.Close()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		p.retryAt = p.now().Add(redialBackoff)
		return nil, fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	p.reset()
	p.conn, p.ch, p.retryAt = conn, ch, time.Time{}
	p.log.Debug("connected to broker")
	return ch, nil
}

// drop discards ch after a failure unless another caller already
// replaced it.
func (p *Publisher) drop(ch *amqp.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == ch {
		p.reset()
	}
}

// reset closes the current connection. p.mu is held.
func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// MailSender hands queued messages to the external delivery service via
// the mail.outbound queue.
type MailSender struct {
	Publisher *Publisher
}

// Send implements the mail worker's Sender.
func (s MailSender) Send(ctx context.Context, m model.OutboundEmail) error {
	msg, err := OutboundFromModel(m)
	if err != nil {
		return err
	}
	return s.Publisher.Publish(ctx, OutboundMailQueue, msg)
}

// OutboundFromModel converts a queue row into the broker message.
func OutboundFromModel(m model.OutboundEmail) (OutboundMail, error) {
	msg := OutboundMail{QueueID: m.ID, To: m.ToEmail, Subject: m.Subject, HTML: m.Body}
	if m.ToName != nil {
		msg.ToName = *m.ToName
	}
	if m.Attachments != nil && *m.Attachments != "" {
		if err := json.Unmarshal([]byte(*m.Attachments), &msg.Attachments); err != nil {
			return OutboundMail{}, fmt.Errorf("decode attachments of email %d: %w", m.ID, err)
		}
	}
	return msg, nil
}
