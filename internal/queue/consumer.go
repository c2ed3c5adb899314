package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const auditFile = "tickets.log"

// StartAuditConsumer consumes ticket.issued and ticket.scanned and appends
// one line per message to <dir>/tickets.log. It reconnects with backoff and
// returns nil once ctx is cancelled.
func StartAuditConsumer(ctx context.Context, url, dir string, log logrus.FieldLogger) error {
	log = log.WithField("component", "audit-consumer")
	backoff := time.Second
	for {
		conn, err := DialBroker(url, dialTimeout)
		if err != nil {
			log.WithError(err).Warnf("dial broker failed; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, dir, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		log.WithError(err).Warn("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, dir string, log logrus.FieldLogger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("set QoS failed")
	}

	issued, err := subscribe(ch, TicketIssuedQueue)
	if err != nil {
		return err
	}
	scanned, err := subscribe(ch, TicketScannedQueue)
	if err != nil {
		return err
	}

	for {
		var (
			d  amqp.Delivery
			ok bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok = <-issued:
		case d, ok = <-scanned:
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := handleMessage(dir, d.RoutingKey, d.Body); err != nil {
			log.WithError(err).WithField("queue", d.RoutingKey).Error("handle message failed")
			_ = d.Nack(false, false) // no requeue, avoids a poison-message loop
			continue
		}
		_ = d.Ack(false)
	}
}

func subscribe(ch *amqp.Channel, queue string) (<-chan amqp.Delivery, error) {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare %s: %w", queue, err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	return msgs, nil
}

func handleMessage(dir, queue string, body []byte) error {
	line, err := auditLine(queue, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, auditFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// auditLine formats one message as a single log line.
func auditLine(queue string, body []byte) (string, error) {
	switch queue {
	case TicketIssuedQueue:
		var ev TicketIssuedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", queue, err)
		}
		return fmt.Sprintf("[%s] Ticket issued | ticket_id=%d | code=%s | event_id=%d | seat=%q | email=%s | price=%.2f | bulk=%t\n",
			ev.IssuedAt, ev.TicketID, ev.TicketCode, ev.EventID, ev.SeatLabel, ev.Email, ev.Price, ev.Bulk), nil
	case TicketScannedQueue:
		var ev TicketScannedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", queue, err)
		}
		return fmt.Sprintf("[%s] Ticket admitted | ticket_id=%d | code=%s | event_id=%d | seat=%q\n",
			ev.ScannedAt, ev.TicketID, ev.TicketCode, ev.EventID, ev.SeatLabel), nil
	}
	return "", fmt.Errorf("unexpected queue %q", queue)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
