package service

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// Send-now batch limits.
const (
	DefaultMailBatch = 200
	MaxMailBatch     = 500

	DefaultSendTimeout = 10 * time.Second
)

// Sender delivers one queued message.
type Sender interface {
	Send(ctx context.Context, m model.OutboundEmail) error
}

// MailStats summarises one pass over the queue. Pending is the number of
// rows picked up, which includes rows another worker claimed first.
type MailStats struct {
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

// MailWorker drains the email_queue table through a Sender.
type MailWorker struct {
	DB      *sqlx.DB
	Emails  *repository.EmailQueueRepo
	Sender  Sender
	Metrics *Metrics
	Log     logrus.FieldLogger
	Now     func() time.Time

	// SendTimeout bounds one hand-off while its claim transaction is open.
	SendTimeout time.Duration
}

// ClampBatch bounds a requested batch size to 1..MaxMailBatch; 0 or less
// selects DefaultMailBatch.
func ClampBatch(limit int) int {
	switch {
	case limit <= 0:
		return DefaultMailBatch
	case limit > MaxMailBatch:
		return MaxMailBatch
	}
	return limit
}

// ProcessPending delivers up to limit pending messages, oldest first. Each
// message is claimed with a conditional update so concurrent workers never
// send the same row twice.
func (w *MailWorker) ProcessPending(ctx context.Context, limit int) (MailStats, error) {
	rows, err := w.Emails.ListPending(ctx, ClampBatch(limit))
	if err != nil {
		return MailStats{}, err
	}
	stats := MailStats{Pending: len(rows)}
	log := logOr(w.Log)
	for _, m := range rows {
		sent, err := w.processOne(ctx, m)
		switch {
		case err != nil:
			stats.Failed++
			w.Metrics.mailed("failed")
			log.WithError(err).WithField("email_id", m.ID).Error("send email failed")
		case sent:
			stats.Sent++
			w.Metrics.mailed("sent")
		}
	}
	return stats, nil
}

// processOne returns (false, nil) when the row was claimed elsewhere.
func (w *MailWorker) processOne(ctx context.Context, m model.OutboundEmail) (bool, error) {
	var sendErr error
	claimed := false
	err := withTx(ctx, w.DB, func(tx *sqlx.Tx) error {
		n, err := w.Emails.ClaimTx(ctx, tx, m.ID, nowOr(w.Now))
		if err != nil {
			return err
		}
		if n == 0 {
			return errSkipped
		}
		claimed = true
		status := model.EmailSent
		sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout())
		sendErr = w.Sender.Send(sendCtx, m)
		cancel()
		if sendErr != nil {
			status = model.EmailFailed
		}
		return w.Emails.SetStatusTx(ctx, tx, m.ID, status)
	})
	if errors.Is(err, errSkipped) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if sendErr != nil {
		return false, sendErr
	}
	return claimed, nil
}

func (w *MailWorker) sendTimeout() time.Duration {
	if w.SendTimeout > 0 {
		return w.SendTimeout
	}
	return DefaultSendTimeout
}

// Run polls the queue until ctx is cancelled, sleeping idle between empty
// passes.
func (w *MailWorker) Run(ctx context.Context, idle time.Duration) error {
	log := logOr(w.Log)
	for {
		stats, err := w.ProcessPending(ctx, DefaultMailBatch)
		if err != nil {
			log.WithError(err).Error("mail pass failed")
		} else if stats.Pending > 0 {
			log.WithFields(logrus.Fields{"sent": stats.Sent, "failed": stats.Failed}).Info("mail pass done")
		}
		if err == nil && stats.Pending > 0 {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		t := time.NewTimer(idle)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

var errSkipped = errors.New("claimed by another worker")
