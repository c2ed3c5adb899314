package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// mailer drains email_queue into the mail.outbound RabbitMQ queue.
func main() {
	config.LoadDotEnv()
	cfg := config.LoadWorker()
	log := config.NewLogger(cfg.Env, cfg.LogLevel).WithField("component", "mailer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	pub := queue.NewPublisher(cfg.AMQPURL, log)
	defer pub.Close()

	w := &service.MailWorker{
		DB:      db,
		Emails:  repository.NewEmailQueueRepo(db),
		Sender:  queue.MailSender{Publisher: pub},
		Metrics: service.NewMetrics(prometheus.NewRegistry()),
		Log:     log,
	}
	log.WithField("poll_interval", cfg.MailPollInterval).Info("mail worker started")
	if err := w.Run(ctx, cfg.MailPollInterval); err != nil {
		log.WithError(err).Error("mail worker stopped")
	}
}
