package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/qrtoken"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/router"
	"github.com/iliyamo/event-ticketing/internal/service"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	log := config.NewLogger(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("migrate schema")
		}
	}

	signer, err := qrtoken.NewSigner([]byte(cfg.QRSecret))
	if err != nil {
		log.WithError(err).Fatal("qr signer")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(reg)

	rdb := config.NewRedisClient(log)
	if rdb != nil {
		defer rdb.Close()
	}
	pub := queue.NewPublisher(cfg.AMQPURL, log)
	defer pub.Close()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	seats := repository.NewSeatRepo(db)
	tickets := repository.NewTicketRepo(db)
	emails := repository.NewEmailQueueRepo(db)

	if _, err := service.EnsureAdmin(ctx, users, cfg.AdminEmail, cfg.AdminPassword, cfg.BcryptCost, log); err != nil {
		log.WithError(err).Fatal("bootstrap admin")
	}

	allocator := &service.Allocator{
		DB: db, Seats: seats, HoldDuration: cfg.HoldDuration, Log: log, Metrics: metrics,
	}
	issuer := &service.Issuer{
		DB: db, Events: events, Seats: seats, Tickets: tickets, Emails: emails,
		Signer: signer, Publisher: pub, Metrics: metrics, Log: log,
		CodePrefix: cfg.TicketCodePrefix, CIDDomain: cfg.MailCIDDomain,
	}
	scanner := &service.Scanner{Signer: signer, Tickets: tickets, Publisher: pub, Metrics: metrics, Log: log}
	mailer := &service.MailWorker{DB: db, Emails: emails, Sender: queue.MailSender{Publisher: pub}, Metrics: metrics, Log: log}
	analytics := &service.Analytics{Events: events, Repo: repository.NewAnalyticsRepo(db)}
	layout := &service.SeatGenerator{Events: events, Seats: seats, Log: log}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(log)
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.CORS(cfg.AllowedOrigins))
	e.Use(echomw.BodyLimit("5M"))

	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e, db, reg)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret, limit)
	router.RegisterAdmin(e, router.Admin{
		Events:     &handler.EventHandler{Events: events, Seats: seats, Layout: layout},
		Allocation: &handler.AllocationHandler{Allocator: allocator},
		Tickets:    &handler.TicketHandler{Issuer: issuer, Mail: mailer},
		Analytics:  &handler.AnalyticsHandler{Source: analytics, Refresh: cfg.AnalyticsRefresh, Log: log},
	}, cfg.JWTSecret, cache)
	router.RegisterScanner(e, &handler.ScanHandler{Scanner: scanner}, cfg.JWTSecret, limit)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{"port": cfg.Port, "env": cfg.Env}).Info("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	if cfg.AuditConsumer {
		g.Go(func() error {
			return queue.StartAuditConsumer(gctx, cfg.AMQPURL, cfg.AuditDir, log)
		})
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server stopped")
	}
	log.Info("bye")
}
