package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// seatgen creates the seat map for an event, creating the event first when
// --event-id is not given.
func main() {
	eventID := pflag.Uint64("event-id", 0, "existing event to generate seats for")
	name := pflag.String("name", "", "name of the event to create when --event-id is omitted")
	starts := pflag.String("starts-at", "", "start time of the created event (RFC3339)")
	capacity := pflag.Int("capacity", 0, "number of seats (defaults to the event capacity)")
	section := pflag.String("section", service.DefaultSection, "section label")
	rows := pflag.IntSlice("rows", nil, "seats per row, e.g. --rows 20,22,24")
	pflag.Parse()

	config.LoadDotEnv()
	cfg := config.LoadWorker()
	log := config.NewLogger(cfg.Env, cfg.LogLevel).WithField("component", "seatgen")

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	events := repository.NewEventRepo(db)
	if *eventID == 0 {
		if *name == "" {
			fmt.Fprintln(os.Stderr, "either --event-id or --name is required")
			pflag.Usage()
			os.Exit(2)
		}
		ev := &model.Event{Name: *name, Capacity: *capacity}
		if ev.Capacity == 0 {
			ev.Capacity = model.DefaultCapacity
		}
		if *starts != "" {
			t, err := time.Parse(time.RFC3339, *starts)
			if err != nil {
				log.WithError(err).Fatal("parse --starts-at")
			}
			ev.StartsAt, ev.PerformanceAt = &t, &t
		}
		if err := events.Create(ctx, ev); err != nil {
			log.WithError(err).Fatal("create event")
		}
		*eventID = ev.ID
		log.WithField("event_id", ev.ID).Info("event created")
	}

	gen := &service.SeatGenerator{Events: events, Seats: repository.NewSeatRepo(db), Log: log}
	n, err := gen.Generate(ctx, *eventID, service.LayoutRequest{Capacity: *capacity, Rows: *rows, Section: *section})
	if err != nil {
		log.WithError(err).Fatal("generate seats")
	}
	log.WithFields(map[string]interface{}{"event_id": *eventID, "seats": n}).Info("seat map generated")
}
