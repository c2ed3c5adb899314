package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

type SeatCounts struct {
	Available int `json:"available"`
	Reserved  int `json:"reserved"`
	Sold      int `json:"sold"`
	Blocked   int `json:"blocked"`
}

func (c *SeatCounts) add(status string, n int) {
	switch status {
	case model.SeatReserved:
		c.Reserved += n
	case model.SeatSold:
		c.Sold += n
	case model.SeatBlocked:
		c.Blocked += n
	default:
		c.Available += n
	}
}

type TicketCounts struct {
	Total     int     `json:"total"`
	Active    int     `json:"active"`
	Used      int     `json:"used"`
	Cancelled int     `json:"cancelled"`
	Revenue   float64 `json:"revenue"`
}

type CheckinPoint struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

type EventCheckins struct {
	LastFiveMinutes int            `json:"lastFiveMinutes"`
	LastHour        int            `json:"lastHour"`
	History         []CheckinPoint `json:"history"`
}

type EventSummary struct {
	ID          uint64        `json:"id"`
	Name        string        `json:"name"`
	Description *string       `json:"description"`
	PosterURL   *string       `json:"posterUrl"`
	StartsAt    *time.Time    `json:"startsAt"`
	EndsAt      *time.Time    `json:"endsAt"`
	Capacity    int           `json:"capacity"`
	Seats       SeatCounts    `json:"seats"`
	Tickets     TicketCounts  `json:"tickets"`
	Occupancy   *float64      `json:"occupancy"`
	CheckIns    EventCheckins `json:"checkIns"`
}

type QueueSummary struct {
	Pending int `json:"pending"`
	Sending int `json:"sending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

type Totals struct {
	Events   int          `json:"events"`
	Capacity int          `json:"capacity"`
	Seats    SeatCounts   `json:"seats"`
	Tickets  TicketCounts `json:"tickets"`
	Revenue  float64      `json:"revenue"`
	CheckIns struct {
		LastHour        int `json:"lastHour"`
		LastFiveMinutes int `json:"lastFiveMinutes"`
	} `json:"checkIns"`
}

// Snapshot is the dashboard payload served as JSON and over SSE.
type Snapshot struct {
	GeneratedAt string         `json:"generatedAt"`
	Totals      Totals         `json:"totals"`
	Queue       QueueSummary   `json:"queue"`
	Events      []EventSummary `json:"events"`
}

// Analytics assembles dashboard snapshots.
type Analytics struct {
	Events *repository.EventRepo
	Repo   *repository.AnalyticsRepo
	Now    func() time.Time
}

type snapshotRows struct {
	events   []model.Event
	seats    []repository.StatusCount
	tickets  []repository.TicketCount
	buckets  []repository.CheckinBucket
	lastFive []repository.EventCount
	queue    []repository.QueueCount
}

// Snapshot runs the aggregate queries concurrently and folds them into one
// view.
func (a *Analytics) Snapshot(ctx context.Context) (Snapshot, error) {
	now := nowOr(a.Now)
	var rows snapshotRows
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { rows.events, err = a.Events.List(gctx); return })
	g.Go(func() (err error) { rows.seats, err = a.Repo.SeatCounts(gctx, now); return })
	g.Go(func() (err error) { rows.tickets, err = a.Repo.TicketCounts(gctx); return })
	g.Go(func() (err error) { rows.buckets, err = a.Repo.CheckinBuckets(gctx, now.Add(-time.Hour)); return })
	g.Go(func() (err error) { rows.lastFive, err = a.Repo.CheckinsSince(gctx, now.Add(-5*time.Minute)); return })
	g.Go(func() (err error) { rows.queue, err = a.Repo.QueueCounts(gctx); return })
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return buildSnapshot(now, rows), nil
}

func buildSnapshot(now time.Time, rows snapshotRows) Snapshot {
	seats := map[uint64]*SeatCounts{}
	for _, r := range rows.seats {
		if seats[r.EventID] == nil {
			seats[r.EventID] = &SeatCounts{}
		}
		seats[r.EventID].add(r.Status, r.Count)
	}
	tickets := map[uint64]*TicketCounts{}
	for _, r := range rows.tickets {
		t := tickets[r.EventID]
		if t == nil {
			t = &TicketCounts{}
			tickets[r.EventID] = t
		}
		t.Total += r.Count
		t.Revenue += r.Revenue
		switch r.Status {
		case model.TicketActive:
			t.Active += r.Count
		case model.TicketUsed:
			t.Used += r.Count
		case model.TicketCancelled:
			t.Cancelled += r.Count
		}
	}
	history := map[uint64][]CheckinPoint{}
	for _, r := range rows.buckets {
		bucket := r.Bucket
		if ts, err := time.Parse("2006-01-02 15:04:05", r.Bucket); err == nil {
			bucket = ts.Format(isoMillis)
		}
		history[r.EventID] = append(history[r.EventID], CheckinPoint{Bucket: bucket, Count: r.Count})
	}
	lastFive := map[uint64]int{}
	for _, r := range rows.lastFive {
		lastFive[r.EventID] = r.Count
	}

	snap := Snapshot{GeneratedAt: now.Format(isoMillis), Events: make([]EventSummary, 0, len(rows.events))}
	for _, r := range rows.queue {
		switch r.Status {
		case model.EmailSending:
			snap.Queue.Sending = r.Count
		case model.EmailSent:
			snap.Queue.Sent = r.Count
		case model.EmailFailed:
			snap.Queue.Failed = r.Count
		default:
			snap.Queue.Pending = r.Count
		}
	}

	tot := &snap.Totals
	tot.Events = len(rows.events)
	for _, e := range rows.events {
		sum := EventSummary{
			ID:          e.ID,
			Name:        e.Name,
			Description: e.Description,
			PosterURL:   e.PosterURL,
			StartsAt:    e.StartsAt,
			EndsAt:      e.EndsAt,
			Capacity:    e.Capacity,
			CheckIns:    EventCheckins{History: []CheckinPoint{}},
		}
		if s := seats[e.ID]; s != nil {
			sum.Seats = *s
		}
		if t := tickets[e.ID]; t != nil {
			sum.Tickets = *t
		}
		if h := history[e.ID]; h != nil {
			sum.CheckIns.History = h
		}
		for _, p := range sum.CheckIns.History {
			sum.CheckIns.LastHour += p.Count
		}
		sum.CheckIns.LastFiveMinutes = lastFive[e.ID]
		if e.Capacity > 0 {
			occ := min(1, float64(sum.Tickets.Active+sum.Tickets.Used)/float64(e.Capacity))
			sum.Occupancy = &occ
		}

		tot.Capacity += e.Capacity
		tot.Seats.Available += sum.Seats.Available
		tot.Seats.Reserved += sum.Seats.Reserved
		tot.Seats.Sold += sum.Seats.Sold
		tot.Seats.Blocked += sum.Seats.Blocked
		tot.Tickets.Active += sum.Tickets.Active
		tot.Tickets.Used += sum.Tickets.Used
		tot.Tickets.Cancelled += sum.Tickets.Cancelled
		tot.Revenue += sum.Tickets.Revenue
		tot.CheckIns.LastHour += sum.CheckIns.LastHour
		tot.CheckIns.LastFiveMinutes += sum.CheckIns.LastFiveMinutes

		snap.Events = append(snap.Events, sum)
	}
	tot.Tickets.Total = tot.Tickets.Active + tot.Tickets.Used + tot.Tickets.Cancelled
	tot.Tickets.Revenue = tot.Revenue
	return snap
}
