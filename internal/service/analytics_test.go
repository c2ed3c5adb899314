package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

func TestBuildSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	rows := snapshotRows{
		events: []model.Event{
			{ID: 1, Name: "Gala", Capacity: 4},
			{ID: 2, Name: "Matinee"},
		},
		seats: []repository.StatusCount{
			{EventID: 1, Status: "available", Count: 1},
			{EventID: 1, Status: "sold", Count: 3},
		},
		tickets: []repository.TicketCount{
			{EventID: 1, Status: "active", Count: 2, Revenue: 50},
			{EventID: 1, Status: "used", Count: 3, Revenue: 75},
			{EventID: 1, Status: "cancelled", Count: 1, Revenue: 25},
		},
		buckets: []repository.CheckinBucket{
			{EventID: 1, Bucket: "2026-03-01 18:10:00", Count: 2},
			{EventID: 1, Bucket: "2026-03-01 18:58:00", Count: 1},
		},
		lastFive: []repository.EventCount{{EventID: 1, Count: 1}},
		queue: []repository.QueueCount{
			{Status: "pending", Count: 4},
			{Status: "sent", Count: 9},
		},
	}

	snap := buildSnapshot(now, rows)

	assert.Equal(t, "2026-03-01T19:00:00.000Z", snap.GeneratedAt)
	require.Len(t, snap.Events, 2)

	gala := snap.Events[0]
	assert.Equal(t, SeatCounts{Available: 1, Sold: 3}, gala.Seats)
	assert.Equal(t, TicketCounts{Total: 6, Active: 2, Used: 3, Cancelled: 1, Revenue: 150}, gala.Tickets)
	require.NotNil(t, gala.Occupancy)
	assert.Equal(t, 1.0, *gala.Occupancy, "occupancy is capped at 1")
	assert.Equal(t, 3, gala.CheckIns.LastHour)
	assert.Equal(t, 1, gala.CheckIns.LastFiveMinutes)
	assert.Equal(t, "2026-03-01T18:10:00.000Z", gala.CheckIns.History[0].Bucket)

	matinee := snap.Events[1]
	assert.Nil(t, matinee.Occupancy)
	assert.NotNil(t, matinee.CheckIns.History)
	assert.Empty(t, matinee.CheckIns.History)

	assert.Equal(t, 2, snap.Totals.Events)
	assert.Equal(t, 4, snap.Totals.Capacity)
	assert.Equal(t, 6, snap.Totals.Tickets.Total)
	assert.Equal(t, 150.0, snap.Totals.Revenue)
	assert.Equal(t, QueueSummary{Pending: 4, Sent: 9}, snap.Queue)
}
