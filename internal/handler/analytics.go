package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/service"
)

type SnapshotSource interface {
	Snapshot(ctx context.Context) (service.Snapshot, error)
}

// AnalyticsHandler serves the dashboard snapshot, once or as an SSE stream.
type AnalyticsHandler struct {
	Source  SnapshotSource
	Refresh time.Duration
	Log     logrus.FieldLogger
}

func (h *AnalyticsHandler) Overview(c echo.Context) error {
	snap, err := h.Source.Snapshot(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

// Stream sends a snapshot immediately and then every Refresh until the
// client goes away. Failed snapshots are sent as "error" events and the
// stream carries on.
func (h *AnalyticsHandler) Stream(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache, no-transform")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ctx := c.Request().Context()
	refresh := h.Refresh
	if refresh <= 0 {
		refresh = 5 * time.Second
	}
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	for {
		if err := h.send(ctx, w); err != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// send writes one frame. An error means the client connection is gone.
func (h *AnalyticsHandler) send(ctx context.Context, w *echo.Response) error {
	var frame string
	snap, err := h.Source.Snapshot(ctx)
	if err == nil {
		var b []byte
		if b, err = json.Marshal(snap); err == nil {
			frame = fmt.Sprintf("data: %s\n\n", b)
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if h.Log != nil {
			h.Log.WithError(err).Warn("analytics stream snapshot failed")
		}
		b, _ := json.Marshal(echo.Map{"error": err.Error()})
		frame = fmt.Sprintf("event: error\ndata: %s\n\n", b)
	}
	if _, err := w.Write([]byte(frame)); err != nil {
		return err
	}
	w.Flush()
	return nil
}
