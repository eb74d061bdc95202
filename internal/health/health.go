// Package health reports the outcome of the last run over HTTP.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/clambin/wunderground/internal/app"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// A Subscriber provides the summary of each run.
type Subscriber interface {
	Subscribe() <-chan app.Summary
	Unsubscribe(<-chan app.Summary)
}

type Health struct {
	Updates Subscriber
	logger  *slog.Logger
	update  app.Summary
	updated bool
	lock    sync.RWMutex
}

func New(updates Subscriber, logger *slog.Logger) *Health {
	return &Health{
		Updates: updates,
		logger:  logger,
	}
}

func (h *Health) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	ch := h.Updates.Subscribe()
	defer h.Updates.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			h.lock.Lock()
			h.update = update
			h.updated = true
			h.lock.Unlock()
		}
	}
}

// ServeHTTP returns the summary of the last run. It reports unavailable until the first run completed and
// while the last run failed.
func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if !h.updated {
		http.Error(w, "no update yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if h.update.Err != "" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(h.update); err != nil {
		h.logger.Error("failed to encode health", "err", err)
	}
}

// Router serves the health endpoint and, if metrics is not nil, the metrics endpoint.
func Router(h http.Handler, metrics http.Handler) *fiber.App {
	r := fiber.New(fiber.Config{
		AppName:               "wunderground",
		DisableStartupMessage: true,
	})
	r.Use(recover.New())
	r.Get("/health", adaptor.HTTPHandler(h))
	if metrics != nil {
		r.Get("/metrics", adaptor.HTTPHandler(metrics))
	}
	return r
}
