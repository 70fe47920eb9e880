package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/events"
)

// RefreshFunc rebuilds the marts.
type RefreshFunc func(ctx context.Context) error

// Sensor rebuilds the marts after every JobAdsLoaded event and announces
// MartsRefreshed when done.
type Sensor struct {
	bus     events.Bus
	refresh RefreshFunc
	logger  *slog.Logger
}

func NewSensor(bus events.Bus, refresh RefreshFunc) *Sensor {
	return &Sensor{
		bus:     bus,
		refresh: refresh,
		logger:  slog.Default().With("component", "sensor"),
	}
}

// Run blocks until ctx ends. A failed refresh is logged and the sensor
// keeps listening.
func (s *Sensor) Run(ctx context.Context) error {
	ch, cancel, err := s.bus.Subscribe(ctx, events.JobAdsLoaded)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", events.JobAdsLoaded, err)
	}
	defer cancel()
	s.logger.Info("sensor listening", "event", events.JobAdsLoaded)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(ctx, ev)
		}
	}
}

func (s *Sensor) handle(ctx context.Context, ev events.Event) {
	s.logger.Info("load detected, refreshing marts", "load_id", ev.LoadID, "records", ev.Records)
	if err := s.refresh(ctx); err != nil {
		s.logger.Error("mart refresh failed", "load_id", ev.LoadID, "err", err)
		return
	}
	err := s.bus.Publish(ctx, events.Event{Type: events.MartsRefreshed, LoadID: ev.LoadID, At: time.Now().UTC()})
	if err != nil {
		s.logger.Warn("publish "+events.MartsRefreshed+" failed", "err", err)
	}
}
