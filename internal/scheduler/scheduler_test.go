package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/events"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/pipeline"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/scheduler"
)

// ── Scheduler ──────────────────────────────────────────────────────────────

func TestScheduler_InvalidSpec(t *testing.T) {
	s := scheduler.New("not a cron spec", func(context.Context) (pipeline.LoadInfo, error) {
		return pipeline.LoadInfo{}, nil
	})
	require.Error(t, s.Start(context.Background()))
}

func TestScheduler_RunOnStart(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{}, 1)
	s := scheduler.New("25 11 * * *", func(context.Context) (pipeline.LoadInfo, error) {
		calls.Add(1)
		done <- struct{}{}
		return pipeline.LoadInfo{LoadID: "l1", Records: 3}, nil
	}, scheduler.RunOnStart())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("load did not run on start")
	}
	require.Equal(t, int32(1), calls.Load())
}

func TestScheduler_StopWaitsForRunOnStart(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	s := scheduler.New("25 11 * * *", func(context.Context) (pipeline.LoadInfo, error) {
		close(started)
		time.Sleep(300 * time.Millisecond)
		finished.Store(true)
		return pipeline.LoadInfo{LoadID: "l1"}, nil
	}, scheduler.RunOnStart())

	require.NoError(t, s.Start(context.Background()))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("load did not run on start")
	}
	s.Stop()
	require.True(t, finished.Load(), "Stop returned before the load finished")
}

func TestScheduler_TickSkipsWhileRunOnStartIsRunning(t *testing.T) {
	var running, peak, calls atomic.Int32
	s := scheduler.New("@every 1s", func(context.Context) (pipeline.LoadInfo, error) {
		calls.Add(1)
		n := running.Add(1)
		defer running.Add(-1)
		if n > peak.Load() {
			peak.Store(n)
		}
		time.Sleep(1500 * time.Millisecond)
		return pipeline.LoadInfo{}, nil
	}, scheduler.RunOnStart())

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(1200 * time.Millisecond)
	s.Stop()

	require.Equal(t, int32(1), peak.Load(), "loads overlapped")
	require.Equal(t, int32(1), calls.Load())
}

func TestScheduler_RunOnceSurvivesFailure(t *testing.T) {
	s := scheduler.New("@daily", func(context.Context) (pipeline.LoadInfo, error) {
		return pipeline.LoadInfo{}, errors.New("api down")
	})
	s.RunOnce(context.Background())
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := scheduler.New("@hourly", func(context.Context) (pipeline.LoadInfo, error) {
		return pipeline.LoadInfo{}, nil
	})
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()
}

// ── Sensor ─────────────────────────────────────────────────────────────────

func TestSensor_RefreshesAndAnnounces(t *testing.T) {
	bus := events.NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refreshed, stop, err := bus.Subscribe(ctx, events.MartsRefreshed)
	require.NoError(t, err)
	defer stop()

	var mu sync.Mutex
	refreshes := 0
	sensor := scheduler.NewSensor(bus, func(context.Context) error {
		mu.Lock()
		refreshes++
		mu.Unlock()
		return nil
	})

	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = sensor.Run(ctx)
	}()
	<-ready

	// The sensor subscribes asynchronously; keep publishing until it reacts.
	deadline := time.After(3 * time.Second)
	for {
		require.NoError(t, bus.Publish(ctx, events.Event{Type: events.JobAdsLoaded, LoadID: "l7"}))
		select {
		case ev := <-refreshed:
			require.Equal(t, "l7", ev.LoadID)
			mu.Lock()
			require.GreaterOrEqual(t, refreshes, 1)
			mu.Unlock()
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("sensor never announced a refresh")
		}
	}
}

func TestSensor_FailedRefreshIsNotAnnounced(t *testing.T) {
	bus := events.NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refreshed, stop, err := bus.Subscribe(ctx, events.MartsRefreshed)
	require.NoError(t, err)
	defer stop()

	attempts := make(chan struct{}, 64)
	sensor := scheduler.NewSensor(bus, func(context.Context) error {
		attempts <- struct{}{}
		return errors.New("warehouse gone")
	})
	go func() { _ = sensor.Run(ctx) }()

	deadline := time.After(3 * time.Second)
	for len(attempts) == 0 {
		require.NoError(t, bus.Publish(ctx, events.Event{Type: events.JobAdsLoaded}))
		select {
		case <-deadline:
			t.Fatal("sensor never attempted a refresh")
		case <-time.After(50 * time.Millisecond):
		}
	}

	select {
	case ev := <-refreshed:
		t.Fatalf("failed refresh announced: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSensor_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sensor := scheduler.NewSensor(events.NewLocalBus(), func(context.Context) error { return nil })

	errc := make(chan error, 1)
	go func() { errc <- sensor.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sensor did not stop")
	}
}
