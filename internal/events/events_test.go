package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/events"
	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/pipeline"
)

func receive(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return events.Event{}
}

func TestLocalBus_DeliversOnlySubscribedTypes(t *testing.T) {
	bus := events.NewLocalBus()
	ctx := context.Background()

	loaded, cancelLoaded, err := bus.Subscribe(ctx, events.JobAdsLoaded)
	require.NoError(t, err)
	defer cancelLoaded()
	refreshed, cancelRefreshed, err := bus.Subscribe(ctx, events.MartsRefreshed)
	require.NoError(t, err)
	defer cancelRefreshed()

	require.NoError(t, bus.Publish(ctx, events.Event{Type: events.JobAdsLoaded, LoadID: "l1"}))
	require.NoError(t, bus.Publish(ctx, events.Event{Type: events.MartsRefreshed}))

	require.Equal(t, "l1", receive(t, loaded).LoadID)
	require.Equal(t, events.MartsRefreshed, receive(t, refreshed).Type)

	select {
	case ev := <-loaded:
		t.Fatalf("unexpected event on loaded channel: %+v", ev)
	default:
	}
}

func TestLocalBus_CancelClosesChannel(t *testing.T) {
	bus := events.NewLocalBus()
	ch, cancel, err := bus.Subscribe(context.Background(), events.JobAdsLoaded)
	require.NoError(t, err)

	cancel()
	cancel() // idempotent
	_, ok := <-ch
	require.False(t, ok)

	// Publishing after cancel must not panic.
	require.NoError(t, bus.Publish(context.Background(), events.Event{Type: events.JobAdsLoaded}))
}

func TestLocalBus_ContextEndsSubscription(t *testing.T) {
	bus := events.NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _, err := bus.Subscribe(ctx, events.JobAdsLoaded)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after context cancel")
	}
}

func TestLoadNotifier_PublishesLoadedEvent(t *testing.T) {
	bus := events.NewLocalBus()
	ch, cancel, err := bus.Subscribe(context.Background(), events.JobAdsLoaded)
	require.NoError(t, err)
	defer cancel()

	n := events.LoadNotifier{Bus: bus}
	require.NoError(t, n.LoadCompleted(context.Background(), pipeline.LoadInfo{LoadID: "abc", Records: 12}))

	ev := receive(t, ch)
	require.Equal(t, events.JobAdsLoaded, ev.Type)
	require.Equal(t, "abc", ev.LoadID)
	require.Equal(t, 12, ev.Records)
	require.False(t, ev.At.IsZero())
}
