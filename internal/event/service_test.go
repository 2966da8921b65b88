package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestRecordBroadcastsToFeed(t *testing.T) {
	mock := newMock(t)

	actor := int64(7)
	mock.ExpectQuery(`INSERT INTO system_events`).
		WithArgs("GUIDE_REGISTERED", "New guide registered: João", "info", &actor, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))

	hub := NewHub(nil)
	client := hub.Register(AdminFeed)
	defer hub.Unregister(client)

	svc := NewService(mock, hub)
	svc.Record(context.Background(), Event{
		Type:    "GUIDE_REGISTERED",
		Message: "New guide registered: João",
		ActorID: &actor,
	})

	select {
	case payload := <-client.Send:
		var e Event
		if err := json.Unmarshal(payload, &e); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if e.Type != "GUIDE_REGISTERED" || e.Severity != "info" {
			t.Fatalf("unexpected broadcast: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected broadcast on admin feed")
	}
}

func TestRecordSwallowsWriteFailure(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO system_events`).
		WillReturnError(errors.New("db down"))

	svc := NewService(mock, nil)
	// must not panic or propagate
	svc.Record(context.Background(), Event{Type: "USER_REGISTERED", Message: "x"})
}

func TestRecent(t *testing.T) {
	mock := newMock(t)

	metadata, _ := json.Marshal(map[string]any{"expedition_id": 3})
	mock.ExpectQuery(`FROM system_events`).
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "type", "message", "severity", "actor_id", "metadata", "created_at"}).
			AddRow(int64(2), "EXPEDITION_DELETED", "Expedition removed", "warning", nil, metadata, time.Now()).
			AddRow(int64(1), "USER_REGISTERED", "New trekker registered: Ana", "info", nil, []byte("null"), time.Now()))

	svc := NewService(mock, nil)
	events, err := svc.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 2 || events[0].Type != "EXPEDITION_DELETED" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].Metadata["expedition_id"] == nil {
		t.Fatalf("expected metadata to round-trip")
	}
}

func TestHubLocalBroadcast(t *testing.T) {
	hub := NewHub(nil)
	a := hub.Register(AdminFeed)
	b := hub.Register("other")
	defer hub.Unregister(a)
	defer hub.Unregister(b)

	hub.Broadcast(AdminFeed, []byte("hello"))

	select {
	case msg := <-a.Send:
		if string(msg) != "hello" {
			t.Fatalf("unexpected payload %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected message on admin feed")
	}

	select {
	case msg := <-b.Send:
		t.Fatalf("unexpected message on other feed: %q", msg)
	default:
	}
}

func TestHubRedisBroadcast(t *testing.T) {
	redisServer := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})

	hub := NewHub(client)
	sub := hub.Register(AdminFeed)
	defer hub.Unregister(sub)

	hub.Broadcast(AdminFeed, []byte("cross-instance"))

	// the local fan-out path delivers regardless of redis
	select {
	case msg := <-sub.Send:
		if string(msg) != "cross-instance" {
			t.Fatalf("unexpected payload %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected local delivery")
	}
}

func TestFeedFromChannel(t *testing.T) {
	if got := feedFromChannel("events:admin:broadcast"); got != "admin" {
		t.Fatalf("unexpected feed %q", got)
	}
	if got := feedFromChannel("garbage"); got != "" {
		t.Fatalf("expected empty feed, got %q", got)
	}
}

func TestHubBroadcastDuringChurn(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			client := hub.Register(AdminFeed)
			hub.Unregister(client)
		}
	}()

	for i := 0; i < 500; i++ {
		hub.Broadcast(AdminFeed, []byte("tick"))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("register/unregister churn did not finish")
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register(AdminFeed)
	hub.Unregister(client)

	if _, ok := <-client.Send; ok {
		t.Fatalf("expected closed channel")
	}

	// broadcast after unregister must not panic
	hub.Broadcast(AdminFeed, []byte("late"))
}
