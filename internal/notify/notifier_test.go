package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	instruments "labmaint-cloud/internal/instruments/domain"
	schedule "labmaint-cloud/internal/schedule/domain"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func overdueEvent() (schedule.MaintenanceEvent, instruments.Instrument) {
	due := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	event := schedule.MaintenanceEvent{
		ID:              "evt-1",
		InstrumentID:    "inst-1",
		MaintenanceType: "Calibration",
		DueDate:         due,
		Status:          schedule.StatusScheduled,
	}
	instrument := instruments.Instrument{
		ID:       "inst-1",
		EqpID:    "BAL-001",
		Location: "Lab 2",
	}
	return event, instrument
}

func TestNotifierSendsRenderedPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("NewWebhookChannel: %v", err)
	}
	clock := &stepClock{now: time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)}
	notifier, err := NewNotifier(channel, nil, WithClock(clock))
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}

	event, instrument := overdueEvent()
	notifier.NotifyOverdue(context.Background(), event, instrument)

	select {
	case payload := <-payloadCh:
		if payload.MsgType != "text" {
			t.Fatalf("msgtype = %q, want text", payload.MsgType)
		}
		content := payload.Text.Content
		for _, want := range []string{"BAL-001", "Calibration", "2024-02-29", "Days Overdue: 5", "Lab 2"} {
			if !strings.Contains(content, want) {
				t.Fatalf("content missing %q:\n%s", want, content)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no webhook delivery")
	}
}

func TestNotifierCooldownSuppressesRepeats(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("NewWebhookChannel: %v", err)
	}
	clock := &stepClock{now: time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)}
	notifier, err := NewNotifier(channel, nil, WithClock(clock), WithCooldown(20*time.Hour))
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}

	event, instrument := overdueEvent()
	notifier.NotifyOverdue(context.Background(), event, instrument)
	notifier.NotifyOverdue(context.Background(), event, instrument)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 within cooldown", calls)
	}

	clock.now = clock.now.Add(24 * time.Hour)
	notifier.NotifyOverdue(context.Background(), event, instrument)
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 after cooldown", calls)
	}
}

func TestNotifierEvictsExpiredCooldownEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("NewWebhookChannel: %v", err)
	}
	clock := &stepClock{now: time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)}
	notifier, err := NewNotifier(channel, nil, WithClock(clock), WithCooldown(20*time.Hour))
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}

	instrument := instruments.Instrument{ID: "inst-1", EqpID: "BAL-001"}
	due := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		event := schedule.MaintenanceEvent{
			ID:              "evt-" + string(rune('a'+i)),
			InstrumentID:    instrument.ID,
			MaintenanceType: "Calibration",
			DueDate:         due,
			Status:          schedule.StatusScheduled,
		}
		notifier.NotifyOverdue(context.Background(), event, instrument)
	}

	// After a day every earlier entry is past the cooldown; the next send
	// evicts them so completed events do not accumulate for the process
	// lifetime.
	clock.now = clock.now.Add(24 * time.Hour)
	event, _ := overdueEvent()
	notifier.NotifyOverdue(context.Background(), event, instrument)

	notifier.mu.Lock()
	size := len(notifier.sent)
	notifier.mu.Unlock()
	if size != 1 {
		t.Fatalf("sent entries = %d, want only the fresh one", size)
	}
}

func TestNotifierRetriesAfterFailedDelivery(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("NewWebhookChannel: %v", err)
	}
	clock := &stepClock{now: time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)}
	notifier, err := NewNotifier(channel, nil, WithClock(clock), WithCooldown(20*time.Hour))
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}

	event, instrument := overdueEvent()
	notifier.NotifyOverdue(context.Background(), event, instrument)
	// A failed send does not start the cooldown.
	notifier.NotifyOverdue(context.Background(), event, instrument)
	if calls != 2 {
		t.Fatalf("calls = %d, want immediate retry after failure", calls)
	}
}
