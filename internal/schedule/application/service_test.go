package application

import (
	"context"
	"errors"
	"testing"
	"time"

	instruments "labmaint-cloud/internal/instruments/domain"
	instrumentsmem "labmaint-cloud/internal/instruments/infrastructure/memory"
	schedule "labmaint-cloud/internal/schedule/domain"
	schedulemem "labmaint-cloud/internal/schedule/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, now time.Time) (*Service, *schedulemem.EventRepository, *instrumentsmem.InstrumentRepository) {
	t.Helper()
	events := schedulemem.NewEventRepository()
	instrumentRepo := instrumentsmem.NewInstrumentRepository()
	service, err := NewService(events, instrumentRepo, WithClock(fixedClock{now: now}))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service, events, instrumentRepo
}

func scheduledInstrument(id, eqpID string, anchor time.Time, frequency instruments.Frequency) instruments.Instrument {
	return instruments.Instrument{
		ID:              id,
		EqpID:           eqpID,
		MaintenanceType: "Calibration",
		Frequency:       frequency,
		ScheduleDate:    &anchor,
	}
}

func TestMaterializeInstrumentIsIdempotent(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	service, events, instrumentRepo := newTestService(t, now)

	anchor := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	instrument := scheduledInstrument("inst-1", "BAL-001", anchor, instruments.FrequencyMonthly)
	if err := instrumentRepo.Save(context.Background(), &instrument); err != nil {
		t.Fatalf("Save: %v", err)
	}

	created, err := service.MaterializeInstrument(context.Background(), instrument)
	if err != nil {
		t.Fatalf("MaterializeInstrument: %v", err)
	}
	if created == nil {
		t.Fatal("expected a created event on first run")
	}
	if !created.DueDate.Equal(anchor) {
		t.Fatalf("due date = %v, want %v", created.DueDate, anchor)
	}

	// Second run must neither duplicate nor mutate the existing event.
	again, err := service.MaterializeInstrument(context.Background(), instrument)
	if err != nil {
		t.Fatalf("second MaterializeInstrument: %v", err)
	}
	if again != nil {
		t.Fatal("expected no event on re-run")
	}
	list, err := events.ListByInstrument(context.Background(), "inst-1")
	if err != nil {
		t.Fatalf("ListByInstrument: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("events = %d, want 1", len(list))
	}

	stored, err := instrumentRepo.Get(context.Background(), "inst-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.NextMaintenanceDate == nil || !stored.NextMaintenanceDate.Equal(anchor) {
		t.Fatalf("next maintenance date = %v, want %v", stored.NextMaintenanceDate, anchor)
	}
}

func TestMaterializeUnscheduledInstrument(t *testing.T) {
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	service, events, instrumentRepo := newTestService(t, now)

	bare := instruments.Instrument{ID: "inst-1", EqpID: "OVEN-001", MaintenanceType: "Inspection"}
	if err := instrumentRepo.Save(context.Background(), &bare); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := service.MaterializeInstrument(context.Background(), bare); !errors.Is(err, schedule.ErrUnscheduled) {
		t.Fatalf("err = %v, want ErrUnscheduled", err)
	}

	// MaterializeAll skips unscheduled instruments without failing.
	createdEvents, err := service.MaterializeAll(context.Background())
	if err != nil {
		t.Fatalf("MaterializeAll: %v", err)
	}
	if len(createdEvents) != 0 {
		t.Fatalf("created = %d, want 0", len(createdEvents))
	}
	list, err := events.ListByInstrument(context.Background(), "inst-1")
	if err != nil {
		t.Fatalf("ListByInstrument: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("events = %d, want 0", len(list))
	}
}

func TestCompleteAdvancesSchedule(t *testing.T) {
	now := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	service, events, instrumentRepo := newTestService(t, now)

	anchor := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	instrument := scheduledInstrument("inst-1", "BAL-001", anchor, instruments.FrequencyMonthly)
	if err := instrumentRepo.Save(context.Background(), &instrument); err != nil {
		t.Fatalf("Save: %v", err)
	}
	created, err := service.MaterializeInstrument(context.Background(), instrument)
	if err != nil {
		t.Fatalf("MaterializeInstrument: %v", err)
	}

	completed, err := service.Complete(context.Background(), created.ID, now, "done")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completed.Status != schedule.StatusCompleted {
		t.Fatalf("status = %q, want completed", completed.Status)
	}
	if completed.CompletedDate == nil || !completed.CompletedDate.Equal(schedule.DateOnly(now)) {
		t.Fatalf("completed date = %v", completed.CompletedDate)
	}

	// One completed monthly cycle from a Jan 31 anchor lands on Feb 29.
	wantNext := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	stored, err := instrumentRepo.Get(context.Background(), "inst-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.NextMaintenanceDate == nil || !stored.NextMaintenanceDate.Equal(wantNext) {
		t.Fatalf("next maintenance date = %v, want %v", stored.NextMaintenanceDate, wantNext)
	}

	open, err := events.ListOpen(context.Background())
	if err != nil {
		t.Fatalf("ListOpen: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("open events = %d, want 1", len(open))
	}
	if !open[0].DueDate.Equal(wantNext) {
		t.Fatalf("next due = %v, want %v", open[0].DueDate, wantNext)
	}
}

func TestCompleteTwiceIsStale(t *testing.T) {
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	service, _, instrumentRepo := newTestService(t, now)

	anchor := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	instrument := scheduledInstrument("inst-1", "BAL-001", anchor, instruments.FrequencyMonthly)
	if err := instrumentRepo.Save(context.Background(), &instrument); err != nil {
		t.Fatalf("Save: %v", err)
	}
	created, err := service.MaterializeInstrument(context.Background(), instrument)
	if err != nil {
		t.Fatalf("MaterializeInstrument: %v", err)
	}

	if _, err := service.Complete(context.Background(), created.ID, now, ""); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	if _, err := service.Complete(context.Background(), created.ID, now, ""); !errors.Is(err, schedule.ErrStaleCompletion) {
		t.Fatalf("err = %v, want ErrStaleCompletion", err)
	}
}

func TestStartTransitions(t *testing.T) {
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	service, events, instrumentRepo := newTestService(t, now)

	if err := service.Start(context.Background(), "evt-missing"); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	anchor := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	instrument := scheduledInstrument("inst-1", "BAL-001", anchor, instruments.FrequencyWeekly)
	if err := instrumentRepo.Save(context.Background(), &instrument); err != nil {
		t.Fatalf("Save: %v", err)
	}
	created, err := service.MaterializeInstrument(context.Background(), instrument)
	if err != nil {
		t.Fatalf("MaterializeInstrument: %v", err)
	}

	if err := service.Start(context.Background(), created.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	event, err := events.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if event.Status != schedule.StatusInProgress {
		t.Fatalf("status = %q, want in progress", event.Status)
	}

	// Starting a completed event must not regress it.
	if _, err := service.Complete(context.Background(), created.ID, now, ""); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := service.Start(context.Background(), created.ID); !errors.Is(err, schedule.ErrStaleCompletion) {
		t.Fatalf("err = %v, want ErrStaleCompletion", err)
	}
}
