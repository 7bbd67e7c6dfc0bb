package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	instruments "labmaint-cloud/internal/instruments/domain"
	instrumentsrepo "labmaint-cloud/internal/instruments/infrastructure/postgres"
	results "labmaint-cloud/internal/results/domain"
	resultsrepo "labmaint-cloud/internal/results/infrastructure/postgres"
	scheduleapp "labmaint-cloud/internal/schedule/application"
	schedule "labmaint-cloud/internal/schedule/domain"
	schedulerepo "labmaint-cloud/internal/schedule/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestCompletionStoreClosedLoop_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "instruments") ||
		!tableExists(db, "maintenance_events") ||
		!tableExists(db, "maintenance_results") {
		t.Skip("missing tables; run migrations")
	}

	ctx := context.Background()
	instrumentID := "inst-it-001"

	_, _ = db.ExecContext(ctx, "DELETE FROM maintenance_results WHERE instrument_id = $1", instrumentID)
	_, _ = db.ExecContext(ctx, "DELETE FROM maintenance_events WHERE instrument_id = $1", instrumentID)
	_, _ = db.ExecContext(ctx, "DELETE FROM instruments WHERE id = $1", instrumentID)

	instrumentRepo := instrumentsrepo.NewInstrumentRepository(db)
	eventRepo := schedulerepo.NewEventRepository(db)
	resultRepo := resultsrepo.NewResultRepository(db)
	store, err := resultsrepo.NewCompletionStore(db, resultRepo, eventRepo, instrumentRepo)
	if err != nil {
		t.Fatalf("new completion store: %v", err)
	}
	service, err := scheduleapp.NewService(eventRepo, instrumentRepo)
	if err != nil {
		t.Fatalf("new schedule service: %v", err)
	}

	anchor := time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	instrument := instruments.Instrument{
		ID:              instrumentID,
		EqpID:           "IT-BAL-001",
		MaintenanceType: "Calibration",
		Frequency:       instruments.FrequencyMonthly,
		ScheduleDate:    &anchor,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := instrumentRepo.Save(ctx, &instrument); err != nil {
		t.Fatalf("save instrument: %v", err)
	}
	event, err := service.MaterializeInstrument(ctx, instrument)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if event == nil {
		t.Fatal("expected materialized event")
	}

	completedDate := schedule.DateOnly(anchor.AddDate(0, 0, 3))
	nextDue := time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC)
	record := results.MaintenanceResult{
		ID:            "res-it-001",
		EventID:       event.ID,
		InstrumentID:  instrumentID,
		ResultType:    results.ResultPass,
		CompletedDate: completedDate,
		CreatedAt:     now,
	}
	if err := store.RecordCompletion(ctx, record, "integration run", nextDue); err != nil {
		t.Fatalf("record completion: %v", err)
	}

	// A second completion of the same event loses the guard and leaves no
	// second result behind.
	duplicate := record
	duplicate.ID = "res-it-002"
	if err := store.RecordCompletion(ctx, duplicate, "late writer", nextDue); !errors.Is(err, schedule.ErrStaleCompletion) {
		t.Fatalf("duplicate err = %v, want ErrStaleCompletion", err)
	}
	if orphan, err := resultRepo.GetByID(ctx, "res-it-002"); err != nil || orphan != nil {
		t.Fatalf("orphan = %v err = %v, want rolled back", orphan, err)
	}

	stored, err := eventRepo.GetByID(ctx, event.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if stored.Status != schedule.StatusCompleted {
		t.Fatalf("event status = %q, want completed", stored.Status)
	}
	refreshed, err := instrumentRepo.Get(ctx, instrumentID)
	if err != nil {
		t.Fatalf("get instrument: %v", err)
	}
	if refreshed.NextMaintenanceDate == nil || !refreshed.NextMaintenanceDate.Equal(nextDue) {
		t.Fatalf("next due = %v, want %v", refreshed.NextMaintenanceDate, nextDue)
	}

	history, err := resultRepo.ListByInstrument(ctx, instrumentID)
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("results = %d, want 1", len(history))
	}
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
