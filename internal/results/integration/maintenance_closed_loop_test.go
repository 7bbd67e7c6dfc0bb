package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"labmaint-cloud/internal/auth"
	instruments "labmaint-cloud/internal/instruments/domain"
	instrumentsmem "labmaint-cloud/internal/instruments/infrastructure/memory"
	resultsapp "labmaint-cloud/internal/results/application"
	resultsmem "labmaint-cloud/internal/results/infrastructure/memory"
	resultshttp "labmaint-cloud/internal/results/interfaces/http"
	scheduleapp "labmaint-cloud/internal/schedule/application"
	schedulemem "labmaint-cloud/internal/schedule/infrastructure/memory"
	usersapp "labmaint-cloud/internal/users/application"
	usersmem "labmaint-cloud/internal/users/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func signToken(t *testing.T, secret []byte, subject, role string) string {
	t.Helper()
	claims := auth.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestMaintenanceClosedLoop(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 2, 5, 9, 0, 0, 0, time.UTC)
	secret := []byte("integration-secret")

	events := schedulemem.NewEventRepository()
	instrumentRepo := instrumentsmem.NewInstrumentRepository()
	store := resultsmem.NewResultStore(events, instrumentRepo)
	userRepo := usersmem.NewUserRepository()

	scheduleService, err := scheduleapp.NewService(events, instrumentRepo, scheduleapp.WithClock(fixedClock{now: now}))
	if err != nil {
		t.Fatalf("schedule service: %v", err)
	}
	facade, err := resultsapp.NewFacade(instrumentRepo, events, store, store, scheduleService, resultsapp.WithClock(fixedClock{now: now}))
	if err != nil {
		t.Fatalf("facade: %v", err)
	}
	userService, err := usersapp.NewService(userRepo)
	if err != nil {
		t.Fatalf("user service: %v", err)
	}
	handler, err := resultshttp.NewHandler(facade, scheduleService, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	// Technician profile granted edit on maintenance updates.
	tech, err := userService.Create(ctx, usersapp.CreateRequest{
		Name: "Tess",
		Role: "user",
		Permissions: map[string]string{
			"dashboard":           "view",
			"maintenance_history": "view",
			"update_maintenance":  "edit",
		},
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	anchor := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	instrument := instruments.Instrument{
		ID:              "inst-1",
		EqpID:           "BAL-001",
		MaintenanceType: "Calibration",
		Frequency:       instruments.FrequencyMonthly,
		ScheduleDate:    &anchor,
	}
	if err := instrumentRepo.Save(ctx, &instrument); err != nil {
		t.Fatalf("save instrument: %v", err)
	}
	if _, err := scheduleService.MaterializeInstrument(ctx, instrument); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	policy := auth.NewDefaultPolicy(nil, nil)
	middleware := auth.NewMiddleware(secret, policy, userService)
	mux := http.NewServeMux()
	mux.Handle("/api/v1/maintenance/", handler)
	server := httptest.NewServer(middleware.Wrap(mux))
	defer server.Close()

	techToken := signToken(t, secret, tech.ID, "user")
	strangerToken := signToken(t, secret, "usr-unknown", "user")

	// Due list: the Jan 31 cycle is overdue on Feb 5.
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/v1/maintenance/due?at=2024-02-05", nil)
	req.Header.Set("Authorization", "Bearer "+techToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("due request: %v", err)
	}
	var due resultsapp.DueList
	if err := json.NewDecoder(resp.Body).Decode(&due); err != nil {
		t.Fatalf("decode due list: %v", err)
	}
	resp.Body.Close()
	if len(due.Overdue) != 1 {
		t.Fatalf("overdue = %d, want 1", len(due.Overdue))
	}
	eventID := due.Overdue[0].Event.ID

	// An unprovisioned caller falls back to the default map and cannot
	// record results.
	payload, _ := json.Marshal(resultshttp.ResultRequest{Notes: "attempt"})
	req, _ = http.NewRequest(http.MethodPost, server.URL+"/api/v1/maintenance/events/"+eventID+"/result", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+strangerToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stranger result request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger status = %d, want 403", resp.StatusCode)
	}

	// The technician records the result.
	payload, _ = json.Marshal(resultshttp.ResultRequest{Notes: "calibrated", CompletedDate: "2024-02-05"})
	req, _ = http.NewRequest(http.MethodPost, server.URL+"/api/v1/maintenance/events/"+eventID+"/result", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+techToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("result request: %v", err)
	}
	var recorded resultsapp.RecordResultResponse
	if err := json.NewDecoder(resp.Body).Decode(&recorded); err != nil {
		t.Fatalf("decode result response: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("result status = %d, want 200", resp.StatusCode)
	}
	wantNext := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	if !recorded.NextDue.Equal(wantNext) {
		t.Fatalf("next due = %v, want %v", recorded.NextDue, wantNext)
	}

	// Recording again conflicts.
	req, _ = http.NewRequest(http.MethodPost, server.URL+"/api/v1/maintenance/events/"+eventID+"/result", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+techToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("repeat result request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("repeat status = %d, want 409", resp.StatusCode)
	}

	// History shows exactly one record.
	req, _ = http.NewRequest(http.MethodGet, server.URL+"/api/v1/maintenance/history?instrument_id=inst-1", nil)
	req.Header.Set("Authorization", "Bearer "+techToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("history request: %v", err)
	}
	var history []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	resp.Body.Close()
	if len(history) != 1 {
		t.Fatalf("history = %d records, want 1", len(history))
	}
}
