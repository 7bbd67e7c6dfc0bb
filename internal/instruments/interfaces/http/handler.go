package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"labmaint-cloud/internal/audit"
	"labmaint-cloud/internal/auth"
	instruments "labmaint-cloud/internal/instruments/domain"
	scheduleapp "labmaint-cloud/internal/schedule/application"
	schedule "labmaint-cloud/internal/schedule/domain"
)

// InstrumentStore is the persistence surface the handler needs.
type InstrumentStore interface {
	scheduleapp.InstrumentRepository
	Save(ctx context.Context, instrument *instruments.Instrument) error
	Delete(ctx context.Context, id string) error
}

// Handler provides instrument HTTP endpoints.
type Handler struct {
	repo        InstrumentStore
	schedule    *scheduleapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(repo InstrumentStore, scheduleService *scheduleapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("instruments handler: nil repository")
	}
	return &Handler{repo: repo, schedule: scheduleService, auditLogger: auditLogger}, nil
}

// ServeHTTP handles /api/v1/instruments and /api/v1/instruments/{id}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/instruments")
	id = strings.Trim(id, "/")

	switch {
	case id == "" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case id == "" && r.Method == http.MethodPost:
		h.handleSave(w, r, "")
	case id != "" && r.Method == http.MethodGet:
		h.handleGet(w, r, id)
	case id != "" && r.Method == http.MethodPut:
		h.handleSave(w, r, id)
	case id != "" && r.Method == http.MethodDelete:
		h.handleDelete(w, r, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SaveRequest is the create/update payload.
type SaveRequest struct {
	EqpID           string `json:"eqp_id"`
	Serial          string `json:"serial"`
	Make            string `json:"make"`
	Model           string `json:"model"`
	Location        string `json:"location"`
	MaintenanceType string `json:"maintenance_type"`
	Frequency       string `json:"frequency"`
	ScheduleDate    string `json:"schedule_date"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	instrument, err := h.repo.Get(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if instrument == nil {
		http.Error(w, "instrument not found", http.StatusNotFound)
		return
	}
	writeJSON(w, instrument)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request, id string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req SaveRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.EqpID == "" {
		http.Error(w, "eqp_id required", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	instrument := &instruments.Instrument{
		ID:              id,
		EqpID:           req.EqpID,
		Serial:          req.Serial,
		Make:            req.Make,
		Model:           req.Model,
		Location:        req.Location,
		MaintenanceType: req.MaintenanceType,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	action := "instrument.update"
	if id == "" {
		instrument.ID = audit.NewResourceID("inst")
		action = "instrument.create"
	} else {
		existing, err := h.repo.Get(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if existing == nil {
			http.Error(w, "instrument not found", http.StatusNotFound)
			return
		}
		instrument.CreatedAt = existing.CreatedAt
		instrument.NextMaintenanceDate = existing.NextMaintenanceDate
	}

	if req.Frequency != "" {
		frequency, ok := instruments.NormalizeFrequency(req.Frequency)
		if !ok {
			http.Error(w, "invalid frequency", http.StatusBadRequest)
			return
		}
		instrument.Frequency = frequency
	}
	if req.ScheduleDate != "" {
		anchor, err := time.Parse("2006-01-02", req.ScheduleDate)
		if err != nil {
			http.Error(w, "schedule_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		normalized := schedule.DateOnly(anchor)
		instrument.ScheduleDate = &normalized
	}

	if err := h.repo.Save(r.Context(), instrument); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.schedule != nil && instrument.Scheduled() {
		if _, err := h.schedule.MaterializeInstrument(r.Context(), *instrument); err != nil && !errors.Is(err, schedule.ErrUnscheduled) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		refreshed, err := h.repo.Get(r.Context(), instrument.ID)
		if err == nil && refreshed != nil {
			instrument = refreshed
		}
	}

	writeJSON(w, instrument)
	h.logAudit(r, action, instrument.ID, map[string]any{"eqp_id": instrument.EqpID})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, instruments.ErrNotFound) {
			http.Error(w, "instrument not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, "instrument.delete", id, nil)
}

func (h *Handler) logAudit(r *http.Request, action, instrumentID string, metadata map[string]any) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(metadata)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "instrument",
		ResourceID:   instrumentID,
		InstrumentID: instrumentID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}
