package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"labmaint-cloud/internal/audit"
	"labmaint-cloud/internal/auth"
	instruments "labmaint-cloud/internal/instruments/domain"
	"labmaint-cloud/internal/observability/metrics"
	resultsapp "labmaint-cloud/internal/results/application"
	"labmaint-cloud/internal/results/interfaces"
	scheduleapp "labmaint-cloud/internal/schedule/application"
	schedule "labmaint-cloud/internal/schedule/domain"
	templates "labmaint-cloud/internal/templates/domain"
)

// Handler provides the maintenance run HTTP endpoints: due lists, event
// start/result, history and exports.
type Handler struct {
	facade      *resultsapp.Facade
	schedule    *scheduleapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(facade *resultsapp.Facade, scheduleService *scheduleapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if facade == nil {
		return nil, errors.New("results handler: nil facade")
	}
	if scheduleService == nil {
		return nil, errors.New("results handler: nil schedule service")
	}
	return &Handler{facade: facade, schedule: scheduleService, auditLogger: auditLogger}, nil
}

// ServeHTTP dispatches /api/v1/maintenance routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/maintenance")
	rest = strings.Trim(rest, "/")
	parts := strings.Split(rest, "/")

	switch {
	case rest == "due" && r.Method == http.MethodGet:
		h.handleDue(w, r)
	case rest == "history" && r.Method == http.MethodGet:
		h.handleHistory(w, r)
	case rest == "history/export.xlsx" && r.Method == http.MethodGet:
		h.handleHistoryExport(w, r)
	case len(parts) == 3 && parts[0] == "events" && parts[2] == "start" && r.Method == http.MethodPost:
		h.handleStart(w, r, parts[1])
	case len(parts) == 3 && parts[0] == "events" && parts[2] == "complete" && r.Method == http.MethodPost:
		h.handleComplete(w, r, parts[1])
	case len(parts) == 3 && parts[0] == "events" && parts[2] == "result" && r.Method == http.MethodPost:
		h.handleResult(w, r, parts[1])
	case len(parts) == 2 && parts[0] == "results" && r.Method == http.MethodGet:
		h.handleGetResult(w, r, parts[1])
	case len(parts) == 3 && parts[0] == "results" && parts[2] == "export.pdf" && r.Method == http.MethodGet:
		h.handleResultExport(w, r, parts[1])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleDue(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	if at := r.URL.Query().Get("at"); at != "" {
		parsed, err := time.Parse("2006-01-02", at)
		if err != nil {
			http.Error(w, "at must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		now = parsed
	}
	list, err := h.facade.DueAndOverdue(r.Context(), now)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request, eventID string) {
	if err := h.schedule.Start(r.Context(), eventID); err != nil {
		switch {
		case errors.Is(err, schedule.ErrNotFound):
			http.Error(w, "event not found", http.StatusNotFound)
		case errors.Is(err, schedule.ErrStaleCompletion):
			http.Error(w, "event already completed", http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, "maintenance.start", eventID, "", nil)
}

// CompleteRequest is the plain completion payload for events recorded
// without a structured result.
type CompleteRequest struct {
	Notes         string `json:"notes,omitempty"`
	CompletedDate string `json:"completed_date,omitempty"`
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request, eventID string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req CompleteRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}
	completedAt := time.Now().UTC()
	if req.CompletedDate != "" {
		completedAt, err = time.Parse("2006-01-02", req.CompletedDate)
		if err != nil {
			http.Error(w, "completed_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	event, err := h.schedule.Complete(r.Context(), eventID, completedAt, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, schedule.ErrNotFound):
			http.Error(w, "event not found", http.StatusNotFound)
		case errors.Is(err, schedule.ErrStaleCompletion):
			http.Error(w, "event already completed", http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, event)
	h.logAudit(r, "maintenance.complete", eventID, event.InstrumentID, nil)
}

// ResultRequest is the record-result payload.
type ResultRequest struct {
	TemplateID    string                  `json:"template_id,omitempty"`
	Sections      []templates.TestSection `json:"sections,omitempty"`
	ResultType    string                  `json:"result_type,omitempty"`
	DocumentRef   string                  `json:"document_ref,omitempty"`
	Notes         string                  `json:"notes,omitempty"`
	CompletedDate string                  `json:"completed_date,omitempty"`
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request, eventID string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ResultRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var completedAt time.Time
	if req.CompletedDate != "" {
		completedAt, err = time.Parse("2006-01-02", req.CompletedDate)
		if err != nil {
			http.Error(w, "completed_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	resp, err := h.facade.RecordResult(r.Context(), auth.PermissionsFromContext(r.Context()), resultsapp.RecordResultRequest{
		EventID:     eventID,
		TemplateID:  req.TemplateID,
		Sections:    req.Sections,
		ResultType:  req.ResultType,
		DocumentRef: req.DocumentRef,
		Notes:       req.Notes,
		CompletedAt: completedAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrPermissionDenied):
			http.Error(w, "forbidden", http.StatusForbidden)
		case errors.Is(err, schedule.ErrNotFound), errors.Is(err, instruments.ErrNotFound), errors.Is(err, templates.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, schedule.ErrStaleCompletion):
			http.Error(w, "event already completed", http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	writeJSON(w, resp)
	h.logAudit(r, "maintenance.result", eventID, resp.Result.InstrumentID, map[string]any{
		"result_id":   resp.Result.ID,
		"result_type": resp.Result.ResultType,
		"passed":      resp.Passed,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	instrumentID := r.URL.Query().Get("instrument_id")
	if instrumentID == "" {
		http.Error(w, "instrument_id required", http.StatusBadRequest)
		return
	}
	history, err := h.facade.History(r.Context(), instrumentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, history)
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request, id string) {
	result, err := h.facade.Result(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if result == nil {
		http.Error(w, "result not found", http.StatusNotFound)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) handleResultExport(w http.ResponseWriter, r *http.Request, id string) {
	result, err := h.facade.Result(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if result == nil {
		http.Error(w, "result not found", http.StatusNotFound)
		return
	}
	instrument, err := h.facade.Instrument(r.Context(), result.InstrumentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	started := time.Now()
	data, err := interfaces.BuildResultPDF(instrument, result)
	metrics.ObserveExport("pdf", err, time.Since(started))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=\"maintenance-result-"+id+".pdf\"")
	_, _ = w.Write(data)
	h.logAudit(r, "maintenance.export.pdf", "", result.InstrumentID, map[string]any{"result_id": id})
}

func (h *Handler) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	instrumentID := r.URL.Query().Get("instrument_id")
	if instrumentID == "" {
		http.Error(w, "instrument_id required", http.StatusBadRequest)
		return
	}
	instrument, err := h.facade.Instrument(r.Context(), instrumentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if instrument == nil {
		http.Error(w, "instrument not found", http.StatusNotFound)
		return
	}
	history, err := h.facade.History(r.Context(), instrumentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	started := time.Now()
	data, err := interfaces.BuildHistoryXLSX(instrument, history)
	metrics.ObserveExport("xlsx", err, time.Since(started))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=\"maintenance-history-"+instrument.EqpID+".xlsx\"")
	_, _ = w.Write(data)
	h.logAudit(r, "maintenance.export.xlsx", "", instrumentID, nil)
}

func (h *Handler) logAudit(r *http.Request, action, eventID, instrumentID string, metadata map[string]any) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(metadata)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "maintenance_event",
		ResourceID:   eventID,
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
