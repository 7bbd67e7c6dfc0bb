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
	templates "labmaint-cloud/internal/templates/domain"
)

// TemplateStore is the persistence surface the handler needs.
type TemplateStore interface {
	Get(ctx context.Context, id string) (*templates.TestTemplate, error)
	List(ctx context.Context) ([]templates.TestTemplate, error)
	Save(ctx context.Context, template *templates.TestTemplate) error
	Delete(ctx context.Context, id string) error
}

// Handler provides template HTTP endpoints.
type Handler struct {
	repo        TemplateStore
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(repo TemplateStore, auditLogger audit.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("templates handler: nil repository")
	}
	return &Handler{repo: repo, auditLogger: auditLogger}, nil
}

// ServeHTTP handles /api/v1/templates and /api/v1/templates/{id}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/templates")
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

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	template, err := h.repo.Get(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if template == nil {
		http.Error(w, "template not found", http.StatusNotFound)
		return
	}
	writeJSON(w, template)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request, id string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var template templates.TestTemplate
	if err := json.Unmarshal(body, &template); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	template.UpdatedAt = now
	action := "template.update"
	if id == "" {
		template.ID = audit.NewResourceID("tpl")
		template.CreatedAt = now
		action = "template.create"
	} else {
		existing, err := h.repo.Get(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if existing == nil {
			http.Error(w, "template not found", http.StatusNotFound)
			return
		}
		template.ID = id
		template.CreatedAt = existing.CreatedAt
	}

	if err := h.repo.Save(r.Context(), &template); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, template)
	h.logAudit(r, action, template.ID, map[string]any{"name": template.Name, "sections": len(template.Sections)})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, templates.ErrNotFound) {
			http.Error(w, "template not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, "template.delete", id, nil)
}

func (h *Handler) logAudit(r *http.Request, action, templateID string, metadata map[string]any) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(metadata)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "template",
		ResourceID:   templateID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}
