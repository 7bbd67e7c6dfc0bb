package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"labmaint-cloud/internal/audit"
	"labmaint-cloud/internal/auth"
	usersapp "labmaint-cloud/internal/users/application"
	users "labmaint-cloud/internal/users/domain"
)

// Handler provides user management HTTP endpoints.
type Handler struct {
	service     *usersapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *usersapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("users handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles /api/v1/users and /api/v1/users/{id}[/permissions|/role].
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/users")
	rest = strings.Trim(rest, "/")
	parts := strings.Split(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case rest == "" && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGet(w, r, parts[0])
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleDelete(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "permissions" && r.Method == http.MethodPut:
		h.handlePermissions(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "role" && r.Method == http.MethodPut:
		h.handleRole(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	profile, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if profile == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, profile)
}

// CreateRequest is the user provisioning payload.
type CreateRequest struct {
	Name        string            `json:"name"`
	Email       string            `json:"email,omitempty"`
	Role        string            `json:"role"`
	Permissions map[string]string `json:"permissions,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req CreateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	profile, err := h.service.Create(r.Context(), usersapp.CreateRequest{
		Name:        req.Name,
		Email:       req.Email,
		Role:        req.Role,
		Permissions: req.Permissions,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, profile)
	h.logAudit(r, "user.create", profile.ID)
}

func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request, id string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	actor := auth.SubjectFromContext(r.Context())
	profile, err := h.service.UpdatePermissions(r.Context(), actor, id, raw)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrNotFound):
			http.Error(w, "user not found", http.StatusNotFound)
		case errors.Is(err, users.ErrProtectedUser):
			http.Error(w, "superadmin is protected", http.StatusForbidden)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	writeJSON(w, profile)
	h.logAudit(r, "user.permissions.update", id)
}

// RoleRequest is the role update payload.
type RoleRequest struct {
	Role            string `json:"role"`
	ClearSuperAdmin bool   `json:"clear_super_admin,omitempty"`
}

func (h *Handler) handleRole(w http.ResponseWriter, r *http.Request, id string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req RoleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	actor := auth.SubjectFromContext(r.Context())
	profile, err := h.service.UpdateRole(r.Context(), actor, id, req.Role, req.ClearSuperAdmin)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrNotFound):
			http.Error(w, "user not found", http.StatusNotFound)
		case errors.Is(err, users.ErrProtectedUser):
			http.Error(w, "superadmin is protected", http.StatusForbidden)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	writeJSON(w, profile)
	h.logAudit(r, "user.role.update", id)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	actor := auth.SubjectFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		switch {
		case errors.Is(err, users.ErrNotFound):
			http.Error(w, "user not found", http.StatusNotFound)
		case errors.Is(err, users.ErrProtectedUser):
			http.Error(w, "superadmin is protected", http.StatusForbidden)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, "user.delete", id)
}

func (h *Handler) logAudit(r *http.Request, action, userID string) {
	if h.auditLogger == nil {
		return
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "user",
		ResourceID:   userID,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}
