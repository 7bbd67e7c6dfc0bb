package application

import (
	"context"
	"errors"
	"time"

	"labmaint-cloud/internal/audit"
	"labmaint-cloud/internal/auth"
	users "labmaint-cloud/internal/users/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Repository persists user profiles.
type Repository interface {
	Get(ctx context.Context, id string) (*users.UserProfile, error)
	List(ctx context.Context) ([]users.UserProfile, error)
	Save(ctx context.Context, profile *users.UserProfile) error
	Delete(ctx context.Context, id string) error
}

// Service manages user profiles and their permission maps.
type Service struct {
	repo  Repository
	clock Clock
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService constructs a user service.
func NewService(repo Repository, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("users: nil repository")
	}
	service := &Service{repo: repo, clock: systemClock{}}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Get loads one profile.
func (s *Service) Get(ctx context.Context, id string) (*users.UserProfile, error) {
	return s.repo.Get(ctx, id)
}

// List returns all profiles.
func (s *Service) List(ctx context.Context) ([]users.UserProfile, error) {
	return s.repo.List(ctx)
}

// CreateRequest is the input for provisioning a user.
type CreateRequest struct {
	Name        string
	Email       string
	Role        string
	Permissions map[string]string
}

// Create provisions a profile. An omitted permission map gets the
// least-privilege default; unknown feature keys or levels are rejected.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*users.UserProfile, error) {
	role, ok := auth.NormalizeRole(req.Role)
	if !ok {
		return nil, errors.New("users: invalid role")
	}
	permissions := auth.DefaultPermissions()
	if req.Permissions != nil {
		permissions, ok = auth.NormalizePermissions(req.Permissions)
		if !ok {
			return nil, errors.New("users: invalid permission map")
		}
	}
	now := s.clock.Now()
	profile := &users.UserProfile{
		ID:          audit.NewResourceID("usr"),
		Name:        req.Name,
		Email:       req.Email,
		Role:        role,
		Permissions: permissions,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdatePermissions replaces a user's permission map. Keys outside the
// closed feature set or levels outside hidden/view/edit are rejected whole.
// A superadmin's map is their access; only the superadmin may replace it.
func (s *Service) UpdatePermissions(ctx context.Context, actorID, id string, raw map[string]string) (*users.UserProfile, error) {
	permissions, ok := auth.NormalizePermissions(raw)
	if !ok {
		return nil, errors.New("users: invalid permission map")
	}
	profile, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, users.ErrNotFound
	}
	if profile.SuperAdmin && actorID != id {
		return nil, users.ErrProtectedUser
	}
	profile.Permissions = permissions
	profile.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateRole changes a user's role. A superadmin's role can be changed, and
// the flag cleared, only by the superadmin acting on their own account.
func (s *Service) UpdateRole(ctx context.Context, actorID, id, role string, clearSuperAdmin bool) (*users.UserProfile, error) {
	normalized, ok := auth.NormalizeRole(role)
	if !ok {
		return nil, errors.New("users: invalid role")
	}
	profile, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, users.ErrNotFound
	}
	if profile.SuperAdmin && actorID != id {
		return nil, users.ErrProtectedUser
	}
	profile.Role = normalized
	if clearSuperAdmin && actorID == id {
		profile.SuperAdmin = false
	}
	profile.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Delete removes a profile. A superadmin account can be deleted only by
// itself.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	profile, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if profile == nil {
		return users.ErrNotFound
	}
	if profile.SuperAdmin && actorID != id {
		return users.ErrProtectedUser
	}
	return s.repo.Delete(ctx, id)
}

// PermissionsFor resolves the permission map used to authorize a request.
// Unprovisioned users fall back to the least-privilege default map.
func (s *Service) PermissionsFor(ctx context.Context, userID string) (auth.PermissionMap, error) {
	profile, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil || profile.Permissions == nil {
		return auth.DefaultPermissions(), nil
	}
	return profile.Permissions, nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
