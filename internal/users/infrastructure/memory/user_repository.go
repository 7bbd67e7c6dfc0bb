package memory

import (
	"context"
	"sort"
	"sync"

	users "labmaint-cloud/internal/users/domain"
)

// UserRepository is an in-memory user store for tests and local runs.
type UserRepository struct {
	mu       sync.RWMutex
	profiles map[string]users.UserProfile
}

// NewUserRepository constructs an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{profiles: make(map[string]users.UserProfile)}
}

// Get returns a profile copy or nil.
func (r *UserRepository) Get(ctx context.Context, id string) (*users.UserProfile, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	profile, ok := r.profiles[id]
	if !ok {
		return nil, nil
	}
	copied := profile
	return &copied, nil
}

// List returns all profiles ordered by name.
func (r *UserRepository) List(ctx context.Context) ([]users.UserProfile, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]users.UserProfile, 0, len(r.profiles))
	for _, profile := range r.profiles {
		list = append(list, profile)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// Save upserts a profile.
func (r *UserRepository) Save(ctx context.Context, profile *users.UserProfile) error {
	_ = ctx
	if err := profile.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.ID] = *profile
	return nil
}

// Delete removes a profile.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[id]; !ok {
		return users.ErrNotFound
	}
	delete(r.profiles, id)
	return nil
}
