package memory

import (
	"context"
	"sync"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/apperr"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
)

type userRow struct {
	u    models.User
	hash string
}

type UserRepo struct {
	mu       sync.Mutex
	users    map[string]*userRow
	byEmail  map[string]string
	byPhone  map[string]string
	profiles map[string]models.StaffProfile
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		users:    map[string]*userRow{},
		byEmail:  map[string]string{},
		byPhone:  map[string]string{},
		profiles: map[string]models.StaffProfile{},
	}
}

func (r *UserRepo) Create(ctx context.Context, u *models.User, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.Email != "" {
		if _, ok := r.byEmail[u.Email]; ok {
			return apperr.Validationf("email already registered")
		}
	}
	if u.Phone != "" {
		if _, ok := r.byPhone[u.Phone]; ok {
			return apperr.Validationf("phone already registered")
		}
	}
	r.users[u.ID] = &userRow{u: *u, hash: passwordHash}
	if u.Email != "" {
		r.byEmail[u.Email] = u.ID
	}
	if u.Phone != "" {
		r.byPhone[u.Phone] = u.ID
	}
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, "", nil
	}
	row := r.users[id]
	u := row.u
	return &u, row.hash, nil
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*models.User, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPhone[phone]
	if !ok {
		return nil, "", nil
	}
	row := r.users[id]
	u := row.u
	return &u, row.hash, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	u := row.u
	return &u, nil
}

func (r *UserRepo) UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.users[id]
	if !ok {
		return nil, apperr.NotFoundf("user %s not found", id)
	}
	row.u.Role = role
	u := row.u
	return &u, nil
}

func (r *UserRepo) UpsertStaffProfile(ctx context.Context, p *models.StaffProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[p.UserID]; !ok {
		return apperr.NotFoundf("user %s not found", p.UserID)
	}
	r.profiles[p.UserID] = *p
	return nil
}

func (r *UserRepo) GetStaffProfile(ctx context.Context, userID string) (*models.StaffProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
