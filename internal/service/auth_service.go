package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/apperr"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/repository"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/utils"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const sessionTTL = 24 * time.Hour

type AuthService struct {
	users         repository.UserRepository
	sessionSecret string
	now           func() time.Time
}

func NewAuthService(users repository.UserRepository, sessionSecret string) *AuthService {
	return &AuthService{users: users, sessionSecret: sessionSecret, now: time.Now}
}

// Register creates a citizen account. At least one of phone/email is
// required as the login credential. Self-registration never grants a
// staff role; those are provisioned by an admin via Provision.
func (a *AuthService) Register(ctx context.Context, name, email, phone, password string) (string, *models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	phone = strings.TrimSpace(phone)
	if name == "" {
		return "", nil, apperr.Validationf("name is required")
	}
	if email == "" && phone == "" {
		return "", nil, apperr.Validationf("email or phone is required")
	}
	if len(password) < 6 {
		return "", nil, apperr.Validationf("password must be at least 6 characters")
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return "", nil, err
	}
	u := &models.User{
		ID:        uuid.NewString(),
		Role:      models.RoleCitizen,
		Name:      name,
		Phone:     phone,
		Email:     email,
		CreatedAt: a.now(),
	}
	if err := a.users.Create(ctx, u, hash); err != nil {
		return "", nil, err
	}
	tok, err := utils.SignJWT(a.sessionSecret, u.ID, string(u.Role), sessionTTL)
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}

// Login accepts either credential; non-nil user implies a valid token.
func (a *AuthService) Login(ctx context.Context, email, phone, password string) (string, *models.User, error) {
	var (
		u    *models.User
		hash string
		err  error
	)
	switch {
	case strings.TrimSpace(email) != "":
		u, hash, err = a.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	case strings.TrimSpace(phone) != "":
		u, hash, err = a.users.GetByPhone(ctx, strings.TrimSpace(phone))
	default:
		return "", nil, apperr.Validationf("email or phone is required")
	}
	if err != nil {
		return "", nil, err
	}
	if u == nil || !utils.CheckPassword(hash, password) {
		return "", nil, ErrInvalidCredentials
	}
	tok, err := utils.SignJWT(a.sessionSecret, u.ID, string(u.Role), sessionTTL)
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}

// Provision lets an admin change a user's role and attach a staff
// profile. reports_to, when set, must reference a supervisor or admin.
func (a *AuthService) Provision(ctx context.Context, actor models.Actor, userID string, role models.Role, profile *models.StaffProfile) (*models.User, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperr.Forbiddenf("only admins may change roles")
	}
	if !role.Valid() {
		return nil, apperr.Validationf("unknown role %q", role)
	}
	u, err := a.users.UpdateRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		if profile.ReportsTo != "" {
			sup, err := a.users.GetByID(ctx, profile.ReportsTo)
			if err != nil {
				return nil, err
			}
			if sup == nil || (sup.Role != models.RoleSupervisor && sup.Role != models.RoleAdmin) {
				return nil, apperr.Validationf("reports_to must reference a supervisor")
			}
		}
		profile.UserID = userID
		if err := a.users.UpsertStaffProfile(ctx, profile); err != nil {
			return nil, err
		}
	}
	return u, nil
}
