package postgres

import (
	"context"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/apperr"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct{ db *pgxpool.Pool }

func NewUserRepo(db *pgxpool.Pool) repository.UserRepository { return &UserRepo{db: db} }

// Create stores the user together with its bcrypt hash (password_h).
func (r *UserRepo) Create(ctx context.Context, u *models.User, passwordHash string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, role, name, phone, email, password_h, created_at)
		VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),$6,$7)`,
		u.ID, u.Role, u.Name, u.Phone, u.Email, passwordHash, u.CreatedAt)
	return err
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, string, error) {
	return r.getByCredential(ctx, `email=$1`, email)
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*models.User, string, error) {
	return r.getByCredential(ctx, `phone=$1`, phone)
}

func (r *UserRepo) getByCredential(ctx context.Context, cond, val string) (*models.User, string, error) {
	var u models.User
	var ph string
	err := r.db.QueryRow(ctx, `
		SELECT id, role, name, COALESCE(phone,''), COALESCE(email,''), password_h, created_at
		FROM users WHERE `+cond, val).
		Scan(&u.ID, &u.Role, &u.Name, &u.Phone, &u.Email, &ph, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, "", nil
		}
		return nil, "", err
	}
	return &u, ph, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, `
		SELECT id, role, name, COALESCE(phone,''), COALESCE(email,''), created_at
		FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Role, &u.Name, &u.Phone, &u.Email, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, `
		UPDATE users SET role=$1 WHERE id=$2
		RETURNING id, role, name, COALESCE(phone,''), COALESCE(email,''), created_at
	`, role, id).Scan(&u.ID, &u.Role, &u.Name, &u.Phone, &u.Email, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFoundf("user %s not found", id)
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UpsertStaffProfile(ctx context.Context, p *models.StaffProfile) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO staff_profiles (user_id, department, ward, reports_to)
		VALUES ($1,NULLIF($2,''),NULLIF($3,''),NULLIF($4,''))
		ON CONFLICT (user_id) DO UPDATE SET
			department=EXCLUDED.department, ward=EXCLUDED.ward, reports_to=EXCLUDED.reports_to
	`, p.UserID, p.Department, p.Ward, p.ReportsTo)
	return err
}

func (r *UserRepo) GetStaffProfile(ctx context.Context, userID string) (*models.StaffProfile, error) {
	var p models.StaffProfile
	err := r.db.QueryRow(ctx, `
		SELECT user_id, COALESCE(department,''), COALESCE(ward,''), COALESCE(reports_to,'')
		FROM staff_profiles WHERE user_id=$1`, userID).
		Scan(&p.UserID, &p.Department, &p.Ward, &p.ReportsTo)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
