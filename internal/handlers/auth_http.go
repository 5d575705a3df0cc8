package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/middleware"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/repository"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/service"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/utils"
)

type AuthHTTP struct {
	svc   *service.AuthService
	users repository.UserRepository
}

func NewAuthHTTP(s *service.AuthService, users repository.UserRepository) *AuthHTTP {
	return &AuthHTTP{svc: s, users: users}
}

// POST /api/auth/register: citizens self-register; staff roles are
// provisioned by an admin afterwards.
func (h *AuthHTTP) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Phone    string `json:"phone"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		token, u, err := h.svc.Register(r.Context(), in.Name, in.Email, in.Phone, in.Password)
		if err != nil {
			respondErr(w, err)
			return
		}
		utils.JSON(w, http.StatusCreated, map[string]any{"token": token, "user": u})
	}
}

// POST /api/auth/login: accepts either email or phone as the identifier.
func (h *AuthHTTP) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email    string `json:"email"`
			Phone    string `json:"phone"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		token, u, err := h.svc.Login(r.Context(), in.Email, in.Phone, in.Password)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				utils.Error(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			respondErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"token": token, "user": u})
	}
}

// GET /api/auth/me
func (h *AuthHTTP) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := utils.GetString(r.Context(), middleware.CtxUserID)
		if !ok || uid == "" {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		u, err := h.users.GetByID(r.Context(), uid)
		if err != nil || u == nil {
			utils.Error(w, http.StatusNotFound, "user not found")
			return
		}
		utils.JSON(w, http.StatusOK, u)
	}
}
