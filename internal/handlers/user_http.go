package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/repository"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/service"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/utils"
)

type UserHTTP struct {
	svc   *service.AuthService
	users repository.UserRepository
}

func NewUserHTTP(svc *service.AuthService, users repository.UserRepository) *UserHTTP {
	return &UserHTTP{svc: svc, users: users}
}

// PUT /api/users/{id}/provision
//
// Admin-only. Promotes a registered user into a staff role and
// records their department, ward, and reporting line.
func (h *UserHTTP) Provision() http.HandlerFunc {
	type inDTO struct {
		Role       models.Role `json:"role"`
		Department string      `json:"department"`
		Ward       string      `json:"ward"`
		ReportsTo  string      `json:"reportsTo"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r)
		var in inDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		var profile *models.StaffProfile
		if in.Department != "" || in.Ward != "" || in.ReportsTo != "" {
			profile = &models.StaffProfile{
				Department: in.Department,
				Ward:       in.Ward,
				ReportsTo:  in.ReportsTo,
			}
		}
		u, err := h.svc.Provision(r.Context(), actor, chi.URLParam(r, "id"), in.Role, profile)
		if err != nil {
			respondErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, u)
	}
}

// GET /api/users/{id}/profile
func (h *UserHTTP) StaffProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := h.users.GetStaffProfile(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondErr(w, err)
			return
		}
		if p == nil {
			utils.Error(w, http.StatusNotFound, "no staff profile")
			return
		}
		utils.JSON(w, http.StatusOK, p)
	}
}
