package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/apperr"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/middleware"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/repository"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/service"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/utils"
)

// TicketHTTP wires the mutation and query layers to HTTP.
type TicketHTTP struct {
	svc *service.TicketService
}

func NewTicketHTTP(svc *service.TicketService) *TicketHTTP {
	return &TicketHTTP{svc: svc}
}

func respondErr(w http.ResponseWriter, err error) {
	utils.Error(w, apperr.HTTPStatus(err), err.Error())
}

func actorFrom(r *http.Request) (models.Actor, bool) {
	uid, _ := utils.GetString(r.Context(), middleware.CtxUserID)
	role, _ := utils.GetString(r.Context(), middleware.CtxRole)
	if uid == "" {
		return models.Actor{}, false
	}
	return models.Actor{ID: uid, Role: models.Role(role)}, true
}

// POST /api/tickets
func (h *TicketHTTP) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		var in service.CreateTicketInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		// the REST surface never accepts client-chosen IDs; that is a
		// sync-protocol affordance only
		in.ID = ""
		t, err := h.svc.Create(r.Context(), actor, in)
		if err != nil {
			respondErr(w, err)
			return
		}
		utils.JSON(w, http.StatusCreated, t)
	}
}

// POST /api/tickets/{id}/assign
func (h *TicketHTTP) Assign() http.HandlerFunc {
	type inDTO struct {
		AssigneeID string `json:"assigneeId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r)
		var in inDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		t, err := h.svc.Assign(r.Context(), actor, chi.URLParam(r, "id"), in.AssigneeID)
		if err != nil {
			respondErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, t)
	}
}

// POST /api/tickets/{id}/transition
func (h *TicketHTTP) Transition() http.HandlerFunc {
	type inDTO struct {
		To           models.TicketStatus `json:"to"`
		SupervisorID string              `json:"supervisorId"`
		Message      string              `json:"message"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r)
		var in inDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		t, err := h.svc.Transition(r.Context(), actor, chi.URLParam(r, "id"), in.To, in.SupervisorID, in.Message)
		if err != nil {
			respondErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, t)
	}
}

// POST /api/tickets/{id}/comments
func (h *TicketHTTP) AddComment() http.HandlerFunc {
	type inDTO struct {
		Message string `json:"message"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r)
		var in inDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		ev, err := h.svc.Comment(r.Context(), actor, chi.URLParam(r, "id"), in.Message)
		if err != nil {
			respondErr(w, err)
			return
		}
		utils.JSON(w, http.StatusCreated, ev)
	}
}

// POST /api/tickets/{id}/attachments
func (h *TicketHTTP) AddAttachment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r)
		var in service.AttachmentInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		at, err := h.svc.Attach(r.Context(), actor, chi.URLParam(r, "id"), in)
		if err != nil {
			respondErr(w, err)
			return
		}
		utils.JSON(w, http.StatusCreated, at)
	}
}

// POST /api/tickets/{id}/rating
func (h *TicketHTTP) Rate() http.HandlerFunc {
	type inDTO struct {
		Rating   int    `json:"rating"`
		Feedback string `json:"feedback"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r)
		var in inDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		t, err := h.svc.Rate(r.Context(), actor, chi.URLParam(r, "id"), in.Rating, in.Feedback)
		if err != nil {
			respondErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, t)
	}
}

// GET /api/tickets/mine
func (h *TicketHTTP) Mine() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r)
		items, err := h.svc.MyTickets(r.Context(), actor.ID)
		if err != nil {
			respondErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

// GET /api/tickets/assigned
func (h *TicketHTTP) Assigned() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r)
		items, err := h.svc.AssignedTickets(r.Context(), actor.ID)
		if err != nil {
			respondErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

// GET /api/tickets/queue: the supervisor's oldest-waiting-first queue.
func (h *TicketHTTP) Queue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r)
		items, err := h.svc.SupervisorQueue(r.Context(), actor.ID)
		if err != nil {
			respondErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

// GET /api/tickets/{id}: ticket plus full audit trail.
func (h *TicketHTTP) Detail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := h.svc.Detail(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, d)
	}
}

// GET /api/tickets: back-office filtered list, staff-level roles only.
func (h *TicketHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := actorFrom(r)
		qv := r.URL.Query()
		f := repository.TicketFilter{
			Q:          qv.Get("q"),
			Status:     qv.Get("status"),
			Category:   qv.Get("category"),
			AssignedTo: qv.Get("assignee"),
			Limit:      utils.QueryInt(qv, "limit", 50),
			Offset:     utils.QueryInt(qv, "offset", 0),
			Sort:       qv.Get("sort"),
			Order:      qv.Get("order"),
		}
		items, total, err := h.svc.List(r.Context(), actor, f)
		if err != nil {
			respondErr(w, err)
			return
		}
		w.Header().Set("X-Total-Count", strconv.Itoa(total))
		utils.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
	}
}
