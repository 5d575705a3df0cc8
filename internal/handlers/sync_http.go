package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/service"
	syncpkg "github.com/Abdiitb/Namma-Chennai-sub001/internal/sync"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/utils"
)

type SyncHTTP struct {
	applier *syncpkg.Applier
	svc     *service.TicketService
}

func NewSyncHTTP(applier *syncpkg.Applier, svc *service.TicketService) *SyncHTTP {
	return &SyncHTTP{applier: applier, svc: svc}
}

// POST /api/sync/mutations
//
// Accepts an ordered batch of queued mutations and applies them in
// sequence. Every mutation gets a verdict; a batch never fails
// halfway with mutations left in limbo. Replays of an already
// recorded mutation return its original verdict untouched.
func (h *SyncHTTP) ApplyMutations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		var batch []syncpkg.Mutation
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		results := make([]syncpkg.Result, 0, len(batch))
		for _, m := range batch {
			res, err := h.applier.Apply(r.Context(), actor, m)
			if err != nil {
				// infrastructure failure, nothing was recorded for
				// this mutation so the client can retry the batch
				respondErr(w, err)
				return
			}
			results = append(results, *res)
		}
		utils.JSON(w, http.StatusOK, results)
	}
}

// GET /api/sync/changes?since=<RFC3339Nano>
//
// Returns tickets touched at or after the watermark, visible to the
// caller, for the pull half of a sync round.
func (h *SyncHTTP) Changes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var since time.Time
		if raw := r.URL.Query().Get("since"); raw != "" {
			t, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				utils.Error(w, http.StatusBadRequest, "invalid since timestamp")
				return
			}
			since = t
		}
		items, err := h.svc.ChangedSince(r.Context(), since)
		if err != nil {
			respondErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"tickets": items})
	}
}
