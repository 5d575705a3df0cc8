package handlers

import (
	"net/http"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/utils"
)

func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
