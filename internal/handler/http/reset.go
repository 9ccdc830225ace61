package http

import (
	"net/http"

	"github.com/lawallet/card-server/internal/utils"
)

// resetRequest handles POST /card/reset/request: an admin-signed event
// naming both the admin's tap pair and the target holder's, initiating
// an admin reset.
func (h *Handler) resetRequest(w http.ResponseWriter, r *http.Request) {
	event, err := decodeEvent(r)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	resp, err := h.orchestrator.AdminResetRequest(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJSON(w, resp, http.StatusOK)
}

// resetClaim handles POST /card/reset/claim: the new holder's claim of a
// pending reset, carrying its own delegation enrollment.
func (h *Handler) resetClaim(w http.ResponseWriter, r *http.Request) {
	event, err := decodeEvent(r)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	resp, err := h.orchestrator.AdminResetClaim(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJSON(w, resp, http.StatusOK)
}
