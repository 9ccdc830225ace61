package http

import (
	"net/http"

	"github.com/lawallet/card-server/internal/utils"
)

const (
	activationRequestTag  = "card-activation-request"
	transferAcceptanceTag = "card-transfer-acceptance"
)

// createCard handles POST /card, dispatching to Activate or Transfer by the
// request event's "t" tag (Activate, Card-Transfer).
func (h *Handler) createCard(w http.ResponseWriter, r *http.Request) {
	event, err := decodeEvent(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	tag := event.FindTag("t")
	if tag == nil || len(tag) < 2 {
		writeError(w, ErrMissingActionTag)
		return
	}

	switch tag[1] {
	case activationRequestTag:
		resp, err := h.orchestrator.Activate(r.Context(), event)
		if err != nil {
			writeError(w, err)
			return
		}
		utils.WriteJSON(w, resp, http.StatusOK)
	case transferAcceptanceTag:
		resp, err := h.orchestrator.Transfer(r.Context(), event)
		if err != nil {
			writeError(w, err)
			return
		}
		utils.WriteJSON(w, resp, http.StatusOK)
	default:
		writeError(w, ErrUnknownActionTag)
	}
}
