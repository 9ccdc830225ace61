package http

import (
	"net/http"

	"github.com/lawallet/card-server/internal/utils"
)

// payCard handles GET /card/pay?k1&pr, the LUD-03 standard withdraw
// callback.
func (h *Handler) payCard(w http.ResponseWriter, r *http.Request) {
	k1 := r.URL.Query().Get("k1")
	pr := r.URL.Query().Get("pr")

	resp, err := h.withdraw.StandardPay(r.Context(), k1, pr)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJSON(w, resp, http.StatusOK)
}

// payCardExtended handles POST /card/pay, the multi-token withdraw
// authorized by a holder-or-delegate-signed event.
func (h *Handler) payCardExtended(w http.ResponseWriter, r *http.Request) {
	event, err := decodeEvent(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	resp, err := h.withdraw.ExtendedPay(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJSON(w, resp, http.StatusOK)
}
