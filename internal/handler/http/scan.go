package http

import (
	"net/http"

	"github.com/lawallet/card-server/internal/utils"
	"github.com/lawallet/card-server/internal/withdraw"
)

// scanCard handles GET /card/scan?p&c, dispatching by the X-LaWallet-Action
// header and its accompanying X-LaWallet-Param.
func (h *Handler) scanCard(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("p")
	c := r.URL.Query().Get("c")

	action, params := "", map[string]string{}
	if raw := r.Header.Get("X-LaWallet-Param"); raw != "" {
		params = withdraw.ParseActionParam(raw)
	}
	if a := r.Header.Get("X-LaWallet-Action"); a != "" {
		action = a
	}

	resp, err := h.withdraw.Scan(r.Context(), p, c, action, params)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJSON(w, resp, http.StatusOK)
}
