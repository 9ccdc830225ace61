package http

import (
	"net/http"

	"github.com/lawallet/card-server/internal/nostr"
	"github.com/lawallet/card-server/internal/utils"
)

// requestCardData handles POST /card/data/request: a holder-signed event
// asking the module to (re)publish its card-data document.
func (h *Handler) requestCardData(w http.ResponseWriter, r *http.Request) {
	h.publishCardData(w, r)
}

// publishCardData handles POST /card/publish-data, identical in effect to
// requestCardData; both are separate holder-triggered republish entry
// points with no observed difference in behavior.
func (h *Handler) publishCardData(w http.ResponseWriter, r *http.Request) {
	event, err := decodeEvent(r)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	holderPubKey, err := nostr.Preflight(event, h.clock(), "")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.channel.PublishCardData(r.Context(), holderPubKey); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// requestCardConfig handles POST /card/config/request, returning the
// holder's current card-config payload.
func (h *Handler) requestCardConfig(w http.ResponseWriter, r *http.Request) {
	event, err := decodeEvent(r)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	holderPubKey, err := nostr.Preflight(event, h.clock(), "")
	if err != nil {
		writeError(w, err)
		return
	}

	doc, err := h.channel.CurrentCardConfig(r.Context(), holderPubKey)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJSON(w, doc, http.StatusOK)
}
