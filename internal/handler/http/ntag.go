package http

import (
	"encoding/json"
	"net/http"

	"github.com/lawallet/card-server/internal/nostr"
	"github.com/lawallet/card-server/internal/utils"
	"github.com/lawallet/card-server/models"
)

// decodeEvent reads a signed event body and returns the JSON decode error
// as is; each handler picks the status for it (400 on some routes, 422 on
// others).
func decodeEvent(r *http.Request) (*nostr.Event, error) {
	var event nostr.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		return nil, err
	}
	return &event, nil
}

// writeError maps err to its mapped HTTP status and, for the Exhausted
// category, a {status:"ERROR", reason} body; every other category gets an
// empty body at the mapped status.
func writeError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	if isExhausted(err) {
		utils.WriteJSON(w, models.StatusResponse{Status: "ERROR", Reason: err.Error()}, status)
		return
	}
	w.WriteHeader(status)
}

// createNTAG handles POST /ntag424: writer-signed NTAG initialization.
func (h *Handler) createNTAG(w http.ResponseWriter, r *http.Request) {
	event, err := decodeEvent(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ntag, err := h.orchestrator.Initialize(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJSON(w, ntag, http.StatusCreated)
}

// associateNTAG handles PATCH /ntag424?p&c: binding an OTC to a card.
func (h *Handler) associateNTAG(w http.ResponseWriter, r *http.Request) {
	event, err := decodeEvent(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	p := r.URL.Query().Get("p")
	c := r.URL.Query().Get("c")

	if err := h.orchestrator.Associate(r.Context(), event, p, c); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// deleteNTAG handles DELETE /ntag424, an admin delete no Lifecycle
// Orchestrator operation covers directly: a writer-signed event naming
// the cid to remove.
func (h *Handler) deleteNTAG(w http.ResponseWriter, r *http.Request) {
	event, err := decodeEvent(r)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	if _, err := nostr.Preflight(event, h.clock(), h.cfg.CardWriterPubkey); err != nil {
		writeError(w, err)
		return
	}

	var req models.DeleteNTAGRequest
	if err := json.Unmarshal([]byte(event.Content), &req); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	if err := h.registry.DeleteNTAG(r.Context(), req.Cid); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
