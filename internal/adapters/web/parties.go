package web

import (
	"net/http"

	"ops-backend/internal/app"
	"ops-backend/internal/core"
)

func (h *Handler) createParty(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePartyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	party, err := h.svc.CreateParty(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, party)
}

func (h *Handler) getParty(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	party, err := h.svc.GetParty(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, party)
}

func (h *Handler) listParties(w http.ResponseWriter, r *http.Request) {
	parties, err := h.svc.ListParties(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	type response struct {
		Parties []core.Party `json:"parties"`
		Count   int          `json:"count"`
	}
	writeJSON(w, http.StatusOK, response{Parties: parties, Count: len(parties)})
}
