package web

import (
	"net/http"

	"ops-backend/internal/core"
)

func (h *Handler) postManualEntry(w http.ResponseWriter, r *http.Request) {
	var input core.ManualEntryInput
	if !decodeJSON(w, r, &input) {
		return
	}
	entry, err := h.svc.PostManualEntry(r.Context(), input, userFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entry, err := h.svc.GetEntry(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) reverseEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	reversal, err := h.svc.ReverseEntry(r.Context(), id, userFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reversal)
}

func (h *Handler) balances(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.GetBalances(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	type response struct {
		Accounts []core.Account `json:"accounts"`
	}
	writeJSON(w, http.StatusOK, response{Accounts: accounts})
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	tb, err := h.svc.GetTrialBalance(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tb)
}

func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GetProfitAndLoss(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
