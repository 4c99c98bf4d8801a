package web

import (
	"net/http"

	"ops-backend/internal/app"
)

func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.SuggestMatches(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) match(w http.ResponseWriter, r *http.Request) {
	var req app.MatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.MatchPayment(r.Context(), req, userFromContext(r.Context())); err != nil {
		writeDomainError(w, r, err)
		return
	}
	type response struct {
		Matched   bool `json:"matched"`
		PaymentID int  `json:"payment_id"`
		InvoiceID int  `json:"invoice_id"`
	}
	writeJSON(w, http.StatusOK, response{Matched: true, PaymentID: req.PaymentID, InvoiceID: req.InvoiceID})
}

func (h *Handler) unmatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentID int `json:"payment_id"`
		InvoiceID int `json:"invoice_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.UnmatchPayment(r.Context(), req.PaymentID, req.InvoiceID, userFromContext(r.Context())); err != nil {
		writeDomainError(w, r, err)
		return
	}
	type response struct {
		Unmatched bool `json:"unmatched"`
		PaymentID int  `json:"payment_id"`
		InvoiceID int  `json:"invoice_id"`
	}
	writeJSON(w, http.StatusOK, response{Unmatched: true, PaymentID: req.PaymentID, InvoiceID: req.InvoiceID})
}

func (h *Handler) applyMatches(w http.ResponseWriter, r *http.Request) {
	var req app.ApplyMatchesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.ApplyMatches(r.Context(), req, userFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	// Per-item rejections ride in the body; the batch itself succeeded.
	writeJSON(w, http.StatusOK, result)
}
