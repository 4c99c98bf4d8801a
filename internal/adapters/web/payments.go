package web

import (
	"net/http"

	"ops-backend/internal/app"
	"ops-backend/internal/core"
)

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var req app.RecordPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.RecordPayment(r.Context(), req, userFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetPayment(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.svc.ListPayments(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	type response struct {
		Payments []core.Payment `json:"payments"`
		Count    int            `json:"count"`
	}
	writeJSON(w, http.StatusOK, response{Payments: payments, Count: len(payments)})
}

func (h *Handler) cancelPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.CancelPayment(r.Context(), id, userFromContext(r.Context())); err != nil {
		writeDomainError(w, r, err)
		return
	}
	type response struct {
		Cancelled bool `json:"cancelled"`
		PaymentID int  `json:"payment_id"`
	}
	writeJSON(w, http.StatusOK, response{Cancelled: true, PaymentID: id})
}
