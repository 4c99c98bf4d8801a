package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ops-backend/internal/app"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	jwtSecret string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string) http.Handler {
	h := &Handler{svc: svc, jwtSecret: jwtSecret}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(h.Attribution)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// ── Invoices ──────────────────────────────────────────────────────────
		r.Post("/api/invoices", h.createInvoice)
		r.Get("/api/invoices", h.listInvoices)
		r.Get("/api/invoices/{id}", h.getInvoice)
		r.Put("/api/invoices/{id}", h.updateInvoice)
		r.Post("/api/invoices/{id}/confirm", h.confirmInvoice)
		r.Post("/api/invoices/{id}/cancel", h.cancelInvoice)

		// ── Payments ──────────────────────────────────────────────────────────
		r.Post("/api/payments", h.createPayment)
		r.Get("/api/payments", h.listPayments)
		r.Get("/api/payments/{id}", h.getPayment)
		r.Post("/api/payments/{id}/cancel", h.cancelPayment)

		// ── Reconciliation ────────────────────────────────────────────────────
		r.Get("/api/recon/suggestions", h.suggestions)
		r.Post("/api/recon/match", h.match)
		r.Post("/api/recon/unmatch", h.unmatch)
		r.Post("/api/recon/apply", h.applyMatches)

		// ── Ledger ────────────────────────────────────────────────────────────
		r.Post("/api/ledger/entries", h.postManualEntry)
		r.Get("/api/ledger/entries/{id}", h.getEntry)
		r.Post("/api/ledger/entries/{id}/reverse", h.reverseEntry)
		r.Get("/api/ledger/balances", h.balances)

		// ── Reports ───────────────────────────────────────────────────────────
		r.Get("/api/reports/trial-balance", h.trialBalance)
		r.Get("/api/reports/pl", h.profitAndLoss)

		// ── Parties ───────────────────────────────────────────────────────────
		r.Post("/api/parties", h.createParty)
		r.Get("/api/parties", h.listParties)
		r.Get("/api/parties/{id}", h.getParty)
	})

	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// pathID extracts the {id} URL parameter as a positive int. Writes a 400
// response and returns false when the parameter is not usable.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		writeError(w, r, "invalid id "+strconv.Quote(raw), "VALIDATION_FAILED", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v. Returns HTTP 413 when the
// body exceeds the limit set by RequestBodyLimit; HTTP 400 for all other
// decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
