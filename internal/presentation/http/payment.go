package httppresentation

import (
	"net/http"
	"time"

	dompayment "github.com/somba-market/commerce/internal/domain/payment"
)

type paymentResponse struct {
	ID                   string    `json:"id"`
	OrderID              string    `json:"order_id"`
	UserID               string    `json:"user_id"`
	Amount               string    `json:"amount"`
	Currency             string    `json:"currency"`
	Method               string    `json:"method"`
	Status               string    `json:"status"`
	TransactionReference string    `json:"transaction_reference"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func toPaymentResponse(p *dompayment.Payment) paymentResponse {
	return paymentResponse{
		ID:                   p.ID,
		OrderID:              p.OrderID,
		UserID:               p.UserID,
		Amount:               p.Amount.String(),
		Currency:             p.Currency,
		Method:               string(p.Method),
		Status:               string(p.Status),
		TransactionReference: p.TransactionReference,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

func toPaymentResponses(payments []*dompayment.Payment) []paymentResponse {
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	return out
}

// handleListPayments lists all payments, optionally filtered by ?status=.
func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	var (
		payments []*dompayment.Payment
		err      error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := dompayment.Status(raw)
		switch status {
		case dompayment.StatusPending, dompayment.StatusSucceeded, dompayment.StatusFailed:
		default:
			writeError(w, http.StatusBadRequest, kindValidation, dompayment.ErrValidation)
			return
		}
		payments, err = h.payments.ListByStatus(r.Context(), status)
	} else {
		payments, err = h.payments.List(r.Context())
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponses(payments))
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.payments.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (h *Handler) handleListOrderPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.payments.ListByOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponses(payments))
}

func (h *Handler) handleListUserPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.payments.ListByUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponses(payments))
}

type confirmPaymentRequest struct {
	ProviderPayload string `json:"provider_payload"`
}

func (h *Handler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err)
		return
	}

	p, err := h.coordinator.ConfirmPayment(r.Context(), r.PathValue("id"), req.ProviderPayload)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

type failPaymentRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleFailPayment(w http.ResponseWriter, r *http.Request) {
	var req failPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err)
		return
	}

	p, err := h.coordinator.FailPayment(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

type paymentStatsResponse struct {
	Total     int            `json:"total"`
	Pending   int            `json:"pending"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Amount    string         `json:"amount"`
	ByMethod  map[string]int `json:"by_method"`
}

func (h *Handler) handlePaymentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.payments.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentStatsResponse{
		Total:     stats.Total,
		Pending:   stats.Pending,
		Succeeded: stats.Succeeded,
		Failed:    stats.Failed,
		Amount:    stats.Amount.String(),
		ByMethod:  stats.ByMethod,
	})
}
