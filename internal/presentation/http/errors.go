package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"

	appcart "github.com/somba-market/commerce/internal/application/cart"
	appcheckout "github.com/somba-market/commerce/internal/application/checkout"
	domcart "github.com/somba-market/commerce/internal/domain/cart"
	domorder "github.com/somba-market/commerce/internal/domain/order"
	dompayment "github.com/somba-market/commerce/internal/domain/payment"
	domproduct "github.com/somba-market/commerce/internal/domain/product"
)

// Error kinds are a stable machine-readable classification; the error
// message is free text and may change.
const (
	kindValidation         = "validation"
	kindNotFound           = "not_found"
	kindInsufficientStock  = "insufficient_stock"
	kindConflict           = "conflict"
	kindInvalidState       = "invalid_state"
	kindDuplicateReference = "duplicate_reference"
	kindInternal           = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

// writeDomainError maps domain sentinels to HTTP statuses and kinds. Raw
// store errors fall through to a generic 500; the access log carries the
// detail.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domproduct.ErrNotFound),
		errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, dompayment.ErrNotFound),
		errors.Is(err, domcart.ErrNotFound),
		errors.Is(err, domcart.ErrLineNotFound),
		errors.Is(err, domorder.ErrItemNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, err)

	case errors.Is(err, domproduct.ErrInsufficientStock):
		writeError(w, http.StatusConflict, kindInsufficientStock, err)

	case errors.Is(err, domproduct.ErrVersionConflict),
		errors.Is(err, domcart.ErrConflict),
		errors.Is(err, domorder.ErrConflict):
		writeError(w, http.StatusConflict, kindConflict, err)

	case errors.Is(err, dompayment.ErrDuplicateReference):
		writeError(w, http.StatusConflict, kindDuplicateReference, err)

	case errors.Is(err, domorder.ErrInvalidStateTransition),
		errors.Is(err, domorder.ErrItemsFrozen),
		errors.Is(err, dompayment.ErrInvalidStateTransition),
		errors.Is(err, appcheckout.ErrOrderAlreadyPaid),
		errors.Is(err, appcheckout.ErrOrderClosed),
		errors.Is(err, appcheckout.ErrPaymentAttemptPending):
		writeError(w, http.StatusConflict, kindInvalidState, err)

	case errors.Is(err, domproduct.ErrValidation),
		errors.Is(err, domproduct.ErrInvalidQuantity),
		errors.Is(err, domproduct.ErrInvalidPrice),
		errors.Is(err, domorder.ErrValidation),
		errors.Is(err, dompayment.ErrValidation),
		errors.Is(err, domcart.ErrInvalidQuantity),
		errors.Is(err, appcart.ErrUserRequired):
		writeError(w, http.StatusBadRequest, kindValidation, err)

	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Kind: kindInternal})
	}
}
