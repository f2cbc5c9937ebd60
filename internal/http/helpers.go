package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"moneytracker/internal/core"
	"moneytracker/internal/entry"
	"moneytracker/internal/ledger"
	"moneytracker/internal/rates"
)

// sanitizeInput removes control characters other than tab and newlines
// and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// pathID parses the {id} path segment as a transaction ID.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid transaction id %q", raw)
	}
	return id, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// userErrors are failures caused by the request content.
var userErrors = []error{
	entry.ErrMissingSourceAccount,
	entry.ErrMissingDestinationAccount,
	entry.ErrSameAccountTransfer,
	entry.ErrMissingAccount,
	entry.ErrMissingCategory,
	entry.ErrZeroOrInvalidAmount,
	entry.ErrAmountTooLarge,
	entry.ErrMaxDigitsExceeded,
	entry.ErrFractionDigitsExceeded,
	entry.ErrDivisionByZero,
	entry.ErrInvalidAmount,
	entry.ErrInvalidKey,
	entry.ErrInvalidEditRecord,
	entry.ErrUnknownPaymentApp,
	entry.ErrUnknownPaymentMethod,
	entry.ErrPaymentRequired,
	core.ErrInvalidType,
	core.ErrInvalidAmount,
	core.ErrAmountTooLarge,
	core.ErrEmptyAccount,
	core.ErrEmptyCategory,
	core.ErrEmptyToAccount,
	core.ErrSameAccount,
	core.ErrUnexpectedTransfer,
	core.ErrZeroDate,
	core.ErrMissingCurrency,
}

// errorResponse maps err to a response. Request content problems are 422,
// unknown IDs 404, unavailable dependencies 503 and everything else 500.
func errorResponse(err error) *JSONResponseBuilder {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return UnprocessableEntityError(err.Error())
		}
	}
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, entry.ErrInputBusy):
		return ErrorResponse(http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrNotInitialized), errors.Is(err, rates.ErrUnavailable):
		return ServiceUnavailableError(err.Error())
	case errors.Is(err, ledger.ErrPersistence):
		return InternalServerError("storage write failed")
	default:
		return InternalServerError("internal error")
	}
}
