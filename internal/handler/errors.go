package handler

import (
	"errors"
	"net/http"

	"backend/internal/model"
)

// statusForError maps domain error kinds onto HTTP statuses. This is the
// only translation point; services never see transport concepts.
func statusForError(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrInvalidBillingInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrInvalidStateForEdit),
		errors.Is(err, model.ErrBillingReconciliation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrAlreadyApproved),
		errors.Is(err, model.ErrConcurrentModification):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
