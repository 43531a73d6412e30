package httpadapter

import (
	"errors"
	"net/http"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

var errUnknownFormType = errors.New("form_type must be one of form_1040, schedule_b, schedule_c")

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound),
		domain.IsKind(err, domain.ErrFormNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrAlreadyProcessing):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
