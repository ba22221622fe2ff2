package httpadapter

import (
	"errors"
	"net/http"

	"github.com/casestar/casestar-client/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	var remote *domain.RemoteError
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrBusy), domain.IsKind(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.As(err, &remote):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, mapErrorToHTTPStatus(err), domain.DisplayMessage(err))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
