package handler

import (
	"errors"
	"net/http"

	"taskspace/internal/repository"
	"taskspace/internal/service"
	"taskspace/pkg/response"
)

// writeError maps core and store errors onto HTTP statuses. The body carries
// the error message unchanged.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, service.ErrAccessDenied):
		response.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrNoWorkspace):
		response.Conflict(w, err.Error())
	case errors.Is(err, repository.ErrWorkspaceNotFound), errors.Is(err, repository.ErrTodoNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, repository.ErrWorkspaceExists):
		response.Conflict(w, err.Error())
	default:
		var opErr *service.OpError
		if errors.As(err, &opErr) {
			response.BadGateway(w, err.Error())
			return
		}
		response.Error(w, http.StatusInternalServerError, err.Error())
	}
}
