package handler

import (
	"errors"
	"net/http"

	"github.com/threatforge/gateway/internal/api/response"
	"github.com/threatforge/gateway/internal/threatmodel"
	"github.com/threatforge/gateway/pkg/models"
)

// writeServiceError maps threatmodel service errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var invalid *threatmodel.InvalidInputError
	var content *threatmodel.ContentRejectedError
	var file *threatmodel.FileRejectedError

	switch {
	case errors.As(err, &invalid):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", invalid.Message, nil)
	case errors.As(err, &content):
		response.Error(w, http.StatusUnprocessableEntity, "CONTENT_REJECTED",
			"Input failed content validation", map[string]string{"category": content.Category})
	case errors.As(err, &file):
		response.Error(w, http.StatusUnprocessableEntity, "FILE_REJECTED",
			"A file failed validation", map[string]string{
				"filename": file.Filename,
				"category": file.Category,
			})
	case errors.Is(err, models.ErrBackendTimeout):
		response.Error(w, http.StatusGatewayTimeout, "BACKEND_TIMEOUT",
			"Generation took too long and was cancelled", nil)
	case errors.Is(err, models.ErrBackendUnavailable), errors.Is(err, models.ErrInvalidResponse):
		response.Error(w, http.StatusBadGateway, "BACKEND_UNAVAILABLE",
			"The generation backend is not available", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
