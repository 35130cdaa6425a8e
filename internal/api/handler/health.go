package handler

import (
	"net/http"

	"github.com/threatforge/gateway/internal/api/response"
)

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
func NewHealthHandler(backendName string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, map[string]string{
			"status":  "ok",
			"backend": backendName,
		})
	}
}
