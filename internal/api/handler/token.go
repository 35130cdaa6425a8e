package handler

import (
	"encoding/json"
	"net/http"

	"github.com/threatforge/gateway/internal/api/response"
	"github.com/threatforge/gateway/internal/auth"
)

// TokenIssuer defines the interface the handler depends on.
type TokenIssuer interface {
	Issue(rawKey string) (auth.Token, error)
}

// NewTokenHandler returns an http.HandlerFunc for POST /api/token.
// Exchanges a raw API key for a short-lived bearer token. The response never
// distinguishes unknown keys from malformed ones.
func NewTokenHandler(issuer TokenIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			APIKey string `json:"api_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.APIKey == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "api_key is required", nil)
			return
		}

		token, err := issuer.Issue(req.APIKey)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIAL", "Invalid API key", nil)
			return
		}

		response.JSON(w, tokenResponse{
			AccessToken: token.AccessToken,
			TokenType:   "bearer",
			ExpiresIn:   token.ExpiresIn,
		})
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
