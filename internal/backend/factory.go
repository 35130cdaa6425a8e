// Package backend constructs the generation provider the gateway forwards
// accepted requests to.
package backend

import (
	"fmt"

	"github.com/threatforge/gateway/internal/backend/anthropic"
	"github.com/threatforge/gateway/internal/backend/mock"
	"github.com/threatforge/gateway/internal/backend/ollama"
	"github.com/threatforge/gateway/internal/backend/openai"
	"github.com/threatforge/gateway/internal/config"
	"github.com/threatforge/gateway/pkg/models"
)

// NewGenerator constructs the appropriate generation backend based on config.
// Called once at server startup.
func NewGenerator(cfg config.BackendConfig) (models.Generator, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.Timeout), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic, cfg.Timeout), nil
	case "ollama":
		return ollama.NewProvider(cfg.Ollama, cfg.Timeout), nil
	case "mock":
		return mock.NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown backend provider %q: must be one of openai, anthropic, ollama, mock", cfg.Provider)
	}
}
