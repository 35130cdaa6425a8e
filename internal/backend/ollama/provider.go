// Package ollama implements models.Generator against a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/threatforge/gateway/internal/backend/prompt"
	"github.com/threatforge/gateway/internal/config"
	"github.com/threatforge/gateway/pkg/models"
)

// Provider implements models.Generator using Ollama's chat API.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewProvider(cfg config.OllamaConfig, timeout time.Duration) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return "ollama" }

func (p *Provider) DefaultModel() string { return p.cfg.Model }

func (p *Provider) Generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	user := chatMessage{Role: "user", Content: prompt.User(req)}
	for _, img := range req.Images {
		user.Images = append(user.Images, img.Data)
	}

	body := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.System(req.Framework)},
			user,
		},
		Stream: false,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	u := p.cfg.BaseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: ollama status %d", models.ErrBackendUnavailable, resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	if out.Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", models.ErrInvalidResponse)
	}

	return out.Message.Content, nil
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", models.ErrBackendTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", models.ErrBackendTimeout, err)
	}

	return fmt.Errorf("%w: %v", models.ErrBackendUnavailable, err)
}

// --- Ollama wire types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Compile-time check that Provider implements Generator.
var _ models.Generator = (*Provider)(nil)
