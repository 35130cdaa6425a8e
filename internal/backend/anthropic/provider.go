// Package anthropic implements models.Generator against the Anthropic
// messages API.
package anthropic

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

const (
	apiVersion = "2023-06-01"
	maxTokens  = 4096
)

// Provider implements models.Generator using Anthropic.
type Provider struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

func NewProvider(cfg config.AnthropicConfig, timeout time.Duration) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) DefaultModel() string { return p.cfg.Model }

func (p *Provider) Generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body := messagesRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    prompt.System(req.Framework),
		Messages: []message{
			{Role: "user", Content: contentBlocks(req)},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	u := p.cfg.BaseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: anthropic status %d", models.ErrBackendUnavailable, resp.StatusCode)
	}

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}

	for _, block := range out.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("%w: no text content", models.ErrInvalidResponse)
}

// contentBlocks builds the user message content: an optional image block per
// attachment followed by the text block.
func contentBlocks(req models.GenerationRequest) []contentBlock {
	var blocks []contentBlock
	for _, img := range req.Images {
		blocks = append(blocks, contentBlock{
			Type: "image",
			Source: &imageSource{
				Type:      "base64",
				MediaType: img.MediaType,
				Data:      img.Data,
			},
		})
	}
	return append(blocks, contentBlock{Type: "text", Text: prompt.User(req)})
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

// --- Anthropic wire types ---

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

// Compile-time check that Provider implements Generator.
var _ models.Generator = (*Provider)(nil)
