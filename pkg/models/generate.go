// Package models contains shared data models used across the gateway codebase.
package models

import "context"

// Generator is the core interface every generation backend must implement.
// Never call specific backends directly — always inject this interface.
type Generator interface {
	// Generate produces a threat model for the given architecture description.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Name returns the backend identifier (e.g., "openai", "ollama").
	Name() string
	// DefaultModel returns the model used when a request does not name one.
	DefaultModel() string
}

// GenerationRequest is the input to a single backend generation call.
type GenerationRequest struct {
	// Description is the sanitized architecture description.
	Description string
	// Framework is the threat-modeling framework (STRIDE, PASTA, LINDDUN, VAST).
	Framework string
	// Model overrides the backend's configured default model when non-empty.
	Model string
	// Context is extra text extracted from accepted uploads, may be empty.
	Context string
	// Images holds accepted image uploads for multimodal backends.
	Images []ImageAttachment
}

// ImageAttachment is an uploaded diagram forwarded to a multimodal backend.
type ImageAttachment struct {
	Name string
	// MediaType is the sniffed content type (image/png or image/jpeg).
	MediaType string
	// Data is the base64-encoded image payload.
	Data string
}

// Frameworks is the allow-list of supported threat-modeling frameworks.
var Frameworks = []string{"STRIDE", "PASTA", "LINDDUN", "VAST"}

// ValidFramework reports whether f is a supported framework.
func ValidFramework(f string) bool {
	for _, v := range Frameworks {
		if v == f {
			return true
		}
	}
	return false
}
