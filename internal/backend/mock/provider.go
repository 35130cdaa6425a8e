// Package mock provides a models.Generator for tests and for running the
// gateway without a real backend.
package mock

import (
	"context"
	"fmt"

	"github.com/threatforge/gateway/pkg/models"
)

// MockGenerator satisfies models.Generator for testing.
type MockGenerator struct {
	Name_        string
	Model_       string
	GenerateFunc func(ctx context.Context, req models.GenerationRequest) (string, error)
}

func (m *MockGenerator) Name() string { return m.Name_ }

func (m *MockGenerator) DefaultModel() string {
	if m.Model_ == "" {
		return "mock-model"
	}
	return m.Model_
}

func (m *MockGenerator) Generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "", nil
}

// NewMockGenerator returns a MockGenerator producing a deterministic canned
// threat model that echoes the requested framework.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, req models.GenerationRequest) (string, error) {
			return fmt.Sprintf(
				"## Threat Model (%s)\n\n1. ARCHITECTURE OVERVIEW\nSimulated analysis of: %.80s\n\n2. THREAT ANALYSIS\nNo threats identified by mock backend.",
				req.Framework, req.Description), nil
		},
	}
}

// NewFailingGenerator returns a MockGenerator that always returns the given error.
func NewFailingGenerator(err error) *MockGenerator {
	return &MockGenerator{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ models.GenerationRequest) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutGenerator returns a MockGenerator that blocks until context is cancelled.
func NewTimeoutGenerator() *MockGenerator {
	return &MockGenerator{
		Name_: "mock-timeout",
		GenerateFunc: func(ctx context.Context, _ models.GenerationRequest) (string, error) {
			<-ctx.Done()
			return "", models.ErrBackendTimeout
		},
	}
}

// Compile-time check that MockGenerator implements Generator.
var _ models.Generator = (*MockGenerator)(nil)
