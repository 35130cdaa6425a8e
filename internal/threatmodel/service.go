// Package threatmodel orchestrates threat model generation: input screening,
// sanitization, file handling, and the backend call.
package threatmodel

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/threatforge/gateway/internal/audit"
	"github.com/threatforge/gateway/internal/auth"
	"github.com/threatforge/gateway/internal/inspect"
	"github.com/threatforge/gateway/pkg/models"
)

// GenerateInput holds parameters for a single generation request.
type GenerateInput struct {
	Description string
	Framework   string
	Model       string
}

// CompareInput adds the secondary model for side-by-side comparison.
type CompareInput struct {
	GenerateInput
	CompareModel string
}

// UploadInput carries uploaded files alongside the usual parameters.
type UploadInput struct {
	GenerateInput
	Files []inspect.FileArtifact
}

// Result is the output of a generation operation.
type Result struct {
	ThreatModel    string
	Framework      string
	ModelUsed      string
	Timestamp      time.Time
	InputLength    int
	OutputLength   int
	FilesProcessed int
}

// CompareResult holds the outputs of both models.
type CompareResult struct {
	PrimaryModel         string
	SecondaryModel       string
	PrimaryThreatModel   string
	SecondaryThreatModel string
	Framework            string
	Timestamp            time.Time
}

// Service orchestrates screening and generation.
type Service struct {
	generator models.Generator
	recorder  audit.Recorder
	timeout   time.Duration
	screening bool
}

// NewService creates a new Service. When screening is false, injection
// detection and file validation are bypassed; sanitization still applies.
func NewService(g models.Generator, rec audit.Recorder, timeout time.Duration, screening bool) *Service {
	return &Service{
		generator: g,
		recorder:  rec,
		timeout:   timeout,
		screening: screening,
	}
}

// Generate produces a threat model for the given architecture description.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (Result, error) {
	clean, err := s.screenInput(ctx, in, "/api/v1/threat-model")
	if err != nil {
		return Result{}, err
	}

	model := s.resolveModel(in.Model)
	output, err := s.generate(ctx, models.GenerationRequest{
		Description: clean,
		Framework:   in.Framework,
		Model:       model,
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		ThreatModel:  output,
		Framework:    in.Framework,
		ModelUsed:    model,
		Timestamp:    time.Now().UTC(),
		InputLength:  len(clean),
		OutputLength: len(output),
	}, nil
}

// Compare generates threat models from two different models for the same
// input. Both calls use the already-screened description; a failure of either
// call fails the comparison.
func (s *Service) Compare(ctx context.Context, in CompareInput) (CompareResult, error) {
	if in.CompareModel == "" {
		return CompareResult{}, invalidInput("compare_model is required for comparison")
	}
	primary := s.resolveModel(in.Model)
	if primary == in.CompareModel {
		return CompareResult{}, invalidInput("primary and comparison models must be different")
	}

	clean, err := s.screenInput(ctx, in.GenerateInput, "/api/v1/threat-model/compare")
	if err != nil {
		return CompareResult{}, err
	}

	req := models.GenerationRequest{
		Description: clean,
		Framework:   in.Framework,
		Model:       primary,
	}
	primaryOut, err := s.generate(ctx, req)
	if err != nil {
		return CompareResult{}, fmt.Errorf("primary model: %w", err)
	}

	req.Model = in.CompareModel
	secondaryOut, err := s.generate(ctx, req)
	if err != nil {
		return CompareResult{}, fmt.Errorf("comparison model: %w", err)
	}

	return CompareResult{
		PrimaryModel:         primary,
		SecondaryModel:       in.CompareModel,
		PrimaryThreatModel:   primaryOut,
		SecondaryThreatModel: secondaryOut,
		Framework:            in.Framework,
		Timestamp:            time.Now().UTC(),
	}, nil
}

// Upload validates every file before anything is forwarded, then generates a
// threat model from the description, extracted text, and image attachments.
// A single invalid file rejects the whole request.
func (s *Service) Upload(ctx context.Context, in UploadInput) (Result, error) {
	if len(in.Files) == 0 && strings.TrimSpace(in.Description) == "" {
		return Result{}, invalidInput("either files or architecture_description is required")
	}
	if !models.ValidFramework(in.Framework) {
		return Result{}, invalidInput("invalid framework %q: use STRIDE, PASTA, LINDDUN, or VAST", in.Framework)
	}

	if s.screening {
		for _, f := range in.Files {
			if v := inspect.InspectFile(f); !v.OK {
				s.recordRejection(ctx, "/api/v1/threat-model/upload", "FILE_REJECTED", v.Category+": "+f.Name)
				return Result{}, &FileRejectedError{Filename: f.Name, Category: v.Category, Reason: v.Reason}
			}
			info := inspect.Describe(f)
			slog.Info("upload accepted",
				"filename", info.Name,
				"size", info.Size,
				"type", info.MediaType,
				"sha256", info.SHA256,
			)
		}
	}

	var images []models.ImageAttachment
	var textParts []string
	for _, f := range in.Files {
		if isImage(f) {
			images = append(images, models.ImageAttachment{
				Name:      f.Name,
				MediaType: f.ContentType,
				Data:      base64.StdEncoding.EncodeToString(f.Data),
			})
			continue
		}
		text := strings.ToValidUTF8(string(f.Data), "")
		textParts = append(textParts, fmt.Sprintf("=== %s ===\n%s", f.Name, text))
	}
	extracted := strings.Join(textParts, "\n\n")

	clean := in.Description
	if clean != "" {
		var err error
		if clean, err = s.screenText(ctx, in.Description, "/api/v1/threat-model/upload"); err != nil {
			return Result{}, err
		}
	}

	model := s.resolveModel(in.Model)
	output, err := s.generate(ctx, models.GenerationRequest{
		Description: clean,
		Framework:   in.Framework,
		Model:       model,
		Context:     extracted,
		Images:      images,
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		ThreatModel:    output,
		Framework:      in.Framework,
		ModelUsed:      model,
		Timestamp:      time.Now().UTC(),
		InputLength:    len(clean) + len(extracted),
		OutputLength:   len(output),
		FilesProcessed: len(in.Files),
	}, nil
}

// resolveModel substitutes the backend's configured default when the request
// does not name a model, so responses always report the model actually used.
func (s *Service) resolveModel(requested string) string {
	if requested != "" {
		return requested
	}
	return s.generator.DefaultModel()
}

// screenInput validates the common request fields, screens the description,
// and returns the sanitized text.
func (s *Service) screenInput(ctx context.Context, in GenerateInput, endpoint string) (string, error) {
	if strings.TrimSpace(in.Description) == "" {
		return "", invalidInput("architecture_description is required")
	}
	if !models.ValidFramework(in.Framework) {
		return "", invalidInput("invalid framework %q: use STRIDE, PASTA, LINDDUN, or VAST", in.Framework)
	}
	return s.screenText(ctx, in.Description, endpoint)
}

func (s *Service) screenText(ctx context.Context, text, endpoint string) (string, error) {
	if s.screening {
		if v := inspect.InspectText(text); !v.OK {
			s.recordRejection(ctx, endpoint, "CONTENT_REJECTED", v.Category)
			return "", &ContentRejectedError{Category: v.Category, Reason: v.Reason}
		}
	}
	return inspect.Sanitize(text), nil
}

// generate calls the backend with a bounded timeout. The deadline here is
// the only suspension point in the request path.
func (s *Service) generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	output, err := s.generator.Generate(genCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", models.ErrBackendTimeout, err)
		}
		return "", err
	}
	if output == "" {
		return "", fmt.Errorf("%w: empty threat model", models.ErrInvalidResponse)
	}
	return output, nil
}

// recordRejection writes a security audit event without blocking the request.
func (s *Service) recordRejection(ctx context.Context, endpoint, code, reason string) {
	e := audit.NewEvent(auth.IdentityFromContext(ctx), endpoint, audit.ClassSecurity, code, reason)
	go func() {
		recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.recorder.Record(recordCtx, e); err != nil {
			slog.Error("recording audit event", "error", err, "code", code)
		}
	}()
	slog.Warn("request rejected", "audit_class", audit.ClassSecurity, "code", code, "reason", reason, "endpoint", endpoint)
}

func isImage(f inspect.FileArtifact) bool {
	if strings.HasPrefix(f.ContentType, "image/") {
		return true
	}
	ext := strings.ToLower(f.Name)
	return strings.HasSuffix(ext, ".png") || strings.HasSuffix(ext, ".jpg") || strings.HasSuffix(ext, ".jpeg")
}
