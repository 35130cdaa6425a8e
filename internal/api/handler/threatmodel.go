package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/threatforge/gateway/internal/api/response"
	"github.com/threatforge/gateway/internal/threatmodel"
)

const defaultFramework = "STRIDE"

// Generator defines the service interface the handlers depend on.
type Generator interface {
	Generate(ctx context.Context, in threatmodel.GenerateInput) (threatmodel.Result, error)
	Compare(ctx context.Context, in threatmodel.CompareInput) (threatmodel.CompareResult, error)
	Upload(ctx context.Context, in threatmodel.UploadInput) (threatmodel.Result, error)
}

// NewGenerateHandler returns an http.HandlerFunc for POST /api/v1/threat-model.
func NewGenerateHandler(svc Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ArchitectureDescription string `json:"architecture_description"`
			Framework               string `json:"framework"`
			Model                   string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Framework == "" {
			req.Framework = defaultFramework
		}

		result, err := svc.Generate(r.Context(), threatmodel.GenerateInput{
			Description: req.ArchitectureDescription,
			Framework:   req.Framework,
			Model:       req.Model,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		response.JSON(w, threatModelResponse{
			ThreatModel: result.ThreatModel,
			Framework:   result.Framework,
			ModelUsed:   result.ModelUsed,
			Timestamp:   result.Timestamp.Format(time.RFC3339),
			Metadata: metadata{
				InputLength:  result.InputLength,
				OutputLength: result.OutputLength,
			},
		})
	}
}

// NewCompareHandler returns an http.HandlerFunc for POST /api/v1/threat-model/compare.
// The route consumes double rate-limit quota; the handler itself only differs
// from generate in the second model.
func NewCompareHandler(svc Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ArchitectureDescription string `json:"architecture_description"`
			Framework               string `json:"framework"`
			Model                   string `json:"model"`
			CompareModel            string `json:"compare_model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Framework == "" {
			req.Framework = defaultFramework
		}

		result, err := svc.Compare(r.Context(), threatmodel.CompareInput{
			GenerateInput: threatmodel.GenerateInput{
				Description: req.ArchitectureDescription,
				Framework:   req.Framework,
				Model:       req.Model,
			},
			CompareModel: req.CompareModel,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		response.JSON(w, compareResponse{
			PrimaryModel:         result.PrimaryModel,
			SecondaryModel:       result.SecondaryModel,
			PrimaryThreatModel:   result.PrimaryThreatModel,
			SecondaryThreatModel: result.SecondaryThreatModel,
			Framework:            result.Framework,
			Timestamp:            result.Timestamp.Format(time.RFC3339),
		})
	}
}

type threatModelResponse struct {
	ThreatModel string   `json:"threat_model"`
	Framework   string   `json:"framework"`
	ModelUsed   string   `json:"model_used"`
	Timestamp   string   `json:"timestamp"`
	Metadata    metadata `json:"metadata"`
}

type metadata struct {
	InputLength  int `json:"input_length"`
	OutputLength int `json:"output_length"`
}

type compareResponse struct {
	PrimaryModel         string `json:"primary_model"`
	SecondaryModel       string `json:"secondary_model"`
	PrimaryThreatModel   string `json:"primary_threat_model"`
	SecondaryThreatModel string `json:"secondary_threat_model"`
	Framework            string `json:"framework"`
	Timestamp            string `json:"timestamp"`
}
