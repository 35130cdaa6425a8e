package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/threatforge/gateway/internal/api/response"
	"github.com/threatforge/gateway/internal/inspect"
	"github.com/threatforge/gateway/internal/threatmodel"
)

// maxUploadBytes bounds the whole multipart body. Per-file ceilings are
// enforced by file validation.
const maxUploadBytes = 64 << 20

// NewUploadHandler returns an http.HandlerFunc for POST /api/v1/threat-model/upload.
// Accepts a multipart form with one or more "files" parts plus optional text
// fields. Every file is read fully before any validation verdict is acted on,
// and a single invalid file rejects the whole request.
func NewUploadHandler(svc Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid multipart form", nil)
			return
		}
		defer r.MultipartForm.RemoveAll()

		framework := r.FormValue("framework")
		if framework == "" {
			framework = defaultFramework
		}

		var files []inspect.FileArtifact
		for _, fh := range r.MultipartForm.File["files"] {
			f, err := fh.Open()
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"Could not read uploaded file "+fh.Filename, nil)
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"Could not read uploaded file "+fh.Filename, nil)
				return
			}
			files = append(files, inspect.FileArtifact{
				Name:        fh.Filename,
				Size:        int64(len(data)),
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}

		result, err := svc.Upload(r.Context(), threatmodel.UploadInput{
			GenerateInput: threatmodel.GenerateInput{
				Description: r.FormValue("architecture_description"),
				Framework:   framework,
				Model:       r.FormValue("model"),
			},
			Files: files,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		response.JSON(w, uploadResponse{
			ThreatModel:    result.ThreatModel,
			Framework:      result.Framework,
			ModelUsed:      result.ModelUsed,
			Timestamp:      result.Timestamp.Format(time.RFC3339),
			FilesProcessed: result.FilesProcessed,
		})
	}
}

type uploadResponse struct {
	ThreatModel    string `json:"threat_model"`
	Framework      string `json:"framework"`
	ModelUsed      string `json:"model_used"`
	Timestamp      string `json:"timestamp"`
	FilesProcessed int    `json:"files_processed"`
}
