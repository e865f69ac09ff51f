package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/uchicago-library/ldr-ingress/internal/ingest"
	"github.com/uchicago-library/ldr-ingress/internal/logger"
	"github.com/uchicago-library/ldr-ingress/internal/workflows"
	"github.com/uchicago-library/ldr-ingress/pkg/ingress"
)

// RequestIDHeader carries a caller supplied run id
const RequestIDHeader = "X-Request-ID"

// Limits bounds inbound uploads
type Limits struct {
	MaxUploadBytes  int64
	MultipartMemory int64
	RequestTimeout  time.Duration
}

// IngestHandler accepts multipart uploads and runs them through the ingest workflow
type IngestHandler struct {
	workflow workflows.Workflow
	limits   Limits
	logger   *slog.Logger
	openFile func(r *http.Request, key string) (multipart.File, *multipart.FileHeader, error)
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(workflow workflows.Workflow, limits Limits) *IngestHandler {
	return &IngestHandler{
		workflow: workflow,
		limits:   limits,
		logger:   logger.WithComponent("ingest-handler"),
		openFile: (*http.Request).FormFile,
	}
}

// Routes registers the ingest and health endpoints on mux
func (h *IngestHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /{$}", h.HandleIngest)
	mux.HandleFunc("POST /v1/ingest", h.HandleIngest)
	mux.HandleFunc("GET /health", HandleHealth)
}

// HandleIngest handles POST / - runs the whole pipeline before responding
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := r.Header.Get(RequestIDHeader)
	if runID == "" {
		runID = uuid.New().String()
	}
	w.Header().Set(RequestIDHeader, runID)

	ctx := logger.WithRunID(logger.WithLogger(r.Context(), h.logger), runID)
	if h.limits.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.limits.RequestTimeout)
		defer cancel()
	}
	log := logger.FromContext(ctx)

	if h.limits.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(h.limits.MultipartMemory); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		log.Warn("rejected upload", "error", err, "status", status)
		writeJSON(w, status, ingress.IngestResponse{
			Status: ingress.StatusFailure,
			RunID:  runID,
			Stage:  ingress.StageReceived,
			Error:  fmt.Sprintf("failed to parse upload: %v", err),
		})
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn("failed to remove multipart spool files", "error", err)
		}
	}()

	req := ingest.Request{
		DeclaredChecksum: r.FormValue(ingress.FieldMD5),
		DisplayName:      r.FormValue(ingress.FieldName),
		AccessionToken:   r.FormValue(ingress.FieldAccessionID),
	}
	// A missing file is left for request validation to report.
	file, _, err := h.openFile(r, ingress.FieldFile)
	switch {
	case err == nil:
		defer file.Close()
		req.Content = file
	case !errors.Is(err, http.ErrMissingFile):
		err = &ingest.StageError{
			Stage: ingress.StageReceived,
			Err:   &ingest.IOError{Op: "open uploaded file", Err: err},
		}
		log.Error("failed to open uploaded file", "error", err)
		writeJSON(w, ingest.HTTPStatus(err), ingress.IngestResponse{
			Status: ingress.StatusFailure,
			RunID:  runID,
			Stage:  ingress.StageReceived,
			Error:  err.Error(),
		})
		return
	}

	result, err := h.workflow.Execute(&workflows.WorkflowContext{
		Ctx:     ctx,
		Request: req,
		RunID:   runID,
	})
	if result == nil {
		writeJSON(w, ingest.HTTPStatus(err), ingress.IngestResponse{
			Status: ingress.StatusFailure,
			RunID:  runID,
			Error:  errorString(err),
		})
		return
	}

	writeJSON(w, ingest.HTTPStatus(err), result.Response(runID))
}

// HandleHealth returns health status
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("failed to write response", "error", err)
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
