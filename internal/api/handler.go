// Package api provides the HTTP surface of the layer publication service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/service"
)

// maxUploadBytes bounds one multipart upload (zip archives compress well;
// anything larger belongs on a different ingestion path).
const maxUploadBytes = 512 << 20

// PipelineRunner runs one ingestion request. Satisfied by
// *service.PipelineService; narrowed to an interface so handlers are
// testable without a portal.
type PipelineRunner interface {
	Run(ctx context.Context, req service.IngestRequest) *domain.Report
}

// APIHandler carries the handler dependencies.
type APIHandler struct {
	pipeline PipelineRunner
	jobs     domain.JobLogRepository // optional, may be nil
	logger   *slog.Logger
}

// NewHandler creates an APIHandler. jobs may be nil when the processing log
// is disabled.
func NewHandler(pipeline PipelineRunner, jobs domain.JobLogRepository, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &APIHandler{pipeline: pipeline, jobs: jobs, logger: logger}
}

// Routes mounts the handler's endpoints on a chi router.
func (h *APIHandler) Routes(r chi.Router) {
	r.Post("/layers", h.createLayer)
	r.Post("/layers/{itemID}/update", h.updateLayer)
	r.Get("/jobs", h.listJobs)
}

// createLayer publishes a new hosted layer from an uploaded archive.
//
// Multipart fields: archive (file, required), title, tags (comma separated),
// share (private|org|public).
func (h *APIHandler) createLayer(w http.ResponseWriter, r *http.Request) {
	req, ok := h.ingestFromMultipart(w, r)
	if !ok {
		return
	}
	h.runAndRespond(w, r, req)
}

// updateLayer refreshes an existing layer from an uploaded archive. The
// sublayer query/form field selects a scoped truncate+append; its absence
// selects a whole-service overwrite.
//
// Multipart fields: archive (file, required), serviceUrl (required),
// sublayer, mapping (JSON object of source→target field renames), share,
// backup (default true; set false to skip the pre-update snapshot).
func (h *APIHandler) updateLayer(w http.ResponseWriter, r *http.Request) {
	req, ok := h.ingestFromMultipart(w, r)
	if !ok {
		return
	}

	target := domain.TargetDescriptor{
		ItemID:     chi.URLParam(r, "itemID"),
		ServiceURL: r.FormValue("serviceUrl"),
	}
	if target.ServiceURL == "" {
		writeError(w, http.StatusBadRequest, "serviceUrl form field is required for updates")
		return
	}
	if raw := r.FormValue("sublayer"); raw != "" {
		sub, err := strconv.Atoi(raw)
		if err != nil || sub < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid sublayer %q", raw))
			return
		}
		target.Sublayer = &sub
	}
	req.Target = &target

	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.FieldMapping); err != nil {
			writeError(w, http.StatusBadRequest, "mapping must be a JSON object of field renames")
			return
		}
	}

	req.Backup = true
	if raw := r.FormValue("backup"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid backup flag %q", raw))
			return
		}
		req.Backup = b
	}

	h.runAndRespond(w, r, req)
}

// listJobs returns recent processing-log events, or the full trail of one
// job when ?job= is given.
func (h *APIHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeError(w, http.StatusNotFound, "processing log is not enabled")
		return
	}

	var (
		events []domain.JobEvent
		err    error
	)
	if jobID := r.URL.Query().Get("job"); jobID != "" {
		events, err = h.jobs.ListForJob(r.Context(), jobID)
	} else {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		events, err = h.jobs.ListRecent(r.Context(), limit)
	}
	if err != nil {
		h.logger.Error("list job events", "error", err)
		writeError(w, http.StatusInternalServerError, "could not read the processing log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// ingestFromMultipart parses the fields shared by create and update. On
// failure it writes the error response and returns ok=false.
func (h *APIHandler) ingestFromMultipart(w http.ResponseWriter, r *http.Request) (service.IngestRequest, bool) {
	var req service.IngestRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "request must be multipart/form-data with an archive file")
		return req, false
	}

	file, header, err := r.FormFile("archive")
	if err != nil {
		writeError(w, http.StatusBadRequest, "archive file field is required")
		return req, false
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read the uploaded archive")
		return req, false
	}
	req.Archive = domain.Archive{Name: header.Filename, Bytes: data}
	req.Title = r.FormValue("title")
	if tags := r.FormValue("tags"); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				req.Tags = append(req.Tags, t)
			}
		}
	}

	share, err := domain.ParseSharingLevel(r.FormValue("share"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	req.Share = share

	return req, true
}

func (h *APIHandler) runAndRespond(w http.ResponseWriter, r *http.Request, req service.IngestRequest) {
	report := h.pipeline.Run(r.Context(), req)
	status := http.StatusOK
	if !report.Success {
		status = httpStatusForKind(report.ErrorKind)
	}
	writeJSON(w, status, report)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"code": status, "message": msg})
}
