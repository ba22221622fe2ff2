package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/casestar/casestar-client/internal/config"
	"github.com/casestar/casestar-client/internal/core/domain"
	"github.com/casestar/casestar-client/internal/core/ports"
	"github.com/casestar/casestar-client/internal/observability/metrics"
)

// ToastFeed lists recent notifications, newest last.
type ToastFeed interface {
	Recent(limit int) []domain.Toast
}

type Dependencies struct {
	Processor ports.DocumentProcessor
	Stages    ports.StagePresenter
	Settings  ports.SettingsManager
	Queries   ports.BackendQueryService
	Toasts    ToastFeed
	// Metrics is optional; /metrics is only served when set.
	Metrics *metrics.HTTPServerMetrics
}

type Router struct {
	cfg       config.Config
	deps      Dependencies
	validator *requestValidator

	runs sync.WaitGroup
}

func NewRouter(cfg config.Config, deps Dependencies) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	return &Router{
		cfg:       cfg,
		deps:      deps,
		validator: validator,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /v1/backend/health", rt.backendHealth)
	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/stage", rt.getStage)
	mux.HandleFunc("POST /v1/stage/retry", rt.retryStage)
	mux.HandleFunc("DELETE /v1/result", rt.dismissResult)
	mux.HandleFunc("POST /v1/search", rt.search)
	mux.HandleFunc("GET /v1/cases", rt.listCases)
	mux.HandleFunc("GET /v1/settings", rt.getSettings)
	mux.HandleFunc("PATCH /v1/settings", rt.patchSettings)
	mux.HandleFunc("DELETE /v1/settings", rt.resetSettings)
	mux.HandleFunc("PATCH /v1/settings/timeline", rt.patchTimeline)
	mux.HandleFunc("GET /v1/toasts", rt.listToasts)
	mux.HandleFunc("GET /openapi.yaml", serveOpenAPISpec)
	if rt.deps.Metrics != nil {
		mux.Handle("GET /metrics", rt.deps.Metrics.Handler())
	}

	var handler http.Handler = rt.validator.middleware(mux)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.deps.Metrics != nil {
		handler = rt.deps.Metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

// Wait blocks until background pipeline runs started over HTTP finish.
func (rt *Router) Wait() {
	rt.runs.Wait()
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) backendHealth(w http.ResponseWriter, r *http.Request) {
	status, err := rt.deps.Queries.Health(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.APIMaxUploadMB > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(rt.cfg.APIMaxUploadMB)<<20)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d MB", rt.cfg.APIMaxUploadMB))
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read uploaded file")
		return
	}
	doc := domain.DocumentFile{
		Name:        fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if wait {
		result, err := rt.deps.Processor.ProcessDocument(r.Context(), doc)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	// The run outlives the request; keep its values (request id) but not its cancellation.
	runCtx := context.WithoutCancel(r.Context())
	rt.runs.Add(1)
	done, err := rt.deps.Processor.StartDocument(runCtx, doc)
	if err != nil {
		rt.runs.Done()
		writeDomainError(w, err)
		return
	}
	go func() {
		defer rt.runs.Done()
		outcome := <-done
		if outcome.Err != nil {
			slog.Info("background_run_finished",
				"request_id", requestIDFromContext(runCtx),
				"filename", doc.Name,
				"error", outcome.Err,
			)
			return
		}
		slog.Info("background_run_finished",
			"request_id", requestIDFromContext(runCtx),
			"filename", doc.Name,
			"case_id", outcome.Result.CaseID,
		)
	}()

	writeJSON(w, http.StatusAccepted, rt.deps.Stages.Snapshot())
}

func (rt *Router) getStage(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.deps.Stages.Snapshot())
}

func (rt *Router) retryStage(w http.ResponseWriter, _ *http.Request) {
	if err := rt.deps.Stages.Retry(); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.deps.Stages.Snapshot())
}

func (rt *Router) dismissResult(w http.ResponseWriter, _ *http.Request) {
	rt.deps.Stages.DismissResult()
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	results, err := rt.deps.Queries.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (rt *Router) listCases(w http.ResponseWriter, r *http.Request) {
	cases, err := rt.deps.Queries.Cases(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cases)
}

func (rt *Router) getSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.deps.Settings.Get())
}

func (rt *Router) patchSettings(w http.ResponseWriter, r *http.Request) {
	var patch domain.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	settings, err := rt.deps.Settings.Update(r.Context(), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (rt *Router) patchTimeline(w http.ResponseWriter, r *http.Request) {
	var patch domain.TimelinePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	settings, err := rt.deps.Settings.UpdateTimeline(r.Context(), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (rt *Router) resetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := rt.deps.Settings.Reset(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (rt *Router) listToasts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	toasts := []domain.Toast{}
	if rt.deps.Toasts != nil {
		toasts = rt.deps.Toasts.Recent(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{"toasts": toasts})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
