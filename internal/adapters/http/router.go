package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/knowbase/sales-copilot/internal/core/domain"
	"github.com/knowbase/sales-copilot/internal/core/ports"
	"github.com/knowbase/sales-copilot/internal/observability/metrics"
)

const serviceName = "api"

type RouterOptions struct {
	RateLimitRPS        float64
	RateLimitBurst      int
	MaxConcurrent       int
	BackpressureTimeout time.Duration
}

type Router struct {
	answerer   ports.QueryAnswerer
	sessions   ports.SessionStore
	queue      ports.MessageQueue
	ingestRepo ports.IngestRepository
	index      ports.SearchIndex
	metrics    *metrics.HTTPServerMetrics
	logger     *slog.Logger
	opts       RouterOptions
}

func NewRouter(
	answerer ports.QueryAnswerer,
	sessions ports.SessionStore,
	queue ports.MessageQueue,
	ingestRepo ports.IngestRepository,
	index ports.SearchIndex,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
	opts RouterOptions,
) *Router {
	return &Router{
		answerer:   answerer,
		sessions:   sessions,
		queue:      queue,
		ingestRepo: ingestRepo,
		index:      index,
		metrics:    m,
		logger:     logger,
		opts:       opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/sessions", rt.createSession)
	mux.HandleFunc("/v1/sessions/", rt.sessionHistory)
	mux.Handle("/v1/query", backpressureMiddleware(
		http.HandlerFunc(rt.query), rt.opts.MaxConcurrent, rt.opts.BackpressureTimeout))
	mux.HandleFunc("/v1/ingest", rt.triggerIngest)
	mux.HandleFunc("/v1/admin/pipeline", rt.pipelineStatus)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = rt.accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	count, err := rt.index.Count(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"indexed_passages": count,
	})
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id, err := rt.sessions.Create(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (rt *Router) sessionHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	sessionID, suffix, ok := strings.Cut(rest, "/")
	if !ok || suffix != "history" || sessionID == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	turns, err := rt.sessions.History(r.Context(), sessionID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found or expired"})
			return
		}
		rt.writeError(w, r, err)
		return
	}
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"turns":      turns,
	})
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
		Query     string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	// Unknown or expired sessions are replaced transparently so a stale
	// client keeps working, it just loses its history.
	sessionID := req.SessionID
	if sessionID == "" || rt.sessions.Touch(r.Context(), sessionID) != nil {
		created, err := rt.sessions.Create(r.Context())
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		sessionID = created
	}

	start := time.Now()
	resp, err := rt.answerer.Answer(r.Context(), sessionID, req.Query)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	if rt.metrics != nil {
		if resp.GuardrailTriggered != nil {
			rt.metrics.RecordGuardrailHit(serviceName, resp.GuardrailTriggered.Type)
		}
		if len(resp.Citations) == 0 && resp.GuardrailTriggered == nil {
			rt.metrics.RecordNoAnswer(serviceName)
		}
		if resp.FiltersDropped {
			rt.metrics.RecordFilterFallback(serviceName)
		}
		rt.metrics.RecordQuery(serviceName, string(resp.Confidence), resp.ConfidenceScore, len(resp.Citations), time.Since(start))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) triggerIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	runID := uuid.NewString()
	if err := rt.queue.PublishRebuildRequested(r.Context(), runID); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"status": "queued",
	})
}

func (rt *Router) pipelineStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	report, err := rt.ingestRepo.LastRun(r.Context())
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{
				"total_documents": 0,
				"total_passages":  0,
				"documents":       []domain.IngestDetail{},
				"last_ingestion":  nil,
			})
			return
		}
		rt.writeError(w, r, err)
		return
	}

	details := report.Details
	if details == nil {
		details = []domain.IngestDetail{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":          report.RunID,
		"total_documents": report.DocumentsProcessed,
		"total_passages":  report.TotalPassages,
		"documents":       details,
		"last_ingestion":  report.FinishedAt,
	})
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": publicErrorMessage(err, status)})
}

// publicErrorMessage keeps backend internals out of 5xx bodies.
func publicErrorMessage(err error, status int) string {
	if status >= 500 {
		return "internal error"
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
