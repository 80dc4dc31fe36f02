package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/knowbase/sales-copilot/internal/core/domain"
	"github.com/knowbase/sales-copilot/internal/core/ports"
	"github.com/knowbase/sales-copilot/internal/observability/metrics"
)

type fakeAnswerer struct {
	resp *domain.QueryResponse
	err  error

	gotSessionID string
	gotQuery     string
}

func (f *fakeAnswerer) Answer(_ context.Context, sessionID, query string) (*domain.QueryResponse, error) {
	f.gotSessionID = sessionID
	f.gotQuery = query
	if f.err != nil {
		return nil, f.err
	}
	resp := *f.resp
	resp.SessionID = sessionID
	return &resp, nil
}

type fakeSessions struct {
	known   map[string][]domain.ConversationTurn
	created []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{known: map[string][]domain.ConversationTurn{}}
}

func (f *fakeSessions) Create(context.Context) (string, error) {
	id := fmt.Sprintf("session-%d", len(f.created)+1)
	f.created = append(f.created, id)
	f.known[id] = nil
	return id, nil
}

func (f *fakeSessions) History(_ context.Context, sessionID string) ([]domain.ConversationTurn, error) {
	turns, ok := f.known[sessionID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "session history", fmt.Errorf("unknown session"))
	}
	return turns, nil
}

func (f *fakeSessions) AppendTurn(_ context.Context, sessionID string, turn domain.ConversationTurn) error {
	f.known[sessionID] = append(f.known[sessionID], turn)
	return nil
}

func (f *fakeSessions) Touch(_ context.Context, sessionID string) error {
	if _, ok := f.known[sessionID]; !ok {
		return domain.WrapError(domain.ErrNotFound, "touch session", fmt.Errorf("unknown session"))
	}
	return nil
}

type fakeQueue struct {
	published []string
	err       error
}

func (f *fakeQueue) PublishRebuildRequested(_ context.Context, runID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, runID)
	return nil
}

func (f *fakeQueue) SubscribeRebuildRequested(context.Context, func(context.Context, domain.RebuildRequest) error) error {
	return nil
}

type fakeIngestRepo struct {
	report *domain.IngestReport
}

func (f *fakeIngestRepo) RecordRun(context.Context, *domain.IngestReport) error { return nil }

func (f *fakeIngestRepo) LastRun(context.Context) (*domain.IngestReport, error) {
	if f.report == nil {
		return nil, domain.WrapError(domain.ErrNotFound, "last ingest run", fmt.Errorf("no runs"))
	}
	return f.report, nil
}

type fakeIndex struct {
	count int
	err   error
}

func (f *fakeIndex) Rebuild(context.Context, []domain.Passage, [][]float32) error { return nil }

func (f *fakeIndex) SearchSemantic(context.Context, []float32, int, domain.QueryFilters) ([]domain.Candidate, error) {
	return nil, nil
}

func (f *fakeIndex) SearchLexical(context.Context, string, int, domain.QueryFilters) ([]domain.Candidate, error) {
	return nil, nil
}

func (f *fakeIndex) Fetch(context.Context, []string) ([]domain.Passage, error) { return nil, nil }

func (f *fakeIndex) Count(context.Context) (int, error) { return f.count, f.err }

type routerFixture struct {
	answerer *fakeAnswerer
	sessions *fakeSessions
	queue    *fakeQueue
	repo     *fakeIngestRepo
	index    *fakeIndex
	handler  http.Handler
}

func newRouterFixture(opts RouterOptions) *routerFixture {
	f := &routerFixture{
		answerer: &fakeAnswerer{resp: &domain.QueryResponse{
			Answer:          "Grounded answer. [Source: chennai_retail_2022.pdf, Page 4]",
			Citations:       []domain.Citation{{Document: "chennai_retail_2022.pdf", Page: 4}},
			Confidence:      domain.ConfidenceHigh,
			ConfidenceScore: 0.87,
			Intent:          "retrieve_similar_work",
		}},
		sessions: newFakeSessions(),
		queue:    &fakeQueue{},
		repo:     &fakeIngestRepo{},
		index:    &fakeIndex{count: 42},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.handler = NewRouter(f.answerer, f.sessions, f.queue, f.repo, f.index, nil, logger, opts).Handler()
	return f
}

var _ ports.QueryAnswerer = (*fakeAnswerer)(nil)
var _ ports.SessionStore = (*fakeSessions)(nil)
var _ ports.MessageQueue = (*fakeQueue)(nil)
var _ ports.IngestRepository = (*fakeIngestRepo)(nil)
var _ ports.SearchIndex = (*fakeIndex)(nil)

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	var decoded map[string]any
	if res.Body.Len() > 0 {
		if err := json.Unmarshal(res.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", res.Body.String(), err)
		}
	}
	return res, decoded
}

func TestHealthzReportsIndexedPassages(t *testing.T) {
	f := newRouterFixture(RouterOptions{})

	res, body := doJSON(t, f.handler, http.MethodGet, "/healthz", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if body["status"] != "ok" || body["indexed_passages"] != float64(42) {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestCreateSessionReturnsID(t *testing.T) {
	f := newRouterFixture(RouterOptions{})

	res, body := doJSON(t, f.handler, http.MethodPost, "/v1/sessions", nil)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	if body["session_id"] == "" {
		t.Fatalf("expected session id, got %v", body)
	}
}

func TestSessionHistoryUnknownReturns404(t *testing.T) {
	f := newRouterFixture(RouterOptions{})

	res, _ := doJSON(t, f.handler, http.MethodGet, "/v1/sessions/ghost/history", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestSessionHistoryReturnsTurns(t *testing.T) {
	f := newRouterFixture(RouterOptions{})
	id, _ := f.sessions.Create(context.Background())
	_ = f.sessions.AppendTurn(context.Background(), id, domain.ConversationTurn{Role: "user", Content: "q"})

	res, body := doJSON(t, f.handler, http.MethodGet, "/v1/sessions/"+id+"/history", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	turns, ok := body["turns"].([]any)
	if !ok || len(turns) != 1 {
		t.Fatalf("unexpected turns: %v", body)
	}
}

func TestQueryRequiresQueryField(t *testing.T) {
	f := newRouterFixture(RouterOptions{})

	res, _ := doJSON(t, f.handler, http.MethodPost, "/v1/query", map[string]string{"query": "  "})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestQueryAutoCreatesSessionForUnknownID(t *testing.T) {
	f := newRouterFixture(RouterOptions{})

	res, body := doJSON(t, f.handler, http.MethodPost, "/v1/query", map[string]string{
		"session_id": "expired-session",
		"query":      "retail case studies in chennai",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", res.Code, body)
	}
	if len(f.sessions.created) != 1 {
		t.Fatalf("expected a replacement session, created=%v", f.sessions.created)
	}
	if f.answerer.gotSessionID != f.sessions.created[0] {
		t.Fatalf("answerer saw session %q, want %q", f.answerer.gotSessionID, f.sessions.created[0])
	}
	if body["intent"] != "retrieve_similar_work" {
		t.Fatalf("unexpected response: %v", body)
	}
}

func TestQueryFilterFallbackSurfacedAndCounted(t *testing.T) {
	m := metrics.NewHTTPServerMetrics(serviceName)
	answerer := &fakeAnswerer{resp: &domain.QueryResponse{
		Answer:          "Closest match instead. [Source: pune_proposal.pdf, Page 2]",
		Citations:       []domain.Citation{{Document: "pune_proposal.pdf", Page: 2}},
		Confidence:      domain.ConfidenceMedium,
		ConfidenceScore: 0.61,
		Intent:          "retrieve_similar_work",
		FiltersDropped:  true,
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewRouter(answerer, newFakeSessions(), &fakeQueue{}, &fakeIngestRepo{}, &fakeIndex{count: 10}, m, logger, RouterOptions{}).Handler()

	res, body := doJSON(t, handler, http.MethodPost, "/v1/query", map[string]string{
		"query": "whitepapers about kolkata logistics from 2019",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", res.Code, body)
	}
	if body["filters_dropped"] != true {
		t.Fatalf("expected filters_dropped in response, got %v", body)
	}

	scrapeReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	scrapeRes := httptest.NewRecorder()
	handler.ServeHTTP(scrapeRes, scrapeReq)
	if !strings.Contains(scrapeRes.Body.String(), `copilot_query_filter_fallback_total{service="api"} 1`) {
		t.Fatalf("filter fallback counter not incremented:\n%s", scrapeRes.Body.String())
	}
}

func TestQueryWithoutFallbackOmitsFlag(t *testing.T) {
	f := newRouterFixture(RouterOptions{})

	res, body := doJSON(t, f.handler, http.MethodPost, "/v1/query", map[string]string{
		"query": "retail case studies in chennai",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if _, present := body["filters_dropped"]; present {
		t.Fatalf("filters_dropped must be omitted when filters held: %v", body)
	}
}

func TestQueryEmptyIndexMapsTo400(t *testing.T) {
	f := newRouterFixture(RouterOptions{})
	f.answerer.err = domain.WrapError(domain.ErrEmptyIndex, "answer query", fmt.Errorf("no documents have been ingested yet"))

	res, body := doJSON(t, f.handler, http.MethodPost, "/v1/query", map[string]string{"query": "anything about proposals"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, "ingested") {
		t.Fatalf("expected ingest hint, got %q", msg)
	}
}

func TestQueryBackendUnavailableMapsTo503(t *testing.T) {
	f := newRouterFixture(RouterOptions{})
	f.answerer.err = domain.WrapError(domain.ErrBackendUnavailable, "semantic search", fmt.Errorf("connection refused"))

	res, body := doJSON(t, f.handler, http.MethodPost, "/v1/query", map[string]string{"query": "whitepapers"})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	if body["error"] != "internal error" {
		t.Fatalf("expected sanitized 5xx message, got %v", body["error"])
	}
}

func TestIngestPublishesRebuildRequest(t *testing.T) {
	f := newRouterFixture(RouterOptions{})

	res, body := doJSON(t, f.handler, http.MethodPost, "/v1/ingest", nil)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	runID, _ := body["run_id"].(string)
	if runID == "" {
		t.Fatalf("expected run id, got %v", body)
	}
	if len(f.queue.published) != 1 || f.queue.published[0] != runID {
		t.Fatalf("expected published run id %q, got %v", runID, f.queue.published)
	}
}

func TestPipelineStatusWithoutRunsReturnsZeros(t *testing.T) {
	f := newRouterFixture(RouterOptions{})

	res, body := doJSON(t, f.handler, http.MethodGet, "/v1/admin/pipeline", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if body["total_documents"] != float64(0) || body["total_passages"] != float64(0) {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestPipelineStatusReturnsLastRun(t *testing.T) {
	f := newRouterFixture(RouterOptions{})
	f.repo.report = &domain.IngestReport{
		RunID:              "run-9",
		FinishedAt:         time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC),
		DocumentsProcessed: 3,
		TotalPassages:      57,
		Details: []domain.IngestDetail{
			{Filename: "a.pdf", DocumentType: domain.TypeCaseStudy, Passages: 20, Status: domain.IngestIndexed},
		},
	}

	res, body := doJSON(t, f.handler, http.MethodGet, "/v1/admin/pipeline", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if body["run_id"] != "run-9" || body["total_passages"] != float64(57) {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRateLimitReturns429(t *testing.T) {
	f := newRouterFixture(RouterOptions{RateLimitRPS: 1, RateLimitBurst: 1})

	res1, _ := doJSON(t, f.handler, http.MethodGet, "/healthz", nil)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}
	res2, _ := doJSON(t, f.handler, http.MethodGet, "/healthz", nil)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}
}

func TestBackpressureReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		done <- res.Code
	}()

	<-started

	req2 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated gate, got %d", res2.Code)
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timed out waiting for first request completion")
	}
}
