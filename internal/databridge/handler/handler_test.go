package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/databridge/internal/databridge/biz"
	"github.com/kart-io/databridge/internal/databridge/middleware"
	"github.com/kart-io/databridge/internal/databridge/telemetry"
	"github.com/kart-io/databridge/internal/model"
	"github.com/kart-io/databridge/pkg/llm"
	jwtopts "github.com/kart-io/databridge/pkg/options/jwt"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

// stubService returns canned values; individual tests override the
// error to exercise the errno mapping.
type stubService struct {
	err error
	doc *model.Document
}

var _ biz.Service = (*stubService)(nil)

func (s *stubService) IngestText(context.Context, model.AuthContext, *biz.IngestTextRequest) (*model.Document, error) {
	return s.doc, s.err
}

func (s *stubService) IngestFile(context.Context, model.AuthContext, *biz.IngestFileRequest) (*model.Document, error) {
	return s.doc, s.err
}

func (s *stubService) RetrieveChunks(context.Context, model.AuthContext, *biz.RetrieveRequest) ([]*model.ChunkResult, error) {
	return []*model.ChunkResult{}, s.err
}

func (s *stubService) RetrieveDocs(context.Context, model.AuthContext, *biz.RetrieveRequest) ([]*model.DocumentResult, error) {
	return []*model.DocumentResult{}, s.err
}

func (s *stubService) Query(context.Context, model.AuthContext, *biz.QueryRequest) (*llm.CompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Completion: "grounded answer"}, nil
}

func (s *stubService) GetDocument(context.Context, model.AuthContext, string) (*model.Document, error) {
	return s.doc, s.err
}

func (s *stubService) ListDocuments(context.Context, model.AuthContext, map[string]any, int64, int64) ([]*model.Document, error) {
	return nil, s.err
}

func (s *stubService) UpdateDocumentMetadata(context.Context, model.AuthContext, string, map[string]any) (*model.Document, error) {
	return s.doc, s.err
}

func (s *stubService) DeleteDocument(context.Context, model.AuthContext, string) error {
	return s.err
}

func (s *stubService) CreateCache(context.Context, model.AuthContext, *biz.CreateCacheRequest) (*model.CacheMetadata, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.CacheMetadata{Name: "c1"}, nil
}

func (s *stubService) LoadCache(context.Context, string) error { return s.err }

func (s *stubService) UpdateCache(context.Context, model.AuthContext, string) (bool, error) {
	return true, s.err
}

func (s *stubService) AddDocsToCache(context.Context, model.AuthContext, string, []string) (bool, error) {
	return true, s.err
}

func (s *stubService) QueryCache(context.Context, string, string, int, float64) (*llm.CompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Completion: "cached answer"}, nil
}

func newTestServer(svc biz.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)

	opts := jwtopts.NewOptions()
	opts.DevMode = true
	authn := middleware.NewAuthenticator(opts)

	h := New(svc, authn, telemetry.NewTracker(), map[string]string{
		"database":     "mongodb",
		"vector_store": "milvus",
	})

	engine := gin.New()
	registerTestRoutes(engine, h, authn)
	return engine
}

// registerTestRoutes mirrors the production route table.
func registerTestRoutes(engine *gin.Engine, h *Handler, authn *middleware.Authenticator) {
	engine.GET("/healthz", h.Healthz)
	engine.GET("/healthz/ready", h.Ready)
	engine.POST("/v1/auth/dev-token", h.MintDevToken)

	v1 := engine.Group("/v1", authn.Auth())
	v1.POST("/ingest/text", h.IngestText)
	v1.POST("/query", h.Query)
	v1.GET("/documents/:id", h.GetDocument)
	v1.DELETE("/documents/:id", h.DeleteDocument)
	v1.GET("/usage/stats", h.UsageStats)
	v1.POST("/caches/:name/query", h.QueryCache)
}

func doRequest(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	engine.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	engine := newTestServer(&stubService{})

	w := doRequest(engine, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("unexpected response: %d %s", w.Code, w.Body.String())
	}
}

func TestReadyListsComponents(t *testing.T) {
	engine := newTestServer(&stubService{})

	w := doRequest(engine, http.MethodGet, "/healthz/ready", "")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	for _, want := range []string{"mongodb", "milvus", "ready"} {
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("readiness missing %q: %s", want, w.Body.String())
		}
	}
}

func TestIngestTextEndpoint(t *testing.T) {
	svc := &stubService{doc: &model.Document{ExternalID: "doc-1"}}
	engine := newTestServer(svc)

	w := doRequest(engine, http.MethodPost, "/v1/ingest/text", `{"content":"hello world"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "doc-1") {
		t.Errorf("document not returned: %s", w.Body.String())
	}
}

func TestIngestTextBadJSON(t *testing.T) {
	engine := newTestServer(&stubService{})

	w := doRequest(engine, http.MethodPost, "/v1/ingest/text", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestErrnoMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", utilerrors.ErrDocNotFound, http.StatusNotFound},
		{"forbidden", utilerrors.ErrDocNoReadAccess, http.StatusForbidden},
		{"integrity", utilerrors.ErrChunkDeleteMismatch, http.StatusConflict},
		{"plain error wrapped as internal", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestServer(&stubService{err: tt.err})
			w := doRequest(engine, http.MethodGet, "/v1/documents/doc-1", "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestDeleteDocumentEndpoint(t *testing.T) {
	engine := newTestServer(&stubService{})

	w := doRequest(engine, http.MethodDelete, "/v1/documents/doc-1", "")
	if w.Code != http.StatusOK {
		t.Errorf("unexpected status: %d %s", w.Code, w.Body.String())
	}
}

func TestQueryEndpoint(t *testing.T) {
	engine := newTestServer(&stubService{})

	w := doRequest(engine, http.MethodPost, "/v1/query", `{"query":"what is this?"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "grounded answer") {
		t.Errorf("unexpected response: %d %s", w.Code, w.Body.String())
	}
}

func TestCacheQueryEndpoint(t *testing.T) {
	engine := newTestServer(&stubService{})

	w := doRequest(engine, http.MethodPost, "/v1/caches/c1/query", `{"query":"q"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "cached answer") {
		t.Errorf("unexpected response: %d %s", w.Code, w.Body.String())
	}
}

func TestUsageStatsAfterOperations(t *testing.T) {
	engine := newTestServer(&stubService{doc: &model.Document{ExternalID: "doc-1"}})

	doRequest(engine, http.MethodPost, "/v1/ingest/text", `{"content":"one two three"}`)
	w := doRequest(engine, http.MethodGet, "/v1/usage/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	// One ingest with three approximate tokens.
	if !strings.Contains(w.Body.String(), `"operations":1`) || !strings.Contains(w.Body.String(), `"tokens_used":3`) {
		t.Errorf("usage not tracked: %s", w.Body.String())
	}
}

func TestMintDevTokenEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	opts := jwtopts.NewOptions()
	opts.DevMode = true
	opts.Key = "0123456789abcdef0123456789abcdef"
	authn := middleware.NewAuthenticator(opts)
	h := New(&stubService{}, authn, telemetry.NewTracker(), nil)

	engine := gin.New()
	engine.POST("/v1/auth/dev-token", h.MintDevToken)

	w := doRequest(engine, http.MethodPost, "/v1/auth/dev-token", `{"entity_id":"Test User"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "token") || !strings.Contains(w.Body.String(), "expires_in") {
		t.Errorf("token not minted: %s", w.Body.String())
	}
}

func TestMintDevTokenRejectedOutsideDevMode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	opts := jwtopts.NewOptions()
	opts.Key = "0123456789abcdef0123456789abcdef"
	authn := middleware.NewAuthenticator(opts)
	h := New(&stubService{}, authn, telemetry.NewTracker(), nil)

	engine := gin.New()
	engine.POST("/v1/auth/dev-token", h.MintDevToken)

	w := doRequest(engine, http.MethodPost, "/v1/auth/dev-token", `{"entity_id":"intruder"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 with dev mode off, got %d %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "expires_in") {
		t.Errorf("token minted with dev mode off: %s", w.Body.String())
	}
}
