package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/estatebase/internal/auth"
	"github.com/hitoshi/estatebase/internal/middleware"
	"github.com/hitoshi/estatebase/internal/model"
	"github.com/hitoshi/estatebase/internal/schema"
	"github.com/hitoshi/estatebase/internal/seed"
	"github.com/hitoshi/estatebase/internal/store"
	"github.com/hitoshi/estatebase/internal/tenant"
)

// memoryAssetStore はテスト用のインメモリAssetStore。
type memoryAssetStore struct {
	assets map[string]*store.Asset
	blobs  map[string][]byte
}

func newMemoryAssetStore() *memoryAssetStore {
	return &memoryAssetStore{
		assets: make(map[string]*store.Asset),
		blobs:  make(map[string][]byte),
	}
}

func (s *memoryAssetStore) Upload(ctx context.Context, data []byte, mimeType, filename string) (*store.Asset, error) {
	if err := store.ValidateAsset(int64(len(data)), mimeType); err != nil {
		return nil, err
	}
	asset := &store.Asset{
		ID:        uuid.NewString(),
		Filename:  filename,
		MimeType:  mimeType,
		SizeBytes: int64(len(data)),
		CreatedAt: time.Now(),
	}
	asset.URL = "https://example.com/assets/" + asset.ID
	s.assets[asset.ID] = asset
	s.blobs[asset.ID] = data
	return asset, nil
}

func (s *memoryAssetStore) Get(ctx context.Context, id string) (*store.Asset, []byte, error) {
	asset, ok := s.assets[id]
	if !ok {
		return nil, nil, store.ErrAssetNotFound
	}
	return asset, s.blobs[id], nil
}

var _ store.AssetStore = (*memoryAssetStore)(nil)

// stubAuthService は認証フローのスタブ。ルーターテストではOAuthフロー自体は
// 対象外のため、固定値を返す。
type stubAuthService struct{}

func (stubAuthService) GetLoginURL(state string) string { return "https://accounts.example.com/auth" }
func (stubAuthService) GenerateState() string           { return "state-1" }
func (stubAuthService) HandleCallback(ctx context.Context, code string) (string, *model.AdminUser, error) {
	return "", nil, model.NewOAuthFailedError()
}

var _ AuthServiceInterface = (stubAuthService{})

type routerFixture struct {
	handler http.Handler
	store   *memoryStore
	tokens  *auth.TokenManager
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ms := &memoryStore{}
	tokens := auth.NewTokenManager("router-test-secret-32-characters!!!!", time.Hour)
	allowlist := auth.NewAllowlist([]string{"admin@example.com"})
	validator := schema.NewValidator(nil)

	deps := &RouterDeps{
		Logger:            logger,
		TokenVerifier:     tokens,
		Allowlist:         allowlist,
		CORSAllowedOrigin: "https://admin.example.com",
		CSRFConfig:        middleware.CSRFConfig{},
		UploadLimiter:     middleware.NewFixedWindowLimiter(20, time.Minute),
		AuthService:       stubAuthService{},
		AuthConfig:        AuthHandlerConfig{BaseURL: "https://example.com", SessionMaxAge: 3600},
		DocumentStore:     ms,
		AssetStore:        newMemoryAssetStore(),
		Validator:         validator,
		TenantResolver:    tenant.NewResolver(ms, "example.com"),
		UploadMaxBytes:    store.MaxAssetBytes,
		Seeder:            seed.NewSeeder(ms, validator, logger),
		SeedEnabled:       true,
	}

	return &routerFixture{
		handler: NewRouter(deps),
		store:   ms,
		tokens:  tokens,
	}
}

// adminRequest は認証CookieとCSRFトークンを付与した管理リクエストを生成する。
func (f *routerFixture) adminRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)

	token, err := f.tokens.Issue(model.AdminUser{ID: "u1", Email: "admin@example.com", Name: "Admin"})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-csrf"})
	req.Header.Set("X-CSRF-Token", "test-csrf")
	return req
}

func TestRouter_AdminCreateEndToEnd(t *testing.T) {
	f := newRouterFixture(t)

	body := `{
		"name": "Zilker",
		"slug": "zilker",
		"order": 1,
		"highlights": [
			{"label": "Walkability", "value": "High"},
			{"_key": "keep-me", "label": "Schools"}
		]
	}`
	req := f.adminRequest(t, http.MethodPost, "/admin/neighborhoods/", body)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("response should be JSON: %v", err)
	}

	highlights, ok := resp["highlights"].([]any)
	if !ok || len(highlights) != 2 {
		t.Fatalf("highlights = %v", resp["highlights"])
	}

	first := highlights[0].(map[string]any)
	if key, _ := first["_key"].(string); key == "" {
		t.Error("missing array keys should be generated")
	}
	second := highlights[1].(map[string]any)
	if second["_key"] != "keep-me" {
		t.Errorf("supplied array key should be preserved, got %v", second["_key"])
	}
}

func TestRouter_AdminWithoutCookie(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/neighborhoods/", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRouter_AdminNotAllowlisted(t *testing.T) {
	f := newRouterFixture(t)

	token, err := f.tokens.Issue(model.AdminUser{ID: "u2", Email: "stranger@example.com"})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/neighborhoods/", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 (valid token, email outside allowlist)", rec.Code)
	}
}

func TestRouter_AdminMutationWithoutCSRF(t *testing.T) {
	f := newRouterFixture(t)

	token, _ := f.tokens.Issue(model.AdminUser{ID: "u1", Email: "admin@example.com"})
	req := httptest.NewRequest(http.MethodPost, "/admin/neighborhoods/", strings.NewReader(`{"name":"X","slug":"x"}`))
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 (CSRF token required)", rec.Code)
	}
}

func TestRouter_PublicListIncludesAdminCreatedRecord(t *testing.T) {
	f := newRouterFixture(t)

	for _, body := range []string{
		`{"name":"Second","slug":"second","order":2}`,
		`{"name":"First","slug":"first","order":1}`,
	} {
		req := f.adminRequest(t, http.MethodPost, "/admin/neighborhoods/", body)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("setup create failed: %d %s", rec.Code, rec.Body.String())
		}
	}

	// 公開APIは認証なしで読める
	req := httptest.NewRequest(http.MethodGet, "/api/neighborhoods", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("response should be a JSON array: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("len = %d, want 2", len(resp))
	}
	if resp[0]["name"] != "First" || resp[1]["name"] != "Second" {
		t.Errorf("public list should be ordered by order asc: %v", resp)
	}
}

func TestRouter_TenantDealLookup(t *testing.T) {
	f := newRouterFixture(t)

	body := `{
		"clientName": "Pat Client",
		"clientEmail": "pat@example.com",
		"tenantDomain": "agent-a.com",
		"stage": "closing"
	}`
	req := f.adminRequest(t, http.MethodPost, "/admin/deals/", body)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("setup create failed: %d %s", rec.Code, rec.Body.String())
	}

	// 同一テナント・大文字メールで照会できる
	dealReq := httptest.NewRequest(http.MethodGet, "/api/deal?email=PAT@example.com", nil)
	dealReq.Host = "www.agent-a.com:443"
	dealRec := httptest.NewRecorder()
	f.handler.ServeHTTP(dealRec, dealReq)

	if dealRec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", dealRec.Code, dealRec.Body.String())
	}

	// 別テナントからは見えない
	otherReq := httptest.NewRequest(http.MethodGet, "/api/deal?email=pat@example.com", nil)
	otherReq.Host = "agent-b.com"
	otherRec := httptest.NewRecorder()
	f.handler.ServeHTTP(otherRec, otherReq)

	if otherRec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 (cross-tenant lookups must fail)", otherRec.Code)
	}
}

func TestRouter_SeedThenPublicRead(t *testing.T) {
	f := newRouterFixture(t)

	req := f.adminRequest(t, http.MethodPost, "/admin/seed", "")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("seed status = %d: %s", rec.Code, rec.Body.String())
	}

	propReq := httptest.NewRequest(http.MethodGet, "/api/properties", nil)
	propRec := httptest.NewRecorder()
	f.handler.ServeHTTP(propRec, propReq)

	var props []map[string]any
	if err := json.NewDecoder(propRec.Body).Decode(&props); err != nil {
		t.Fatalf("response should be a JSON array: %v", err)
	}
	if len(props) == 0 {
		t.Error("seeded properties should be publicly readable")
	}
}

func TestRouter_Healthz(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// failingPinger はDB疎通確認が失敗する状態を再現する。
type failingPinger struct{}

func (failingPinger) PingContext(ctx context.Context) error {
	return errors.New("connection refused")
}

func TestRouter_HealthzUnhealthy(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewRouter(&RouterDeps{
		Logger:        logger,
		HealthChecker: failingPinger{},
		AuthService:   stubAuthService{},
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when the database is unreachable", rec.Code)
	}
}
