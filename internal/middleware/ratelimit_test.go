package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/estatebase/internal/model"
)

func TestFixedWindowLimiter_RejectsOverLimit(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := NewFixedWindowLimiter(20, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 20; i++ {
		allowed, _ := l.Allow("admin@example.com")
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	// 21回目はウィンドウ内のため拒否
	allowed, retryAfter := l.Allow("admin@example.com")
	if allowed {
		t.Error("21st request in window should be rejected")
	}
	if retryAfter != time.Minute {
		t.Errorf("retryAfter = %v, want full window remaining", retryAfter)
	}
}

func TestFixedWindowLimiter_WindowRollover(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := NewFixedWindowLimiter(1, time.Minute)
	l.now = func() time.Time { return now }

	if allowed, _ := l.Allow("a@example.com"); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _ := l.Allow("a@example.com"); allowed {
		t.Fatal("second request in same window should be rejected")
	}

	// ウィンドウ経過後はリセットされる
	now = now.Add(time.Minute)
	if allowed, _ := l.Allow("a@example.com"); !allowed {
		t.Error("request after window rollover should be allowed")
	}
}

func TestFixedWindowLimiter_KeysAreIndependent(t *testing.T) {
	l := NewFixedWindowLimiter(1, time.Minute)

	if allowed, _ := l.Allow("a@example.com"); !allowed {
		t.Fatal("first key should be allowed")
	}
	if allowed, _ := l.Allow("b@example.com"); !allowed {
		t.Error("different key should have its own window")
	}
}

func TestFixedWindowLimiter_Cleanup(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := NewFixedWindowLimiter(10, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("a@example.com")
	l.Allow("b@example.com")

	now = now.Add(2 * time.Minute)
	l.Cleanup()

	l.mu.Lock()
	remaining := len(l.windows)
	l.mu.Unlock()
	if remaining != 0 {
		t.Errorf("expired windows should be removed, %d remaining", remaining)
	}
}

func TestFixedWindowLimiter_StopTerminatesCleanupLoop(t *testing.T) {
	l := NewFixedWindowLimiter(10, time.Minute)

	// コンストラクタが起動するループとは別にもう1本走らせ、
	// Stopで両方が終了することを終了通知で確認する
	done := make(chan struct{})
	go func() {
		l.cleanupLoop()
		close(done)
	}()

	l.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("cleanup loop should stop after Stop()")
	}
}

func TestUploadRateLimitMiddleware(t *testing.T) {
	limiter := NewFixedWindowLimiter(2, time.Minute)
	mw := NewUploadRateLimitMiddleware(limiter, discardLogger())

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	user := &model.AdminUser{ID: "u1", Email: "admin@example.com"}

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/admin/upload", nil)
		req = req.WithContext(ContextWithAdmin(req.Context(), user))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(); rec.Code != http.StatusCreated {
		t.Errorf("1st upload status = %d, want 201", rec.Code)
	}
	if rec := do(); rec.Code != http.StatusCreated {
		t.Errorf("2nd upload status = %d, want 201", rec.Code)
	}

	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("3rd upload status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response should include Retry-After header")
	}
}

func TestUploadRateLimitMiddleware_RequiresAuth(t *testing.T) {
	limiter := NewFixedWindowLimiter(10, time.Minute)
	mw := NewUploadRateLimitMiddleware(limiter, discardLogger())
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached without admin context")
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/upload", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRateLimiter_GeneralMiddleware(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	user := &model.AdminUser{ID: "u1", Email: "admin@example.com"}
	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/admin/properties", nil)
		req = req.WithContext(ContextWithAdmin(req.Context(), user))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	// バースト2なので3リクエスト目が429になる
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Errorf("first two requests should pass, got %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("third request should be rejected, got %v", statuses)
	}

	if rl.LimiterCount() != 1 {
		t.Errorf("LimiterCount() = %d, want 1", rl.LimiterCount())
	}
}
