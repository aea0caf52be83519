package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter はキーごとのリクエスト許可判定を行うインターフェース。
// 戻り値は許可の可否と、拒否時の再試行までの待ち時間。
type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

// FixedWindowLimiter は固定ウィンドウ方式のレートリミッター。
// ウィンドウ開始からwindow経過で計数がリセットされる。
// アップロードのような低頻度・高コスト操作の制限に使用する。
type FixedWindowLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*fixedWindow

	stopCh chan struct{}

	// テストで時刻を注入するためのフック
	now func() time.Time
}

// fixedWindow はキーごとのウィンドウ開始時刻と計数を保持する。
type fixedWindow struct {
	start time.Time
	count int
}

// NewFixedWindowLimiter はFixedWindowLimiterを生成する。
// バックグラウンドで期限切れウィンドウのクリーンアップを開始する。
func NewFixedWindowLimiter(limit int, window time.Duration) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*fixedWindow),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	go l.cleanupLoop()

	return l
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (l *FixedWindowLimiter) Stop() {
	close(l.stopCh)
}

// cleanupLoop はバックグラウンドで期限切れウィンドウを定期的にクリーンアップする。
// クリーンアップ間隔はウィンドウ長と同じ（下限1分）。
func (l *FixedWindowLimiter) cleanupLoop() {
	interval := l.window
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Cleanup()
		case <-l.stopCh:
			return
		}
	}
}

// Allow はキーに対するリクエストを許可するかを判定する。
// ウィンドウ内の計数がlimitに達している場合は拒否し、
// ウィンドウ終了までの残り時間を返す。
func (l *FixedWindowLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, exists := l.windows[key]
	if !exists || now.Sub(w.start) >= l.window {
		l.windows[key] = &fixedWindow{start: now, count: 1}
		return true, 0
	}

	if w.count >= l.limit {
		return false, w.start.Add(l.window).Sub(now)
	}

	w.count++
	return true, 0
}

// Cleanup は期限切れウィンドウのエントリを削除する。
func (l *FixedWindowLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, key)
		}
	}
}

// NewUploadRateLimitMiddleware はアップロード専用のレート制限ミドルウェアを返す。
// キーには認証済み管理者のメールアドレスを使用する（認証ゲートの後に配置）。
func NewUploadRateLimitMiddleware(limiter Limiter, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := AdminFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			allowed, retryAfter := limiter.Allow(user.Email)
			if !allowed {
				logger.Warn("rate limit exceeded",
					slog.String("email", user.Email),
					slog.String("limit_type", "upload"),
				)
				writeRateLimitResponse(w, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiterConfig は管理API全般のレート制限設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // 管理API全般のレート（req/sec）
	GeneralBurst    int           // 管理API全般のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 管理API全般 120 req/min/user。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0), // 2 req/sec
		GeneralBurst:    120,
		CleanupInterval: 5 * time.Minute,
	}
}

// userLimiter は管理者ごとのレートリミッターとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter は管理者ごとの管理API全般レート制限を管理する。
// トークンバケット方式で、バースト的な編集操作を許容しつつ持続レートを抑える。
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.RWMutex
	limiters map[string]*userLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:   config,
		limiters: make(map[string]*userLimiter),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware は管理API全般のレート制限ミドルウェアを返す。
// 認証ゲートの後に配置し、キーには管理者メールアドレスを使用する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := AdminFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			limiter := rl.getOrCreateLimiter(user.Email)

			if !limiter.Allow() {
				slog.Warn("rate limit exceeded",
					slog.String("email", user.Email),
					slog.String("limit_type", "general"),
				)
				retryAfterSec := math.Ceil(1.0 / float64(rl.config.GeneralRate))
				writeRateLimitResponse(w, time.Duration(retryAfterSec)*time.Second)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCount は現在管理されているリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) LimiterCount() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}

// getOrCreateLimiter は管理者のリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateLimiter(email string) *rate.Limiter {
	rl.mu.RLock()
	ul, exists := rl.limiters[email]
	rl.mu.RUnlock()

	if exists {
		rl.mu.Lock()
		ul.lastAccess = time.Now()
		rl.mu.Unlock()
		return ul.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// ダブルチェック
	if ul, exists := rl.limiters[email]; exists {
		ul.lastAccess = time.Now()
		return ul.limiter
	}

	limiter := rate.NewLimiter(rl.config.GeneralRate, rl.config.GeneralBurst)
	rl.limiters[email] = &userLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := time.Now()

	rl.mu.Lock()
	for email, ul := range rl.limiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.limiters, email)
		}
	}
	rl.mu.Unlock()
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーには再試行までの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, retryAfter time.Duration) {
	retryAfterSec := int(math.Ceil(retryAfter.Seconds()))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"code":     "RATE_LIMIT_EXCEEDED",
		"message":  "リクエストが多すぎます。しばらく待ってから再度お試しください。",
		"category": "system",
		"action":   "指定された時間が経過してから再試行してください。",
	})
}

// compile-time interface check
var _ Limiter = (*FixedWindowLimiter)(nil)
