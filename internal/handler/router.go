package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/estatebase/internal/metrics"
	"github.com/hitoshi/estatebase/internal/middleware"
	"github.com/hitoshi/estatebase/internal/schema"
	"github.com/hitoshi/estatebase/internal/store"
)

// HealthChecker はヘルスチェックでのDB疎通確認に使用するインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger        *slog.Logger
	HealthChecker HealthChecker

	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	Allowlist         middleware.AllowlistChecker
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	GeneralLimiter    *middleware.RateLimiter
	UploadLimiter     middleware.Limiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメイン
	DocumentStore  store.DocumentStore
	AssetStore     store.AssetStore
	Validator      *schema.Validator
	TenantResolver TenantResolverInterface
	NewsService    NewsProvider
	UploadMaxBytes int64

	// シード
	Seeder      SeedRunner
	SeedEnabled bool

	// 観測
	Metrics        *metrics.Collector
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS
//
// 管理ルート（/admin/*）はさらに AdminGate → CSRF → RateLimit(General) を通る。
// 公開ルート（/api/*, /assets/*）は認証なしで到達できる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 型付きnilがインターフェースに入らないよう、nilチェックはここで行う
	var (
		httpMetrics       middleware.HTTPMetricsRecorder
		authMetrics       AuthMetrics
		gateMetrics       middleware.AuthMetricsRecorder
		validationMetrics ValidationMetrics
		uploadMetrics     UploadMetrics
	)
	if deps.Metrics != nil {
		httpMetrics = deps.Metrics
		authMetrics = deps.Metrics
		gateMetrics = deps.Metrics
		validationMetrics = deps.Metrics
		uploadMetrics = deps.Metrics
	}

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, httpMetrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, authMetrics)
	publicHandler := NewPublicHandler(deps.DocumentStore, deps.NewsService, deps.Logger)
	tenantHandler := NewTenantHandler(deps.TenantResolver)
	uploadHandler := NewUploadHandler(deps.AssetStore, deps.UploadMaxBytes, uploadMetrics, deps.Logger)
	seedHandler := NewSeedHandler(deps.Seeder, deps.SeedEnabled)

	adminGate := middleware.NewAdminGateMiddleware(deps.TokenVerifier, deps.Allowlist, deps.Logger, gateMetrics)

	// --- 認証不要のルート ---

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(r.Context()); err != nil {
				deps.Logger.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// OAuthフロー
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)

		// 自分の情報は認証ゲートの内側
		r.With(adminGate).Get("/me", authHandler.Me)
	})

	// 公開サイト向けAPI
	r.Route("/api", func(r chi.Router) {
		r.Get("/cities", publicHandler.ListCities)
		r.Get("/neighborhoods", publicHandler.ListNeighborhoods)
		r.Get("/properties", publicHandler.ListProperties)
		r.Get("/testimonials", publicHandler.ListTestimonials)
		r.Get("/site-settings", publicHandler.GetSiteSettings)
		r.Get("/news", publicHandler.ListNews)

		// テナント解決
		r.Get("/tenant-config", tenantHandler.GetTenantConfig)
		r.Get("/deal", tenantHandler.GetDeal)

		// 管理UI向けCSRFトークン取得
		r.Handle("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
	})

	// アセット配信
	r.Get("/assets/{id}", uploadHandler.Serve)

	// --- 管理ルート ---
	// ミドルウェアスタック: AdminGate → CSRF → RateLimit(General)
	r.Route("/admin", func(r chi.Router) {
		r.Use(adminGate)
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		if deps.GeneralLimiter != nil {
			r.Use(deps.GeneralLimiter.GeneralMiddleware())
		}

		// エンティティごとの管理CRUD
		for _, config := range AdminResources() {
			h := NewResourceHandler(config, deps.DocumentStore, deps.Validator, validationMetrics)
			r.Route("/"+config.Name, func(r chi.Router) {
				r.Get("/", h.List)
				r.Post("/", h.Create)
				r.Put("/", h.Update)
				r.Delete("/", h.Delete)
			})
		}

		// アセットアップロード（アップロード専用レート制限を追加）
		if deps.UploadLimiter != nil {
			r.With(middleware.NewUploadRateLimitMiddleware(deps.UploadLimiter, deps.Logger)).
				Post("/upload", uploadHandler.Upload)
		} else {
			r.Post("/upload", uploadHandler.Upload)
		}

		// サンプルコンテンツ投入
		r.Post("/seed", seedHandler.Seed)
	})

	return r
}
