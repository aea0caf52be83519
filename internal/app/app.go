// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/estatebase/internal/auth"
	"github.com/hitoshi/estatebase/internal/config"
	"github.com/hitoshi/estatebase/internal/database"
	"github.com/hitoshi/estatebase/internal/handler"
	"github.com/hitoshi/estatebase/internal/logger"
	"github.com/hitoshi/estatebase/internal/metrics"
	"github.com/hitoshi/estatebase/internal/middleware"
	"github.com/hitoshi/estatebase/internal/news"
	"github.com/hitoshi/estatebase/internal/schema"
	"github.com/hitoshi/estatebase/internal/security"
	"github.com/hitoshi/estatebase/internal/seed"
	"github.com/hitoshi/estatebase/internal/store"
	"github.com/hitoshi/estatebase/internal/tenant"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続（読み取り用と書き込み用を分離）
	readDB, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer readDB.Close()

	if err := readDB.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	writeDB := readDB
	if cfg.DatabaseWriteURL != cfg.DatabaseURL {
		writeDB, err = database.Open(cfg.DatabaseWriteURL)
		if err != nil {
			return fmt.Errorf("failed to open write database: %w", err)
		}
		defer writeDB.Close()

		if err := writeDB.Ping(); err != nil {
			return fmt.Errorf("failed to connect to write database: %w", err)
		}
	}

	slog.Info("database connection established")

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. ストアの初期化
	docStore := store.NewPostgresDocumentStore(readDB, writeDB, collector)
	assetStore := store.NewPostgresAssetStore(readDB, writeDB, cfg.BaseURL)

	// 4. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 5. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	tokenManager := auth.NewTokenManager(cfg.SessionSecret, time.Duration(cfg.SessionMaxAge)*time.Second)
	allowlist := auth.NewAllowlist(cfg.AdminAllowlist)
	authService := auth.NewService(oauthProvider, tokenManager, allowlist, slog.Default())

	validator := schema.NewValidator(sanitizer)
	tenantResolver := tenant.NewResolver(docStore, cfg.DefaultTenantDomain)
	newsService := news.NewService(
		cfg.NewsFeedURL, cfg.NewsRevalidate, cfg.NewsMaxBytes,
		ssrfGuard, sanitizer, collector, slog.Default(),
	)
	seeder := seed.NewSeeder(docStore, validator, slog.Default())

	// 6. レート制限の初期化
	// configのRateLimitGeneralはreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	generalLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer generalLimiter.Stop()

	uploadLimiter := middleware.NewFixedWindowLimiter(cfg.UploadRateLimit, cfg.UploadRateWindow)
	defer uploadLimiter.Stop()

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:        slog.Default(),
		HealthChecker: readDB,

		TokenVerifier:     tokenManager,
		Allowlist:         allowlist,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},
		GeneralLimiter: generalLimiter,
		UploadLimiter:  uploadLimiter,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		DocumentStore:  docStore,
		AssetStore:     assetStore,
		Validator:      validator,
		TenantResolver: tenantResolver,
		NewsService:    newsService,
		UploadMaxBytes: cfg.UploadMaxBytes,

		Seeder:      seeder,
		SeedEnabled: cfg.SeedEnabled,

		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
// DDLを発行するため書き込み用接続URLを使用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseWriteURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseWriteURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runSeed はサンプルコンテンツを投入して終了する。
// SEED_ENABLEDの値に関わらず実行できる（運用者が明示的に起動するため）。
func runSeed(cfg *config.Config) error {
	writeDB, err := database.Open(cfg.DatabaseWriteURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer writeDB.Close()

	if err := writeDB.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	docStore := store.NewPostgresDocumentStore(writeDB, writeDB, nil)
	validator := schema.NewValidator(security.NewContentSanitizer())
	seeder := seed.NewSeeder(docStore, validator, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	inserted, err := seeder.Run(ctx)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	slog.Info("seed completed", slog.Int("inserted", inserted))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
