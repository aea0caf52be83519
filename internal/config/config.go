package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	// DatabaseURL は読み取り用の接続URL。
	// DatabaseWriteURL は書き込み権限を持つ接続URL（未設定時はDatabaseURLを使用する）。
	DatabaseURL      string
	DatabaseWriteURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Admin
	// AdminAllowlist は管理APIにアクセスできるメールアドレスの集合。
	// 小文字化して保持し、プロセス稼働中は変更されない。
	AdminAllowlist []string

	// Tenant
	DefaultTenantDomain string

	// Seed
	SeedEnabled bool

	// Upload
	UploadMaxBytes   int64
	UploadRateLimit  int
	UploadRateWindow time.Duration

	// Rate Limit
	RateLimitGeneral int

	// News
	NewsFeedURL    string
	NewsRevalidate time.Duration
	NewsMaxBytes   int64

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は、欠けている名前をすべて列挙したエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.AdminAllowlist = parseAllowlist(os.Getenv("ADMIN_ALLOWLIST"))
	if len(cfg.AdminAllowlist) == 0 {
		missing = append(missing, "ADMIN_ALLOWLIST")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DatabaseWriteURL = getEnvString("DATABASE_WRITE_URL", cfg.DatabaseURL)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.DefaultTenantDomain = os.Getenv("DEFAULT_TENANT_DOMAIN")
	cfg.SeedEnabled = getEnvBool("SEED_ENABLED", false)
	cfg.UploadMaxBytes = getEnvInt64("UPLOAD_MAX_BYTES", 10*1024*1024)
	cfg.UploadRateLimit = getEnvInt("UPLOAD_RATE_LIMIT", 20)
	cfg.UploadRateWindow = time.Duration(getEnvInt("UPLOAD_RATE_WINDOW_MS", 60000)) * time.Millisecond
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.NewsFeedURL = os.Getenv("NEWS_FEED_URL")
	cfg.NewsRevalidate = getEnvDuration("NEWS_REVALIDATE", 5*time.Minute)
	cfg.NewsMaxBytes = getEnvInt64("NEWS_MAX_BYTES", 2*1024*1024)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// parseAllowlist はカンマ区切りのメールアドレスリストをパースする。
// 各要素はトリム・小文字化し、空要素は除外する。
func parseAllowlist(raw string) []string {
	if raw == "" {
		return nil
	}

	var emails []string
	for _, part := range strings.Split(raw, ",") {
		email := strings.ToLower(strings.TrimSpace(part))
		if email != "" {
			emails = append(emails, email)
		}
	}
	return emails
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
