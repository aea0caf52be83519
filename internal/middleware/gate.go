// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/estatebase/internal/model"
)

// SessionCookieName は管理者セッショントークンを保持するCookieの名前。
const SessionCookieName = "admin_session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// adminContextKey はリクエストコンテキストに管理者情報を格納するためのキー。
var adminContextKey = contextKey("admin_user")

// TokenVerifier はセッショントークンの検証に必要なインターフェース。
// auth.TokenManagerの部分集合として定義する。
type TokenVerifier interface {
	Verify(token string) (*model.AdminUser, error)
}

// AllowlistChecker は許可リスト判定に必要なインターフェース。
type AllowlistChecker interface {
	Contains(email string) bool
}

// AuthMetricsRecorder は認証拒否の計測に使用するインターフェース。
// metrics.Collectorの部分集合として定義する。
type AuthMetricsRecorder interface {
	RecordAuthDenial(reason string)
}

// NewAdminGateMiddleware は管理系エンドポイントの認証ゲートを返す。
// HTTP Only Cookieのセッショントークンを検証し、管理者情報を
// リクエストコンテキストに注入する。
//
// 拒否の区別:
//   - トークンの欠如・署名不正・期限切れ・メールクレーム欠落 → 401
//   - トークンは有効だがメールが許可リスト外 → 403（メールはログのみに記録）
// metricsはnilを許容する（計測なしで動作する）。
func NewAdminGateMiddleware(verifier TokenVerifier, allowlist AllowlistChecker, logger *slog.Logger, metrics AuthMetricsRecorder) func(next http.Handler) http.Handler {
	recordDenial := func(reason string) {
		if metrics != nil {
			metrics.RecordAuthDenial(reason)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				recordDenial("unauthenticated")
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			user, err := verifier.Verify(cookie.Value)
			if err != nil {
				logger.Debug("session token verification failed",
					slog.String("error", err.Error()),
				)
				recordDenial("unauthenticated")
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			if user.Email == "" {
				recordDenial("unauthenticated")
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			if !allowlist.Contains(user.Email) {
				logger.Warn("admin access denied: email not in allowlist",
					slog.String("email", user.Email),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				recordDenial("not_allowlisted")
				WriteErrorResponse(w, http.StatusForbidden, model.NewNotAllowlistedError())
				return
			}

			ctx := context.WithValue(r.Context(), adminContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminFromContext はリクエストコンテキストから管理者情報を取得する。
// 認証ゲートを通過したリクエストでのみ有効。
func AdminFromContext(ctx context.Context) (*model.AdminUser, error) {
	user, ok := ctx.Value(adminContextKey).(*model.AdminUser)
	if !ok || user == nil {
		return nil, fmt.Errorf("admin user not found in context")
	}
	return user, nil
}

// ContextWithAdmin はコンテキストに管理者情報を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAdmin(ctx context.Context, user *model.AdminUser) context.Context {
	return context.WithValue(ctx, adminContextKey, user)
}
