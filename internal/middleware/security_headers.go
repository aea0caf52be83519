package middleware

import "net/http"

// assetCSP は全レスポンスに適用するContent-Security-Policy。
// このサーバーはJSON APIとアップロード済みアセットのみを配信するため
// スクリプト実行を全面的に禁止する。/assets/{id} で配信されるSVGに
// スクリプトが埋め込まれていても、このポリシーにより実行されない。
const assetCSP = "default-src 'none'; img-src 'self'; style-src 'unsafe-inline'"

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Security-Policy", assetCSP)
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			next.ServeHTTP(w, r)
		})
	}
}
