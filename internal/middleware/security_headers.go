package middleware

import "net/http"

// contentSecurityPolicy は描画するHTMLに適用するCSP。
// スクリプトは使用しない。記事本文のhttps画像のみ外部から読み込む。
const contentSecurityPolicy = "default-src 'self'; script-src 'none'; object-src 'none'; " +
	"img-src 'self' https:; style-src 'self'; base-uri 'self'; form-action 'self'; frame-ancestors 'none'"

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
			next.ServeHTTP(w, r)
		})
	}
}
