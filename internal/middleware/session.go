// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogfront/internal/session"
)

// SessionEventRecorder はセッションイベントの記録先。
type SessionEventRecorder interface {
	RecordSessionEvent(event string)
}

// sessionExpired は期限切れのトークンを破棄したときのイベント名。
const sessionExpired = "expired"

// NewSessionMiddleware はリクエストごとに session.Store を生成し、
// authToken Cookieから復元してコンテキストに注入するミドルウェアを返す。
// Cookieがない、または期限切れの場合は未ログインのまま次へ渡す。拒否はしない。
func NewSessionMiddleware(config session.CookieConfig, recorder SessionEventRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			storage := session.NewCookieStorage(w, r, config)
			store := session.NewStore(storage)

			_, hadCookie := storage.Get(session.StorageKey)
			store.Hydrate()

			if hadCookie && !store.Authenticated() {
				slog.Info("expired session discarded",
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestIDFromContext(r.Context())),
				)
				if recorder != nil {
					recorder.RecordSessionEvent(sessionExpired)
				}
			}

			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), store)))
		})
	}
}
