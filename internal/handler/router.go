package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/blogfront/internal/feed"
	"github.com/hitoshi/blogfront/internal/gate"
	"github.com/hitoshi/blogfront/internal/metrics"
	"github.com/hitoshi/blogfront/internal/middleware"
	"github.com/hitoshi/blogfront/internal/session"
	"github.com/hitoshi/blogfront/internal/view"
)

// BlogAPI は全画面が利用するAPIクライアントのインターフェース。
// *blogapi.Client がこれを満たす。
type BlogAPI interface {
	PostServiceInterface
	AuthServiceInterface
	AdminServiceInterface
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 画面
	BlogAPI   BlogAPI
	Renderer  *view.Renderer
	SiteTitle string
	BaseURL   string

	// ミドルウェア依存
	Logger            *slog.Logger
	Cookie            session.CookieConfig
	CORSAllowedOrigin string
	RateLimit         middleware.RateLimiterConfig // ゼロ値の場合はデフォルト設定

	// メトリクス（nilの場合は記録しない・公開しない）
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer
}

// NewRouter は全画面のルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Session → Logging → Recovery → SecurityHeaders → RateLimit(General) → CSRF
//
// /health と /metrics はセッション以降のミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pages := NewPages(deps.Renderer, deps.SiteTitle, deps.Cookie)

	rateLimit := deps.RateLimit
	if rateLimit.GeneralRate == 0 {
		rateLimit = middleware.DefaultRateLimiterConfig()
	}
	rateLimit.ErrorWriter = pages.Error
	limiter := middleware.NewRateLimiter(rateLimit, deps.Metrics)

	postHandler := NewPostHandler(deps.BlogAPI, pages)
	authHandler := NewAuthHandler(deps.BlogAPI, pages, deps.Metrics)
	adminHandler := NewAdminHandler(deps.BlogAPI, pages)
	feedHandler := NewFeedHandler(deps.BlogAPI, feed.Channel{
		Title:       deps.SiteTitle,
		BaseURL:     deps.BaseURL,
		Description: "Latest posts from " + deps.SiteTitle,
	})

	r := chi.NewRouter()
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(chimw.RealIP)

	r.NotFound(pages.NotFound)
	r.MethodNotAllowed(pages.MethodNotAllowed)

	// --- 運用向けのルート ---
	r.Get("/health", Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 画面 ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Cookie, deps.Metrics))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(middleware.NewRecoveryMiddleware(logger, pages.Error))
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(limiter.GeneralMiddleware())

		// RSSフィードは他サイトからの取得を許可する（CSRF不要）
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
			r.Get("/feed.xml", feedHandler.Feed)
			// プリフライトはCORSミドルウェアが応答する
			r.Options("/feed.xml", func(http.ResponseWriter, *http.Request) {})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{
				CookieSecure: deps.Cookie.Secure,
				CookieDomain: deps.Cookie.Domain,
				ErrorWriter:  pages.Error,
			}))

			r.Get("/", postHandler.Home)
			r.Get("/posts/{id}", postHandler.Show)

			// ログイン・登録の送信は専用のレート制限を追加
			r.Group(func(r chi.Router) {
				r.Use(limiter.AuthMiddleware())
				r.Get("/login", authHandler.LoginForm)
				r.Post("/login", authHandler.Login)
				r.Get("/register", authHandler.RegisterForm)
				r.Post("/register", authHandler.Register)
			})
			r.Post("/logout", authHandler.Logout)

			// 管理画面（トークンが必要）
			r.Route("/admin", func(r chi.Router) {
				r.Use(gate.Require(gate.ViewAdmin, http.HandlerFunc(adminHandler.Deny)))

				r.Get("/", adminHandler.Dashboard)
				r.Route("/posts", func(r chi.Router) {
					r.Get("/new", adminHandler.NewPost)
					r.Post("/new", adminHandler.CreatePost)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/edit", adminHandler.EditPost)
						r.Post("/edit", adminHandler.UpdatePost)
						r.Get("/delete", adminHandler.ConfirmDelete)
						r.Post("/delete", adminHandler.DeletePost)
					})
				})
			})
		})
	})

	return r
}
