// Package handler はブログのフロントエンド画面のHTTPハンドラーを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogfront/internal/blogapi"
	"github.com/hitoshi/blogfront/internal/middleware"
	"github.com/hitoshi/blogfront/internal/session"
	"github.com/hitoshi/blogfront/internal/view"
)

// Pages は全画面に共通する描画処理をまとめる。
// レイアウト、通知、CSRFトークンをリクエストから組み立てて Renderer に渡す。
type Pages struct {
	renderer  *view.Renderer
	siteTitle string
	cookie    session.CookieConfig
}

// NewPages はPagesを生成する。cookie は通知Cookieの属性に使う。
func NewPages(renderer *view.Renderer, siteTitle string, cookie session.CookieConfig) *Pages {
	return &Pages{renderer: renderer, siteTitle: siteTitle, cookie: cookie}
}

// Notify はリダイレクト先の画面で表示する通知を設定する。
func (p *Pages) Notify(w http.ResponseWriter, n view.Notice) {
	view.SetNotice(w, p.cookie, n)
}

// Render は画面を描画する。前の画面から引き継いだ通知があれば表示する。
func (p *Pages) Render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	p.RenderWithNotice(w, r, status, page, title, data, nil)
}

// RenderWithNotice は notice を表示して画面を描画する。
// 引き継いだ通知があれば notice より先に表示する。
func (p *Pages) RenderWithNotice(w http.ResponseWriter, r *http.Request, status int, page, title string, data any, notice *view.Notice) {
	var notices []view.Notice
	if flashed := view.PopNotice(w, r, p.cookie); flashed != nil {
		notices = append(notices, *flashed)
	}
	if notice != nil {
		notices = append(notices, *notice)
	}

	store, _ := session.FromContext(r.Context())
	layout := view.NewLayout(p.siteTitle, store)
	defer layout.Close()

	p.renderer.Render(w, status, page, view.Page{
		Title:     title,
		Layout:    layout,
		Notices:   notices,
		CSRFToken: middleware.CSRFToken(r.Context()),
		Data:      data,
	})
}

// Error はエラー画面を描画する。middleware.ErrorWriter として使える。
func (p *Pages) Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	store, _ := session.FromContext(r.Context())
	layout := view.NewLayout(p.siteTitle, store)
	defer layout.Close()

	p.renderer.RenderError(w, status, message, view.Page{
		Layout:    layout,
		CSRFToken: middleware.CSRFToken(r.Context()),
	})
}

// NotFound は404画面を描画する。
func (p *Pages) NotFound(w http.ResponseWriter, r *http.Request) {
	p.Error(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
}

// MethodNotAllowed は405画面を描画する。
func (p *Pages) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	p.Error(w, r, http.StatusMethodNotAllowed, "This action is not allowed here.")
}

// failureStatus はAPIの失敗を画面のステータスコードに変換する。
// サーバーが返したステータスはそのまま使い、応答がない場合は502とする。
func failureStatus(f *blogapi.Failure) int {
	if f.Kind == blogapi.FailureServer && f.HasStatus() {
		return f.StatusCode
	}
	if f.Kind == blogapi.FailureUnauthenticated {
		return http.StatusUnauthorized
	}
	return http.StatusBadGateway
}

// sessionFrom はリクエストの session.Store を返す。
// セッションミドルウェアを通過していない場合は未ログインのストアを返す。
func sessionFrom(r *http.Request) *session.Store {
	if store, ok := session.FromContext(r.Context()); ok {
		return store
	}
	return session.NewStore(session.NewMemoryStorage())
}

// redirect は303で遷移させる。フォーム送信後の画面遷移に使う。
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func logAttrs(r *http.Request) []any {
	return []any{
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	}
}
