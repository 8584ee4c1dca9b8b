// Package gate はセッションの状態から画面へのアクセス可否を判定する。
package gate

import (
	"net/http"

	"github.com/hitoshi/blogfront/internal/session"
)

// View は画面の識別子。
type View string

const (
	ViewHome     View = "home"
	ViewPost     View = "post"
	ViewLogin    View = "login"
	ViewRegister View = "register"
	ViewAdmin    View = "admin"
)

// LoginPath は拒否されたときの遷移先。
const LoginPath = "/login"

// CanAccess はトークンの状態で view にアクセスできるかを返す。
// 管理画面のみトークンが必要で、それ以外の画面は常にアクセスできる。
func CanAccess(view View, token string) bool {
	if view == ViewAdmin {
		return token != ""
	}
	return true
}

// NavItem はナビゲーションの1項目。
type NavItem struct {
	Label string
	Href  string
	View  View
}

var navigation = []NavItem{
	{Label: "Home", Href: "/", View: ViewHome},
	{Label: "Admin", Href: "/admin", View: ViewAdmin},
}

// Nav はトークンの状態でアクセスできるナビゲーション項目を返す。
func Nav(token string) []NavItem {
	items := make([]NavItem, 0, len(navigation))
	for _, item := range navigation {
		if CanAccess(item.View, token) {
			items = append(items, item)
		}
	}
	return items
}

// Require は view へのアクセスをリクエストごとに判定するミドルウェアを返す。
// コンテキストにセッションがない場合は未認証として扱う。
// 拒否したリクエストは deny に渡す。
func Require(view View, deny http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			if store, ok := session.FromContext(r.Context()); ok {
				token = store.Token()
			}
			if !CanAccess(view, token) {
				deny.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
