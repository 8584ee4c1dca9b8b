package view

import (
	"sync"

	"github.com/hitoshi/blogfront/internal/gate"
	"github.com/hitoshi/blogfront/internal/session"
)

// Layout はヘッダーとナビゲーションの状態。
// session.Store を購読し、トークンが変わるたびにナビゲーションを再計算する。
type Layout struct {
	siteTitle string

	mu            sync.RWMutex
	authenticated bool
	username      string
	nav           []gate.NavItem

	unsubscribe func()
}

// NewLayout は store の現在のトークンで状態を計算し、以後の変更を購読する。
// store が nil の場合は未認証の状態で固定する。
func NewLayout(siteTitle string, store *session.Store) *Layout {
	l := &Layout{siteTitle: siteTitle, unsubscribe: func() {}}
	if store == nil {
		l.update("")
		return l
	}
	l.update(store.Token())
	l.unsubscribe = store.Subscribe(l.update)
	return l
}

func (l *Layout) update(token string) {
	var username string
	if token != "" {
		if claims, ok := session.ParseClaims(token); ok {
			username = claims.Username
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.authenticated = token != ""
	l.username = username
	l.nav = gate.Nav(token)
}

// Close は store の購読を解除する。
func (l *Layout) Close() {
	l.unsubscribe()
}

// SiteTitle はサイト名を返す。
func (l *Layout) SiteTitle() string {
	return l.siteTitle
}

// Authenticated はログイン中かどうかを返す。
func (l *Layout) Authenticated() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.authenticated
}

// Username はトークンから読み取れたユーザー名を返す。
func (l *Layout) Username() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.username
}

// Nav はアクセスできるナビゲーション項目を返す。
func (l *Layout) Nav() []gate.NavItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nav
}
