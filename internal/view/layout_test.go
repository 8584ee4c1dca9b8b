package view

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/blogfront/internal/gate"
	"github.com/hitoshi/blogfront/internal/session"
)

func hasAdmin(items []gate.NavItem) bool {
	for _, item := range items {
		if item.View == gate.ViewAdmin {
			return true
		}
	}
	return false
}

func TestLayout_ReevaluatesOnTokenChange(t *testing.T) {
	store := session.NewStore(session.NewMemoryStorage())
	l := NewLayout("Blog", store)
	defer l.Close()

	if l.Authenticated() || hasAdmin(l.Nav()) {
		t.Fatal("未ログインでAdminが表示されている")
	}

	store.SetToken("abc123")
	if !l.Authenticated() || !hasAdmin(l.Nav()) {
		t.Error("ログイン後にAdminが表示されていない")
	}

	store.Clear()
	if l.Authenticated() || hasAdmin(l.Nav()) {
		t.Error("ログアウト後もAdminが表示されている")
	}
}

func TestLayout_UsernameFromClaims(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      "7",
		"username": "maria",
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	store := session.NewStore(session.NewMemoryStorage())
	store.SetToken(tok)
	l := NewLayout("Blog", store)
	defer l.Close()

	if got := l.Username(); got != "maria" {
		t.Errorf("Username() = %q, want %q", got, "maria")
	}
}

func TestLayout_OpaqueTokenHasNoUsername(t *testing.T) {
	store := session.NewStore(session.NewMemoryStorage())
	store.SetToken("opaque")
	l := NewLayout("Blog", store)
	defer l.Close()

	if !l.Authenticated() {
		t.Error("Authenticated() = false for opaque token")
	}
	if l.Username() != "" {
		t.Errorf("Username() = %q, want empty", l.Username())
	}
}

func TestLayout_CloseStopsUpdates(t *testing.T) {
	store := session.NewStore(session.NewMemoryStorage())
	l := NewLayout("Blog", store)

	l.Close()
	store.SetToken("abc123")

	if l.Authenticated() {
		t.Error("購読解除後に状態が更新された")
	}
}

func TestLayout_NilStore(t *testing.T) {
	l := NewLayout("Blog", nil)
	defer l.Close()

	if l.Authenticated() || hasAdmin(l.Nav()) {
		t.Error("storeなしで認証済みになっている")
	}
	if l.SiteTitle() != "Blog" {
		t.Errorf("SiteTitle() = %q", l.SiteTitle())
	}
}
