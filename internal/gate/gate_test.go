package gate

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/blogfront/internal/session"
)

func TestCanAccess_Admin(t *testing.T) {
	if CanAccess(ViewAdmin, "") {
		t.Error("CanAccess(admin, null) = true, want false")
	}
	if !CanAccess(ViewAdmin, "sometoken") {
		t.Error("CanAccess(admin, token) = false, want true")
	}
}

func TestCanAccess_PublicViews(t *testing.T) {
	for _, v := range []View{ViewHome, ViewPost, ViewLogin, ViewRegister} {
		if !CanAccess(v, "") {
			t.Errorf("CanAccess(%s, null) = false, want true", v)
		}
		if !CanAccess(v, "tok") {
			t.Errorf("CanAccess(%s, token) = false, want true", v)
		}
	}
}

func TestNav_HidesAdminWithoutToken(t *testing.T) {
	for _, item := range Nav("") {
		if item.View == ViewAdmin {
			t.Error("トークンなしでAdmin項目が表示されている")
		}
	}

	found := false
	for _, item := range Nav("tok") {
		if item.View == ViewAdmin && item.Href == "/admin" {
			found = true
		}
	}
	if !found {
		t.Error("トークンありでAdmin項目が表示されていない")
	}
}

func newGatedServer(deny http.Handler) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return Require(ViewAdmin, deny)(ok)
}

func redirectToLogin() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	})
}

func TestRequire_DeniesWithoutSession(t *testing.T) {
	h := newGatedServer(redirectToLogin())

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != LoginPath {
		t.Errorf("Location = %q, want %q", loc, LoginPath)
	}
}

func TestRequire_EvaluatesCurrentToken(t *testing.T) {
	h := newGatedServer(redirectToLogin())
	store := session.NewStore(session.NewMemoryStorage())

	serve := func() int {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req = req.WithContext(session.NewContext(req.Context(), store))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	if code := serve(); code != http.StatusSeeOther {
		t.Errorf("未ログイン: status = %d, want 303", code)
	}

	store.SetToken("abc123")
	if code := serve(); code != http.StatusOK {
		t.Errorf("ログイン後: status = %d, want 200", code)
	}

	store.Clear()
	if code := serve(); code != http.StatusSeeOther {
		t.Errorf("ログアウト後: status = %d, want 303", code)
	}
}
