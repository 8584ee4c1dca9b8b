package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/blogfront/internal/blogapi"
	"github.com/hitoshi/blogfront/internal/metrics"
	"github.com/hitoshi/blogfront/internal/middleware"
	"github.com/hitoshi/blogfront/internal/model"
	"github.com/hitoshi/blogfront/internal/security"
	"github.com/hitoshi/blogfront/internal/session"
	"github.com/hitoshi/blogfront/internal/view"
)

// --- モック定義 ---

type mockBlogAPI struct {
	mu    sync.Mutex
	calls map[string]int

	listPostsFn    func(ctx context.Context) blogapi.Result[[]model.Post]
	getPostFn      func(ctx context.Context, id int64) blogapi.Result[model.Post]
	searchPostsFn  func(ctx context.Context, keyword string) blogapi.Result[[]model.Post]
	createPostFn   func(ctx context.Context, tokens blogapi.TokenSource, in model.PostInput) blogapi.Result[model.Post]
	updatePostFn   func(ctx context.Context, tokens blogapi.TokenSource, id int64, patch model.PostPatch) blogapi.Result[model.Post]
	deletePostFn   func(ctx context.Context, tokens blogapi.TokenSource, id int64) blogapi.Result[struct{}]
	registerUserFn func(ctx context.Context, u model.User) blogapi.Result[model.User]
	loginFn        func(ctx context.Context, cred model.Credentials) blogapi.Result[string]
	listUsersFn    func(ctx context.Context, tokens blogapi.TokenSource) blogapi.Result[[]model.User]
}

func (m *mockBlogAPI) called(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[op]++
}

func (m *mockBlogAPI) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *mockBlogAPI) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mockBlogAPI) ListPosts(ctx context.Context) blogapi.Result[[]model.Post] {
	m.called(blogapi.OpListPosts)
	if m.listPostsFn != nil {
		return m.listPostsFn(ctx)
	}
	return blogapi.Result[[]model.Post]{Data: []model.Post{}, StatusCode: http.StatusOK}
}

func (m *mockBlogAPI) GetPost(ctx context.Context, id int64) blogapi.Result[model.Post] {
	m.called(blogapi.OpGetPost)
	if m.getPostFn != nil {
		return m.getPostFn(ctx, id)
	}
	return blogapi.Result[model.Post]{Data: model.Post{ID: id, Title: "Post"}, StatusCode: http.StatusOK}
}

func (m *mockBlogAPI) SearchPosts(ctx context.Context, keyword string) blogapi.Result[[]model.Post] {
	m.called(blogapi.OpSearchPosts)
	if m.searchPostsFn != nil {
		return m.searchPostsFn(ctx, keyword)
	}
	return blogapi.Result[[]model.Post]{Data: []model.Post{}, StatusCode: http.StatusOK}
}

func (m *mockBlogAPI) CreatePost(ctx context.Context, tokens blogapi.TokenSource, in model.PostInput) blogapi.Result[model.Post] {
	m.called(blogapi.OpCreatePost)
	if m.createPostFn != nil {
		return m.createPostFn(ctx, tokens, in)
	}
	return blogapi.Result[model.Post]{StatusCode: http.StatusCreated}
}

func (m *mockBlogAPI) UpdatePost(ctx context.Context, tokens blogapi.TokenSource, id int64, patch model.PostPatch) blogapi.Result[model.Post] {
	m.called(blogapi.OpUpdatePost)
	if m.updatePostFn != nil {
		return m.updatePostFn(ctx, tokens, id, patch)
	}
	return blogapi.Result[model.Post]{StatusCode: http.StatusOK}
}

func (m *mockBlogAPI) DeletePost(ctx context.Context, tokens blogapi.TokenSource, id int64) blogapi.Result[struct{}] {
	m.called(blogapi.OpDeletePost)
	if m.deletePostFn != nil {
		return m.deletePostFn(ctx, tokens, id)
	}
	return blogapi.Result[struct{}]{StatusCode: http.StatusNoContent}
}

func (m *mockBlogAPI) RegisterUser(ctx context.Context, u model.User) blogapi.Result[model.User] {
	m.called(blogapi.OpRegisterUser)
	if m.registerUserFn != nil {
		return m.registerUserFn(ctx, u)
	}
	return blogapi.Result[model.User]{StatusCode: http.StatusCreated}
}

func (m *mockBlogAPI) Login(ctx context.Context, cred model.Credentials) blogapi.Result[string] {
	m.called(blogapi.OpLogin)
	if m.loginFn != nil {
		return m.loginFn(ctx, cred)
	}
	return blogapi.Result[string]{Data: "abc123", StatusCode: http.StatusOK}
}

func (m *mockBlogAPI) ListUsers(ctx context.Context, tokens blogapi.TokenSource) blogapi.Result[[]model.User] {
	m.called(blogapi.OpListUsers)
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, tokens)
	}
	return blogapi.Result[[]model.User]{Data: []model.User{}, StatusCode: http.StatusOK}
}

type mockMetrics struct {
	mu       sync.Mutex
	sessions []string
}

func (m *mockMetrics) RecordAPICall(operation, outcome string, statusCode int, duration time.Duration) {}

func (m *mockMetrics) RecordSessionEvent(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, event)
}

func (m *mockMetrics) RecordRateLimited(limitType string) {}

func (m *mockMetrics) events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sessions...)
}

// --- ヘルパー ---

const testCSRFToken = "test-csrf-token"

func newTestRouter(t *testing.T, api *mockBlogAPI, rec *mockMetrics) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	renderer, err := view.NewRenderer(security.NewContentSanitizer(), logger)
	if err != nil {
		t.Fatalf("NewRenderer がエラーを返した: %v", err)
	}

	deps := &RouterDeps{
		BlogAPI:           api,
		Renderer:          renderer,
		SiteTitle:         "Test Blog",
		BaseURL:           "http://blog.example.com",
		Logger:            logger,
		Cookie:            session.CookieConfig{MaxAge: 3600},
		CORSAllowedOrigin: "*",
	}
	if rec != nil {
		deps.Metrics = rec
	}
	return NewRouter(deps)
}

// get はGETリクエストを送信する。cookies はリクエストに付与する。
func get(h http.Handler, target string, cookies ...*http.Cookie) *http.Response {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Result()
}

// postForm はCSRFトークン付きでフォームを送信する。
func postForm(h http.Handler, target string, form url.Values, cookies ...*http.Cookie) *http.Response {
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", testCSRFToken)

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Result()
}

func parseHTML(t *testing.T, resp *http.Response) *goquery.Document {
	t.Helper()
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		t.Fatalf("HTMLの解析に失敗した: %v", err)
	}
	return doc
}

// findCookie はレスポンスで最後に設定された name のCookieを返す。
func findCookie(resp *http.Response, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func tokenCookie(token string) *http.Cookie {
	return &http.Cookie{Name: session.StorageKey, Value: token}
}

// jwtFor はユーザー名を含むJWTを生成する（署名はテスト用の鍵）。
func jwtFor(t *testing.T, username string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      "42",
		"username": username,
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("JWTの生成に失敗した: %v", err)
	}
	return token
}

// --- テスト ---

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t, &mockBlogAPI{}, nil)

	resp := get(h, "/health")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗した: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	collector.RecordSessionEvent(metrics.SessionLogin)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	renderer, err := view.NewRenderer(security.NewContentSanitizer(), logger)
	if err != nil {
		t.Fatalf("NewRenderer がエラーを返した: %v", err)
	}
	h := NewRouter(&RouterDeps{
		BlogAPI:  &mockBlogAPI{},
		Renderer: renderer,
		Logger:   logger,
		Metrics:  collector,
		Gatherer: reg,
	})

	resp := get(h, "/metrics")
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if !strings.Contains(string(body), "blogfront_session_events_total") {
		t.Error("メトリクスにセッションイベントが含まれていない")
	}
}

func TestRouter_MetricsNotExposedWithoutGatherer(t *testing.T) {
	h := newTestRouter(t, &mockBlogAPI{}, nil)

	resp := get(h, "/metrics")
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestRouter_UnknownRoute_RendersNotFoundPage(t *testing.T) {
	h := newTestRouter(t, &mockBlogAPI{}, nil)

	resp := get(h, "/no/such/page")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	doc := parseHTML(t, resp)
	if got := doc.Find("section.error h1").Text(); !strings.Contains(got, "404") {
		t.Errorf("エラー見出し = %q, 404 を含むべき", got)
	}
}

func TestRouter_SecurityHeadersAndRequestID(t *testing.T) {
	h := newTestRouter(t, &mockBlogAPI{}, nil)

	resp := get(h, "/")
	resp.Body.Close()

	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID ヘッダーが設定されていない")
	}
	if resp.Header.Get("Content-Security-Policy") == "" {
		t.Error("Content-Security-Policy ヘッダーが設定されていない")
	}
	if findCookie(resp, "csrf_token") == nil {
		t.Error("GETでCSRFトークンCookieが発行されていない")
	}
}

func TestRouter_PostWithoutCSRFToken_IsRejected(t *testing.T) {
	api := &mockBlogAPI{}
	h := newTestRouter(t, api, nil)

	form := url.Values{"username": {"alice"}, "password": {"secret1"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if api.total() != 0 {
		t.Errorf("API呼び出し回数 = %d, want 0", api.total())
	}
}

func TestRouter_NavigationFollowsSession(t *testing.T) {
	h := newTestRouter(t, &mockBlogAPI{}, nil)

	t.Run("未ログインでは管理画面のリンクを表示しない", func(t *testing.T) {
		doc := parseHTML(t, get(h, "/"))
		if doc.Find(`nav a[data-view="admin"]`).Length() != 0 {
			t.Error("未ログインで Admin リンクが表示されている")
		}
		if doc.Find("a.login").Length() != 1 {
			t.Error("Sign In リンクが表示されていない")
		}
	})

	t.Run("ログイン中は管理画面のリンクとユーザー名を表示する", func(t *testing.T) {
		doc := parseHTML(t, get(h, "/", tokenCookie(jwtFor(t, "alice"))))
		if doc.Find(`nav a[data-view="admin"]`).Length() != 1 {
			t.Error("ログイン中に Admin リンクが表示されていない")
		}
		if got := doc.Find(".session .username").Text(); got != "alice" {
			t.Errorf("username = %q, want %q", got, "alice")
		}
		if doc.Find("form.logout").Length() != 1 {
			t.Error("ログアウトフォームが表示されていない")
		}
	})
}

func TestRouter_ExpiredTokenIsDiscarded(t *testing.T) {
	rec := &mockMetrics{}
	h := newTestRouter(t, &mockBlogAPI{}, rec)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": "alice",
		"exp":      time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("JWTの生成に失敗した: %v", err)
	}

	resp := get(h, "/admin", tokenCookie(expired))
	resp.Body.Close()

	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusSeeOther)
	}
	c := findCookie(resp, session.StorageKey)
	if c == nil || c.MaxAge >= 0 {
		t.Errorf("期限切れのauthToken Cookieが削除されていない: %+v", c)
	}
	if got := rec.events(); len(got) != 1 || got[0] != metrics.SessionExpired {
		t.Errorf("session events = %v, want [%s]", got, metrics.SessionExpired)
	}
}

func TestRouter_AuthSubmitRateLimit_RendersErrorPage(t *testing.T) {
	api := &mockBlogAPI{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	renderer, err := view.NewRenderer(security.NewContentSanitizer(), logger)
	if err != nil {
		t.Fatalf("NewRenderer がエラーを返した: %v", err)
	}
	h := NewRouter(&RouterDeps{
		BlogAPI:   api,
		Renderer:  renderer,
		SiteTitle: "Test Blog",
		Logger:    logger,
		RateLimit: middleware.NewRateLimiterConfig(120, 1),
	})

	form := url.Values{"username": {"alice"}, "password": {"secret1"}}
	first := postForm(h, "/login", form)
	first.Body.Close()
	if first.StatusCode != http.StatusSeeOther {
		t.Fatalf("1回目: status = %d, want %d", first.StatusCode, http.StatusSeeOther)
	}

	second := postForm(h, "/login", form)
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("2回目: status = %d, want %d", second.StatusCode, http.StatusTooManyRequests)
	}
	if second.Header.Get("Retry-After") == "" {
		t.Error("Retry-After ヘッダーが設定されていない")
	}
	doc := parseHTML(t, second)
	if doc.Find("section.error").Length() != 1 {
		t.Error("レート制限がHTMLのエラー画面で描画されていない")
	}
	if n := api.count(blogapi.OpLogin); n != 1 {
		t.Errorf("Login 呼び出し回数 = %d, want 1", n)
	}

	// 画面の表示は送信用の制限を受けない
	resp := get(h, "/login")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /login: status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
