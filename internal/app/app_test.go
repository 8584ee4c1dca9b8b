package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/blogfront/internal/config"
)

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://api.example.com/")
	t.Setenv("BASE_URL", "http://localhost:8080")
	t.Setenv("LOG_LEVEL", "debug")

	var buf bytes.Buffer
	cfg, l, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg == nil || l == nil {
		t.Fatal("expected non-nil config and logger")
	}
	if cfg.APIBaseURL != "http://api.example.com" {
		t.Errorf("APIBaseURL = %q, want %q", cfg.APIBaseURL, "http://api.example.com")
	}

	// グローバルロガーがJSON出力かつ設定のレベルになっていること
	slog.Default().Debug("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
	if entry["level"] != "DEBUG" {
		t.Errorf("level = %q, want %q", entry["level"], "DEBUG")
	}
}

func TestInit_WithMissingConfig_ReturnsError(t *testing.T) {
	t.Setenv("API_BASE_URL", "")

	var buf bytes.Buffer
	cfg, _, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for missing API_BASE_URL, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	t.Setenv("API_BASE_URL", "")

	var buf bytes.Buffer
	if err := Run(&buf, []string{"serve"}); err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

func testConfig(apiURL string) *config.Config {
	return &config.Config{
		APIBaseURL:        apiURL,
		SessionMaxAge:     3600,
		RateLimitGeneral:  120,
		RateLimitAuth:     10,
		ServerPort:        "0",
		BaseURL:           "http://blog.example.com",
		SiteTitle:         "Test Blog",
		CORSAllowedOrigin: "*",
		LogLevel:          "info",
	}
}

func TestNewServer_ServesPagesFromAPI(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/post/all" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"title":"Hello from API","content":"body","author":"alice"}]`))
	}))
	defer api.Close()

	server, err := NewServer(testConfig(api.URL), slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewServer がエラーを返した: %v", err)
	}
	if server.Addr != ":0" {
		t.Errorf("Addr = %q, want %q", server.Addr, ":0")
	}

	w := httptest.NewRecorder()
	server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "Hello from API") {
		t.Error("APIの記事がトップ画面に表示されていない")
	}

	// API呼び出しがメトリクスに記録されること
	w = httptest.NewRecorder()
	server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), `blogfront_api_calls_total{operation="list_posts",outcome="success"} 1`) {
		t.Errorf("メトリクスにAPI呼び出しが記録されていない:\n%s", w.Body.String())
	}
}

func TestCheckHealth(t *testing.T) {
	t.Run("200なら成功", func(t *testing.T) {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				http.NotFound(w, r)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer api.Close()

		if err := checkHealth(api.Client(), api.URL); err != nil {
			t.Errorf("checkHealth = %v, want nil", err)
		}
	})

	t.Run("200以外はエラー", func(t *testing.T) {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer api.Close()

		if err := checkHealth(api.Client(), api.URL); err == nil {
			t.Error("checkHealth = nil, want error")
		}
	})
}
