package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Remote API
	APIBaseURL string
	APITimeout time.Duration // 0はタイムアウトなし

	// Session
	SessionMaxAge int

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitAuth    int

	// Server
	ServerPort string
	BaseURL    string
	SiteTitle  string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS（/feed.xml 用）
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定、またはAPIのベースURLが不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.APIBaseURL = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("required environment variables are not set: [API_BASE_URL]")
	}
	if err := validateBaseURL(cfg.APIBaseURL); err != nil {
		return nil, fmt.Errorf("invalid API_BASE_URL: %w", err)
	}

	// Optional fields with defaults
	cfg.APITimeout = getEnvDuration("API_TIMEOUT", 0)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = strings.TrimRight(getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort), "/")
	cfg.SiteTitle = getEnvString("SITE_TITLE", "Blog")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	// 0以下は受け付けない
	var invalid []string
	for key, v := range map[string]int{
		"SESSION_MAX_AGE":    cfg.SessionMaxAge,
		"RATE_LIMIT_GENERAL": cfg.RateLimitGeneral,
		"RATE_LIMIT_AUTH":    cfg.RateLimitAuth,
	} {
		if v <= 0 {
			invalid = append(invalid, key)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, fmt.Errorf("environment variables must be positive integers: %v", invalid)
	}

	return cfg, nil
}

// validateBaseURL はhttp/httpsの絶対URLであることを確認する。
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is empty")
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
