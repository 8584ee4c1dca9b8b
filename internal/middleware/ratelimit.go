package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// レート制限の種別。ログとメトリクスのラベルに使う。
const (
	limitTypeGeneral = "general"
	limitTypeAuth    = "auth"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // 全リクエストのレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // 全リクエストのバーストサイズ
	AuthRate        rate.Limit    // ログイン・登録送信のレート（req/sec）。10/60
	AuthBurst       int           // ログイン・登録送信のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
	ErrorWriter     ErrorWriter
}

// デフォルトの1分あたりのリクエスト数。
const (
	defaultGeneralPerMinute = 120
	defaultAuthPerMinute    = 10
)

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 全リクエスト 120 req/min/client、ログイン・登録送信 10 req/min/client
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(defaultGeneralPerMinute, defaultAuthPerMinute)
}

// NewRateLimiterConfig は1分あたりのリクエスト数から設定を生成する。
// 0以下の値はデフォルト値に置き換える。
func NewRateLimiterConfig(generalPerMinute, authPerMinute int) RateLimiterConfig {
	if generalPerMinute <= 0 {
		generalPerMinute = defaultGeneralPerMinute
	}
	if authPerMinute <= 0 {
		authPerMinute = defaultAuthPerMinute
	}
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMinute) / 60.0),
		GeneralBurst:    generalPerMinute,
		AuthRate:        rate.Limit(float64(authPerMinute) / 60.0),
		AuthBurst:       authPerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// RateLimitRecorder はレート制限による拒否の記録先。
type RateLimitRecorder interface {
	RecordRateLimited(limitType string)
}

// RateLimiter はクライアント（IPアドレス）ごとのレート制限を管理する。
// 全リクエストのレート制限と、ログイン・登録送信のレート制限の2種類を提供する。
// リミッターは最終アクセスから CleanupInterval の2倍で期限切れになる。
type RateLimiter struct {
	config   RateLimiterConfig
	recorder RateLimitRecorder

	general *cache.Cache
	auth    *cache.Cache
}

// NewRateLimiter は新しいRateLimiterを生成する。
// 期限切れエントリのクリーンアップは go-cache のジャニターが行う。
func NewRateLimiter(config RateLimiterConfig, recorder RateLimitRecorder) *RateLimiter {
	ttl := config.CleanupInterval * 2
	return &RateLimiter{
		config:   config,
		recorder: recorder,
		general:  cache.New(ttl, config.CleanupInterval),
		auth:     cache.New(ttl, config.CleanupInterval),
	}
}

// GeneralMiddleware は全リクエストに対するレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general, limitTypeGeneral, rl.config.GeneralRate, rl.config.GeneralBurst)
}

// AuthMiddleware はログイン・登録の送信に対するレート制限ミドルウェアを返す。
// 全リクエストのレート制限とは独立に動作する。安全なメソッドは制限しない。
func (rl *RateLimiter) AuthMiddleware() func(next http.Handler) http.Handler {
	limit := rl.middleware(rl.auth, limitTypeAuth, rl.config.AuthRate, rl.config.AuthBurst)
	return func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されている全リクエスト用リミッターのエントリ数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.ItemCount()
}

// AuthLimiterCount は現在管理されているログイン・登録用リミッターのエントリ数を返す。
func (rl *RateLimiter) AuthLimiterCount() int {
	return rl.auth.ItemCount()
}

func (rl *RateLimiter) middleware(store *cache.Cache, limitType string, r rate.Limit, burst int) func(next http.Handler) http.Handler {
	errorWriter := orPlainText(rl.config.ErrorWriter)
	ttl := rl.config.CleanupInterval * 2

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			client := clientKey(req)
			limiter := getOrCreateLimiter(store, client, r, burst, ttl)

			if !limiter.Allow() {
				slog.Warn("rate limit exceeded",
					slog.String("client", client),
					slog.String("limit_type", limitType),
					slog.String("request_id", RequestIDFromContext(req.Context())),
				)
				if rl.recorder != nil {
					rl.recorder.RecordRateLimited(limitType)
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(r)))
				errorWriter(w, req, http.StatusTooManyRequests, "Too many requests. Please try again later.")
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}

// getOrCreateLimiter はクライアントのリミッターを取得または作成し、有効期限を延長する。
func getOrCreateLimiter(store *cache.Cache, key string, r rate.Limit, burst int, ttl time.Duration) *rate.Limiter {
	if v, ok := store.Get(key); ok {
		limiter := v.(*rate.Limiter)
		store.Set(key, limiter, ttl)
		return limiter
	}

	limiter := rate.NewLimiter(r, burst)
	// 同時に作成された場合は先に登録されたものを使う
	if err := store.Add(key, limiter, ttl); err != nil {
		if v, ok := store.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

// clientKey はレート制限のキーとなるクライアントのIPアドレスを返す。
// chiのRealIPミドルウェアの後に配置すると、プロキシ経由でも元のIPになる。
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// retryAfterSeconds はトークンが1つ補充されるまでの推定秒数を返す。
func retryAfterSeconds(r rate.Limit) int {
	if r <= 0 {
		return 60
	}
	sec := int(math.Ceil(1.0 / float64(r)))
	if sec < 1 {
		sec = 1
	}
	return sec
}
