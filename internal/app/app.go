package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/blogfront/internal/blogapi"
	"github.com/hitoshi/blogfront/internal/config"
	"github.com/hitoshi/blogfront/internal/handler"
	"github.com/hitoshi/blogfront/internal/logger"
	"github.com/hitoshi/blogfront/internal/metrics"
	"github.com/hitoshi/blogfront/internal/middleware"
	"github.com/hitoshi/blogfront/internal/security"
	"github.com/hitoshi/blogfront/internal/session"
	"github.com/hitoshi/blogfront/internal/view"
)

// Init はアプリケーションの初期化を行う。
// .env があれば環境変数に読み込み、Configを読み込んでJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .env の読み込み（既に設定済みの環境変数は上書きしない）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定のログレベルで再初期化
	l := logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, l, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, l, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	l.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	return runServe(cfg, l)
}

// NewServer は全依存関係をワイヤリングしたHTTPサーバーを返す。起動はしない。
func NewServer(cfg *config.Config, l *slog.Logger) (*http.Server, error) {
	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. APIクライアント（API_TIMEOUT が0の場合はタイムアウトなし）
	apiClient := blogapi.NewClient(
		cfg.APIBaseURL,
		&http.Client{Timeout: cfg.APITimeout},
		l,
		collector,
	)

	// 3. 画面
	renderer, err := view.NewRenderer(security.NewContentSanitizer(), l)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	// 4. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		BlogAPI:   apiClient,
		Renderer:  renderer,
		SiteTitle: cfg.SiteTitle,
		BaseURL:   cfg.BaseURL,

		Logger: l,
		Cookie: session.CookieConfig{
			Domain: cfg.CookieDomain,
			Secure: cfg.CookieSecure,
			MaxAge: cfg.SessionMaxAge,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimit:         middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),

		Metrics:  collector,
		Gatherer: reg,
	})

	return &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}, nil
}

// runServe はWebサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config, l *slog.Logger) error {
	server, err := NewServer(cfg, l)
	if err != nil {
		return err
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		l.Info("web server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	l.Info("shutting down web server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	l.Info("web server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	return checkHealth(&http.Client{Timeout: 5 * time.Second}, fmt.Sprintf("http://localhost:%s", port))
}

func checkHealth(client *http.Client, baseURL string) error {
	resp, err := client.Get(strings.TrimRight(baseURL, "/") + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
