// Package blogapi はリモートのブログHTTP APIのクライアントを提供する。
// 各操作はちょうど1回のHTTPリクエストに対応し、結果を Result に正規化して返す。
// クライアントはセッションやストレージを一切変更しない。
package blogapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxResponseSize はレスポンスボディの読み取り上限（5MB）。
const maxResponseSize = 5 << 20

// TokenSource は認証が必要な操作で使うトークンの取得元。
// session.Store がこれを満たす。
type TokenSource interface {
	Token() string
}

// MetricsRecorder はAPI呼び出しのメトリクス記録先。
type MetricsRecorder interface {
	RecordAPICall(operation, outcome string, statusCode int, duration time.Duration)
}

// Client はブログAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	metrics    MetricsRecorder
}

// NewClient はClientの新しいインスタンスを生成する。
// metricsがnilの場合はメトリクスを記録しない。
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger, metrics MetricsRecorder) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		metrics:    metrics,
	}
}

// operation はAPI操作1件分の定義。
type operation struct {
	name   string
	method string
	path   string
	auth   bool
}

// response はデコード前のレスポンス。
type response struct {
	status int
	body   []byte
	start  time.Time
}

// do はoperationを1回だけ送信する。リトライはしない。
// 失敗はここで記録し、成功時の記録は呼び出し側が complete で行う。
// 認証が必要でトークンが空の場合は送信せずに失敗を返す。
func (c *Client) do(ctx context.Context, op operation, tokens TokenSource, payload any) (*response, *Failure) {
	start := time.Now()

	// 1. 認証チェック（送信前）
	var token string
	if op.auth {
		if tokens != nil {
			token = tokens.Token()
		}
		if token == "" {
			f := &Failure{
				Kind:    FailureUnauthenticated,
				Message: "You need to be logged in to perform this action.",
			}
			c.logger.Warn("api request not dispatched without token",
				slog.String("operation", op.name),
			)
			c.record(op, f, 0, start)
			return nil, f
		}
	}

	// 2. リクエスト作成
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			f := &Failure{Kind: FailureDecode, Message: "Could not encode the request.", Err: err}
			c.record(op, f, 0, start)
			return nil, f
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, op.method, c.baseURL+op.path, body)
	if err != nil {
		f := &Failure{Kind: FailureTransport, Message: transportMessage, Err: fmt.Errorf("building request: %w", err)}
		c.record(op, f, 0, start)
		return nil, f
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// 3. 送信
	resp, err := c.httpClient.Do(req)
	if err != nil {
		f := &Failure{Kind: FailureTransport, Message: transportMessage, Err: err}
		c.logger.Error("api request failed",
			slog.String("operation", op.name),
			slog.String("error", err.Error()),
		)
		c.record(op, f, 0, start)
		return nil, f
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		f := &Failure{Kind: FailureTransport, Message: transportMessage, Err: fmt.Errorf("reading response body: %w", err)}
		c.logger.Error("api response read failed",
			slog.String("operation", op.name),
			slog.Int("status", resp.StatusCode),
			slog.String("error", err.Error()),
		)
		c.record(op, f, resp.StatusCode, start)
		return nil, f
	}

	// 4. ステータスチェック
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f := &Failure{
			Kind:       FailureServer,
			StatusCode: resp.StatusCode,
			Message:    serverMessage(resp.StatusCode, raw),
		}
		level := slog.LevelWarn
		if resp.StatusCode >= 500 {
			level = slog.LevelError
		}
		c.logger.Log(ctx, level, "api returned error status",
			slog.String("operation", op.name),
			slog.Int("status", resp.StatusCode),
			slog.String("message", f.Message),
		)
		c.record(op, f, resp.StatusCode, start)
		return nil, f
	}

	return &response{status: resp.StatusCode, body: raw, start: start}, nil
}

// complete は送信に成功したリクエストの最終的な結果を記録する。
func (c *Client) complete(op operation, resp *response, f *Failure) {
	c.record(op, f, resp.status, resp.start)
}

func (c *Client) record(op operation, f *Failure, status int, start time.Time) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	if f != nil {
		outcome = string(f.Kind)
	}
	c.metrics.RecordAPICall(op.name, outcome, status, time.Since(start))
}

// errorBody はエラーレスポンスの {message} 形式。
// message は文字列または文字列配列のどちらも受け付ける。
type errorBody struct {
	Message json.RawMessage `json:"message"`
}

// serverMessage はエラーレスポンスからユーザー向けメッセージを取り出す。
// 取り出せない場合はステータステキストを返す。
func serverMessage(status int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Message) > 0 {
		var s string
		if err := json.Unmarshal(eb.Message, &s); err == nil && strings.TrimSpace(s) != "" {
			return s
		}
		var list []string
		if err := json.Unmarshal(eb.Message, &list); err == nil && len(list) > 0 {
			return strings.Join(list, "; ")
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("Request failed with status %d", status)
}

// errSchema はレスポンスが期待するスキーマを満たさない場合のエラー。
var errSchema = errors.New("response does not match the expected schema")

// decode はレスポンスボディをTにデコードし、checkで検証する。
// 不一致は失敗として扱う（fail closed）。
func decode[T any](c *Client, op operation, resp *response, check func(T) error) Result[T] {
	var v T
	err := json.Unmarshal(resp.body, &v)
	if err == nil && check != nil {
		err = check(v)
	}
	if err != nil {
		f := &Failure{
			Kind:       FailureDecode,
			StatusCode: resp.status,
			Message:    "The server returned an unexpected response.",
			Err:        fmt.Errorf("%w: %v", errSchema, err),
		}
		c.logger.Error("api response decode failed",
			slog.String("operation", op.name),
			slog.Int("status", resp.status),
			slog.String("error", err.Error()),
		)
		c.complete(op, resp, f)
		return failed[T](f)
	}
	c.complete(op, resp, nil)
	return success(v, resp.status)
}
