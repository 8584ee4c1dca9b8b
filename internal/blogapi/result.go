package blogapi

import (
	"fmt"
	"net/http"
)

// FailureKind は失敗の分類。
type FailureKind string

const (
	// FailureTransport はレスポンスを受け取れなかった失敗（ステータスコードなし）。
	FailureTransport FailureKind = "transport"
	// FailureServer はサーバーが2xx以外を返した失敗。
	FailureServer FailureKind = "server"
	// FailureDecode はレスポンスが期待するスキーマに一致しなかった失敗。
	FailureDecode FailureKind = "decode"
	// FailureUnauthenticated はトークンがないため送信しなかった失敗。
	FailureUnauthenticated FailureKind = "unauthenticated"
)

// transportMessage はトランスポート失敗時の汎用メッセージ。
const transportMessage = "Could not reach the server. Please try again later."

// Failure はAPI呼び出しの正規化された失敗。
// StatusCode が0の場合はステータスコードなしを表す。
type Failure struct {
	Kind       FailureKind
	StatusCode int
	Message    string
	Err        error
}

// Error はerrorインターフェースを実装する。
func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("%s failure (%d): %s", f.Kind, f.StatusCode, f.Message)
	}
	return fmt.Sprintf("%s failure: %s", f.Kind, f.Message)
}

// Unwrap は原因となったエラーを返す。
func (f *Failure) Unwrap() error {
	return f.Err
}

// HasStatus はサーバーからステータスコードを受け取ったかどうかを返す。
func (f *Failure) HasStatus() bool {
	return f.StatusCode != 0
}

// Unauthorized はサーバーが401/403を返した場合にtrueを返す。
func (f *Failure) Unauthorized() bool {
	return f.Kind == FailureUnauthenticated ||
		f.StatusCode == http.StatusUnauthorized || f.StatusCode == http.StatusForbidden
}

// Result はAPI操作の結果。Failure が nil なら成功、そうでなければ失敗を表す。
// 一覧系の操作は失敗時でも Data に空スライスを設定する。
type Result[T any] struct {
	Data       T
	StatusCode int
	Failure    *Failure
}

// OK は成功した場合にtrueを返す。
func (r Result[T]) OK() bool {
	return r.Failure == nil
}

// Err は失敗をerrorとして返す。成功時はnil。
func (r Result[T]) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

func success[T any](data T, status int) Result[T] {
	return Result[T]{Data: data, StatusCode: status}
}

func failed[T any](f *Failure) Result[T] {
	return Result[T]{StatusCode: f.StatusCode, Failure: f}
}
