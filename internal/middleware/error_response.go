package middleware

import (
	"net/http"
)

// ErrorWriter はミドルウェアが拒否したリクエストへの応答を書き込む関数。
// ルーターはHTMLのエラー画面を描画する実装を渡す。
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, message string)

// PlainTextErrorWriter はプレーンテキストで応答する ErrorWriter。
// ErrorWriter が指定されていない場合に使用する。
func PlainTextErrorWriter(w http.ResponseWriter, r *http.Request, status int, message string) {
	http.Error(w, message, status)
}

// WriteInternalServerError は内部サーバーエラーを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter, r *http.Request, errorWriter ErrorWriter) {
	orPlainText(errorWriter)(w, r, http.StatusInternalServerError, "Something went wrong. Please try again later.")
}

func orPlainText(ew ErrorWriter) ErrorWriter {
	if ew == nil {
		return PlainTextErrorWriter
	}
	return ew
}
