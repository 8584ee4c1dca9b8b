// Package textutil は記事本文をテキストとして扱うための補助関数を提供する。
package textutil

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Ellipsis は Excerpt が切り詰めた末尾に付ける文字列。
const Ellipsis = "…"

// blockTags は終了時に空白を挟むブロック要素。
var blockTags = map[string]bool{
	"p": true, "br": true, "div": true, "li": true, "blockquote": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "hr": true,
}

// PlainText はHTMLからタグを除いたテキストを返す。
// script と style の中身は捨て、連続する空白は1つにまとめる。
// プレーンテキストを渡した場合は空白の正規化のみ行う。
func PlainText(s string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := tokenizer.TagName()
			name := string(tn)
			if tt == html.StartTagToken && (name == "script" || name == "style") {
				skip++
			}
			if blockTags[name] {
				b.WriteByte(' ')
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			name := string(tn)
			if (name == "script" || name == "style") && skip > 0 {
				skip--
			}
			if blockTags[name] {
				b.WriteByte(' ')
			}

		case html.TextToken:
			if skip == 0 {
				// Text() はエンティティをデコード済み
				b.Write(tokenizer.Text())
			}
		}
	}
}

// Excerpt は本文のプレーンテキストを最大 n 文字（ルーン数）に切り詰める。
// 切り詰めた場合は単語の途中で切らないようにし、末尾に Ellipsis を付ける。
// n が0以下の場合は空文字列を返す。
func Excerpt(s string, n int) string {
	if n <= 0 {
		return ""
	}
	text := PlainText(s)
	if utf8.RuneCountInString(text) <= n {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > 0 && runes[n] != ' ' {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + Ellipsis
}

// LooksLikeHTML は文字列がHTML要素を含むかどうかを返す。
// 本文をサニタイズして描画するか、改行を段落に変換して描画するかの判定に使う。
func LooksLikeHTML(s string) bool {
	if !strings.Contains(s, "<") {
		return false
	}
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			return true
		}
	}
}
