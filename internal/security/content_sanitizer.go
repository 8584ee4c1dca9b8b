// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer はAPIから受け取った記事本文のHTMLをサニタイズする。
// 記事本文は他のユーザーが書いたものであり、そのまま描画するとXSSの経路になる。
// bluemondayの許可リストベースのポリシーで、安全なタグと属性のみを通過させる。
package security

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer はHTMLコンテンツのサニタイズ機能のインターフェース。
// テンプレート関数 sanitize から使用される。
type Sanitizer interface {
	// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
	// 空文字列の入力には空文字列を返す。同一入力に対して常に同一出力を返す。
	Sanitize(rawHTML string) string
}

// ContentSanitizer は記事本文用の Sanitizer 実装。
// ポリシーは生成後に変更しないため、複数のgoroutineから同時に使用できる。
type ContentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer は記事本文用のポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: p, br, hr, h2〜h4, ul, ol, li, blockquote, pre, code, strong, em, a, img
//   - script, iframe, style および全てのon*イベント属性は除去
//   - aのhref: 相対URLとhttp/https/mailto。外部リンクには target="_blank" と rel="noopener noreferrer"
//   - imgのsrc: httpsのみ
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "hr",
		"h2", "h3", "h4",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	// 記事から同じブログ内の別記事へリンクできるよう相対URLは許可する
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https", "mailto")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnFullyQualifiedLinks(true)
	p.RequireNoFollowOnFullyQualifiedLinks(true)

	p.AllowAttrs("alt").OnElements("img")
	p.AllowAttrs("src").Matching(httpsOnly).OnElements("img")

	return &ContentSanitizer{policy: p}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *ContentSanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return s.policy.Sanitize(rawHTML)
}

// httpsOnly はimgのsrcに指定できるURLのパターン。
var httpsOnly = regexp.MustCompile(`^https://[^\s/]+(/\S*)?$`)
