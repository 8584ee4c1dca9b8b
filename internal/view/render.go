// Package view はサーバーサイドで描画するHTML画面を提供する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/blogfront/internal/security"
	"github.com/hitoshi/blogfront/internal/textutil"
)

//go:embed templates/*.html
var templateFS embed.FS

// 画面名。templates/<name>.html に対応する。
const (
	PageHome       = "home"
	PagePost       = "post"
	PageLogin      = "login"
	PageRegister   = "register"
	PageAdmin      = "admin"
	PagePostForm   = "post_form"
	PagePostDelete = "post_delete"
	PageError      = "error"
)

var pages = []string{
	PageHome, PagePost, PageLogin, PageRegister,
	PageAdmin, PagePostForm, PagePostDelete, PageError,
}

// DateLayout は日時の表示形式。
const DateLayout = "02/01/2006, 15:04:05"

// Page はすべての画面に共通するテンプレートデータ。
type Page struct {
	Title     string
	Layout    *Layout
	Notices   []Notice // 表示順
	CSRFToken string
	Data      any
}

// ErrorData はエラー画面のデータ。
type ErrorData struct {
	Status     int
	StatusText string
	Message    string
}

// Renderer は埋め込みテンプレートから画面を描画する。
type Renderer struct {
	templates map[string]*template.Template
	logger    *slog.Logger
}

// NewRenderer は全画面のテンプレートを解析する。
// sanitizer は記事本文のHTMLを描画する際に使用する。
func NewRenderer(sanitizer security.Sanitizer, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	funcs := Funcs(sanitizer, time.Local)

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New("").Funcs(funcs).ParseFS(templateFS,
			"templates/base.html",
			"templates/"+page+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}
		templates[page] = t
	}

	return &Renderer{templates: templates, logger: logger}, nil
}

// Render は画面をバッファに描画してからステータスとともに書き出す。
// 描画に失敗した場合は500を返す。
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data Page) {
	t, ok := r.templates[page]
	if !ok {
		r.logger.Error("unknown page", slog.String("page", page))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		r.logger.Error("failed to render page",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// RenderError はエラー画面を描画する。
func (r *Renderer) RenderError(w http.ResponseWriter, status int, message string, data Page) {
	data.Title = http.StatusText(status)
	data.Data = ErrorData{
		Status:     status,
		StatusText: http.StatusText(status),
		Message:    message,
	}
	r.Render(w, status, PageError, data)
}

// Funcs はテンプレート関数を返す。
func Funcs(sanitizer security.Sanitizer, loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"linebreaks": Linebreaks,
		"sanitize": func(s string) template.HTML {
			return template.HTML(sanitizer.Sanitize(s))
		},
		"body": func(s string) template.HTML {
			if textutil.LooksLikeHTML(s) {
				return template.HTML(sanitizer.Sanitize(s))
			}
			return Linebreaks(s)
		},
		"excerpt": textutil.Excerpt,
		"date": func(s string) string {
			return FormatDate(s, loc)
		},
	}
}

// Linebreaks はプレーンテキストをエスケープし、空行で段落に、改行で<br>に変換する。
func Linebreaks(s string) template.HTML {
	s = template.HTMLEscapeString(strings.ReplaceAll(s, "\r\n", "\n"))

	paragraphs := strings.Split(s, "\n\n")
	var result []string

	for _, p := range paragraphs {
		if p = strings.TrimSpace(p); p != "" {
			p = strings.ReplaceAll(p, "\n", "<br>")
			result = append(result, "<p>"+p+"</p>")
		}
	}

	return template.HTML(strings.Join(result, "\n"))
}

// FormatDate はAPIの日時文字列を表示用に整形する。
// 空文字列は "N/A"、解釈できない値はそのまま返す。
func FormatDate(s string, loc *time.Location) string {
	if s == "" {
		return "N/A"
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DateLayout)
}
