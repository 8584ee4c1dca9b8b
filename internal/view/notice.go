package view

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/blogfront/internal/session"
)

// NoticeCookieName は次の画面に表示する通知を保持するCookieの名前。
const NoticeCookieName = "notice"

// 通知の種類。
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
	NoticeInfo    = "info"
)

// Notice は画面上部に一度だけ表示する通知。
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// noticeMaxAge は通知Cookieの有効期間（秒）。
const noticeMaxAge = 60

// SetNotice はリダイレクト先で表示する通知をCookieに保存する。
// Secure/Domain はセッションCookieと同じ設定を使う。
func SetNotice(w http.ResponseWriter, config session.CookieConfig, n Notice) {
	b, err := json.Marshal(n)
	if err != nil {
		return
	}
	http.SetCookie(w, noticeCookie(config, base64.RawURLEncoding.EncodeToString(b), noticeMaxAge))
}

// PopNotice はCookieから通知を取り出し、Cookieを削除する。
// 壊れた値は通知なしとして扱う。
func PopNotice(w http.ResponseWriter, r *http.Request, config session.CookieConfig) *Notice {
	c, err := r.Cookie(NoticeCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, noticeCookie(config, "", -1))

	b, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var n Notice
	if err := json.Unmarshal(b, &n); err != nil || n.Message == "" {
		return nil
	}
	return &n
}

func noticeCookie(config session.CookieConfig, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     NoticeCookieName,
		Value:    value,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
