package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/blogfront/internal/blogapi"
	"github.com/hitoshi/blogfront/internal/metrics"
	"github.com/hitoshi/blogfront/internal/model"
	"github.com/hitoshi/blogfront/internal/validation"
	"github.com/hitoshi/blogfront/internal/view"
)

// 認証まわりの通知メッセージ。
const (
	loginSucceededMessage    = "Login successful. Welcome back!"
	registerSucceededMessage = "Account created successfully. Please log in."
	logoutMessage            = "You have been logged out."
)

// AuthServiceInterface は認証ハンドラーが必要とするAPIクライアントのインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, cred model.Credentials) blogapi.Result[string]
	RegisterUser(ctx context.Context, u model.User) blogapi.Result[model.User]
}

// SessionEventRecorder はログイン・ログアウトなどのセッションイベントの記録先。
type SessionEventRecorder interface {
	RecordSessionEvent(event string)
}

// AuthHandler はログイン・ユーザー登録・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	pages    *Pages
	recorder SessionEventRecorder
}

// NewAuthHandler はAuthHandlerを生成する。recorder はnilでもよい。
func NewAuthHandler(service AuthServiceInterface, pages *Pages, recorder SessionEventRecorder) *AuthHandler {
	return &AuthHandler{service: service, pages: pages, recorder: recorder}
}

// LoginForm はログイン画面を表示する。
// GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, view.PageLogin, "Login", view.LoginData{})
}

// Login は認証情報を送信し、成功したらトークンをセッションに保存してトップへ遷移する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	cred := model.Credentials{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}

	// 1. 入力チェック（失敗時は送信しない）
	if errs := validation.Credentials(cred); !errs.Empty() {
		h.pages.Render(w, r, http.StatusUnprocessableEntity, view.PageLogin, "Login", view.LoginData{
			Username: cred.Username,
			Errors:   errs,
		})
		return
	}

	// 2. ログイン
	res := h.service.Login(r.Context(), cred)
	if !res.OK() {
		slog.Warn("login failed",
			append(logAttrs(r),
				slog.String("username", cred.Username),
				slog.String("kind", string(res.Failure.Kind)),
				slog.Int("status", res.Failure.StatusCode),
			)...,
		)
		h.pages.Render(w, r, failureStatus(res.Failure), view.PageLogin, "Login", view.LoginData{
			Username: cred.Username,
			Error:    res.Failure.Message,
		})
		return
	}

	// 3. セッションに保存（Cookieへの反映は Store が行う）
	sessionFrom(r).SetToken(res.Data)
	h.record(metrics.SessionLogin)

	h.pages.Notify(w, view.Notice{Level: view.NoticeSuccess, Message: loginSucceededMessage})
	redirect(w, r, "/")
}

// RegisterForm はユーザー登録画面を表示する。
// GET /register
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, view.PageRegister, "Sign Up", view.RegisterData{})
}

// Register はユーザーを登録し、成功したらログイン画面へ遷移する。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	u := model.User{
		Username:        strings.TrimSpace(r.PostFormValue("username")),
		Name:            strings.TrimSpace(r.PostFormValue("name")),
		CPF:             strings.TrimSpace(r.PostFormValue("cpf")),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}

	// 再表示用。パスワードはフォームに戻さない
	echo := u
	echo.Password, echo.ConfirmPassword = "", ""

	if errs := validation.Registration(u); !errs.Empty() {
		h.pages.Render(w, r, http.StatusUnprocessableEntity, view.PageRegister, "Sign Up", view.RegisterData{
			User:   echo,
			Errors: errs,
		})
		return
	}

	res := h.service.RegisterUser(r.Context(), u)
	if !res.OK() {
		slog.Warn("registration failed",
			append(logAttrs(r),
				slog.String("username", u.Username),
				slog.String("kind", string(res.Failure.Kind)),
				slog.Int("status", res.Failure.StatusCode),
			)...,
		)
		h.pages.Render(w, r, failureStatus(res.Failure), view.PageRegister, "Sign Up", view.RegisterData{
			User:  echo,
			Error: res.Failure.Message,
		})
		return
	}

	h.record(metrics.SessionRegister)
	h.pages.Notify(w, view.Notice{Level: view.NoticeSuccess, Message: registerSucceededMessage})
	redirect(w, r, "/login")
}

// Logout はセッションを破棄してログイン画面へ遷移する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	store := sessionFrom(r)
	if store.Authenticated() {
		h.record(metrics.SessionLogout)
	}
	store.Clear()

	h.pages.Notify(w, view.Notice{Level: view.NoticeInfo, Message: logoutMessage})
	redirect(w, r, "/login")
}

func (h *AuthHandler) record(event string) {
	if h.recorder != nil {
		h.recorder.RecordSessionEvent(event)
	}
}
