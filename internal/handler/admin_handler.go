package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/blogfront/internal/blogapi"
	"github.com/hitoshi/blogfront/internal/gate"
	"github.com/hitoshi/blogfront/internal/model"
	"github.com/hitoshi/blogfront/internal/session"
	"github.com/hitoshi/blogfront/internal/validation"
	"github.com/hitoshi/blogfront/internal/view"
)

// 管理画面の通知メッセージ。
const (
	loginRequiredMessage  = "You need to be logged in to access this page"
	sessionRejectedNotice = "Your session is no longer valid. Please log in again."

	postCreatedMessage = "Post created successfully"
	postUpdatedMessage = "Post updated successfully"
	postDeletedMessage = "Post deleted successfully"

	postCreateFailedPrefix = "Failed to create post: "
	postUpdateFailedPrefix = "Failed to update post: "
	postDeleteFailedPrefix = "Failed to delete post: "
)

const adminPath = "/admin"

// AdminServiceInterface は管理画面ハンドラーが必要とするAPIクライアントのインターフェース。
type AdminServiceInterface interface {
	ListPosts(ctx context.Context) blogapi.Result[[]model.Post]
	GetPost(ctx context.Context, id int64) blogapi.Result[model.Post]
	ListUsers(ctx context.Context, tokens blogapi.TokenSource) blogapi.Result[[]model.User]
	CreatePost(ctx context.Context, tokens blogapi.TokenSource, in model.PostInput) blogapi.Result[model.Post]
	UpdatePost(ctx context.Context, tokens blogapi.TokenSource, id int64, patch model.PostPatch) blogapi.Result[model.Post]
	DeletePost(ctx context.Context, tokens blogapi.TokenSource, id int64) blogapi.Result[struct{}]
}

// AdminHandler は管理画面（記事とユーザーの管理）のHTTPハンドラー。
// ルーターで gate.Require(gate.ViewAdmin) の後ろに配置する。
type AdminHandler struct {
	service AdminServiceInterface
	pages   *Pages
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface, pages *Pages) *AdminHandler {
	return &AdminHandler{service: service, pages: pages}
}

// Deny は未ログインで管理画面にアクセスしたリクエストをログイン画面へ遷移させる。
// gate.Require の deny に渡す。
func (h *AdminHandler) Deny(w http.ResponseWriter, r *http.Request) {
	slog.Info("admin access denied", logAttrs(r)...)
	h.pages.Notify(w, view.Notice{Level: view.NoticeError, Message: loginRequiredMessage})
	redirect(w, r, gate.LoginPath)
}

// Dashboard は記事とユーザーの一覧を表示する。
// 2つの一覧は並行して読み込み、それぞれ独立に反映する。片方の失敗はもう片方に影響しない。
// GET /admin
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	store := sessionFrom(r)
	data := view.AdminData{Posts: []model.Post{}, Users: []model.User{}}

	mount := view.NewMount(r.Context())
	ctx := mount.Detach()

	var g errgroup.Group
	g.Go(func() error {
		res := h.service.ListPosts(ctx)
		mount.Apply(func() {
			data.Posts = res.Data
			if !res.OK() {
				data.PostsError = "Failed to load posts: " + res.Failure.Message
			}
		})
		return nil
	})
	g.Go(func() error {
		res := h.service.ListUsers(ctx, store)
		mount.Apply(func() {
			data.Users = res.Data
			if !res.OK() {
				data.UsersError = "Failed to load users: " + res.Failure.Message
			}
		})
		return nil
	})
	_ = g.Wait()

	if !mount.Alive() {
		slog.Debug("admin dashboard abandoned by client", logAttrs(r)...)
		return
	}

	h.pages.Render(w, r, http.StatusOK, view.PageAdmin, "Admin", data)
}

// NewPost は記事の作成フォームを表示する。
// GET /admin/posts/new
func (h *AdminHandler) NewPost(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, view.PagePostForm, "New post", view.PostFormData{
		Action: "/admin/posts/new",
	})
}

// CreatePost は記事を作成する。著者はトークンのユーザー名とする。
// POST /admin/posts/new
func (h *AdminHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	form := view.PostFormData{
		Action:  "/admin/posts/new",
		Title:   strings.TrimSpace(r.PostFormValue("title")),
		Content: r.PostFormValue("content"),
	}
	if errs := validation.Post(form.Title, form.Content); !errs.Empty() {
		form.Errors = errs
		h.pages.Render(w, r, http.StatusUnprocessableEntity, view.PagePostForm, "New post", form)
		return
	}

	store := sessionFrom(r)
	res := h.service.CreatePost(r.Context(), store, model.PostInput{
		Title:   form.Title,
		Content: form.Content,
		Author:  author(store),
	})
	if !res.OK() {
		if h.rejected(w, r, store, res.Failure) {
			return
		}
		h.pages.RenderWithNotice(w, r, failureStatus(res.Failure), view.PagePostForm, "New post", form,
			&view.Notice{Level: view.NoticeError, Message: postCreateFailedPrefix + res.Failure.Message})
		return
	}

	h.pages.Notify(w, view.Notice{Level: view.NoticeSuccess, Message: postCreatedMessage})
	redirect(w, r, adminPath)
}

// EditPost は記事の編集フォームを表示する。
// GET /admin/posts/{id}/edit
func (h *AdminHandler) EditPost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	h.pages.Render(w, r, http.StatusOK, view.PagePostForm, "Edit post", view.PostFormData{
		Action:  editPath(post.ID),
		Title:   post.Title,
		Content: post.Content,
	})
}

// UpdatePost は記事のタイトルと本文を更新する。著者は変更しない。
// POST /admin/posts/{id}/edit
func (h *AdminHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		h.pages.NotFound(w, r)
		return
	}

	form := view.PostFormData{
		Action:  editPath(id),
		Title:   strings.TrimSpace(r.PostFormValue("title")),
		Content: r.PostFormValue("content"),
	}
	if errs := validation.Post(form.Title, form.Content); !errs.Empty() {
		form.Errors = errs
		h.pages.Render(w, r, http.StatusUnprocessableEntity, view.PagePostForm, "Edit post", form)
		return
	}

	store := sessionFrom(r)
	res := h.service.UpdatePost(r.Context(), store, id, model.PostPatch{
		Title:   &form.Title,
		Content: &form.Content,
	})
	if !res.OK() {
		if h.rejected(w, r, store, res.Failure) {
			return
		}
		h.pages.RenderWithNotice(w, r, failureStatus(res.Failure), view.PagePostForm, "Edit post", form,
			&view.Notice{Level: view.NoticeError, Message: postUpdateFailedPrefix + res.Failure.Message})
		return
	}

	h.pages.Notify(w, view.Notice{Level: view.NoticeSuccess, Message: postUpdatedMessage})
	redirect(w, r, adminPath)
}

// ConfirmDelete は記事削除の確認画面を表示する。
// GET /admin/posts/{id}/delete
func (h *AdminHandler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	h.pages.Render(w, r, http.StatusOK, view.PagePostDelete, "Delete post", view.PostDeleteData{Post: post})
}

// DeletePost は記事を削除して管理画面へ戻る。失敗も通知として管理画面に表示する。
// POST /admin/posts/{id}/delete
func (h *AdminHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		h.pages.NotFound(w, r)
		return
	}

	store := sessionFrom(r)
	res := h.service.DeletePost(r.Context(), store, id)
	if !res.OK() {
		if h.rejected(w, r, store, res.Failure) {
			return
		}
		h.pages.Notify(w, view.Notice{Level: view.NoticeError, Message: postDeleteFailedPrefix + res.Failure.Message})
		redirect(w, r, adminPath)
		return
	}

	h.pages.Notify(w, view.Notice{Level: view.NoticeSuccess, Message: postDeletedMessage})
	redirect(w, r, adminPath)
}

// loadPost は {id} の記事を取得する。失敗した場合はエラー画面を描画してfalseを返す。
func (h *AdminHandler) loadPost(w http.ResponseWriter, r *http.Request) (model.Post, bool) {
	id, ok := postID(r)
	if !ok {
		h.pages.NotFound(w, r)
		return model.Post{}, false
	}
	res := h.service.GetPost(r.Context(), id)
	if !res.OK() {
		h.pages.Error(w, r, failureStatus(res.Failure), res.Failure.Message)
		return model.Post{}, false
	}
	return res.Data, true
}

// rejected はサーバーがトークンを401で拒否した場合にセッションを破棄し、
// ログイン画面へ遷移させてtrueを返す。
func (h *AdminHandler) rejected(w http.ResponseWriter, r *http.Request, store *session.Store, f *blogapi.Failure) bool {
	if f.Kind != blogapi.FailureServer || f.StatusCode != http.StatusUnauthorized {
		return false
	}
	slog.Warn("api rejected session token", logAttrs(r)...)
	store.Clear()
	h.pages.Notify(w, view.Notice{Level: view.NoticeError, Message: sessionRejectedNotice})
	redirect(w, r, gate.LoginPath)
	return true
}

// author はトークンから読み取れるユーザー名を返す。読み取れない場合は subject を使う。
func author(store *session.Store) string {
	claims, ok := session.ParseClaims(store.Token())
	if !ok {
		return ""
	}
	if claims.Username != "" {
		return claims.Username
	}
	return claims.Subject
}

func editPath(id int64) string {
	return "/admin/posts/" + strconv.FormatInt(id, 10) + "/edit"
}
