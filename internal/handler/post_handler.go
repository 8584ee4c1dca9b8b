package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/blogfront/internal/blogapi"
	"github.com/hitoshi/blogfront/internal/model"
	"github.com/hitoshi/blogfront/internal/view"
)

// noSearchResultsMessage はキーワード検索の結果が空のときの通知。
const noSearchResultsMessage = "No posts found with the keyword provided."

// PostServiceInterface は記事閲覧ハンドラーが必要とするAPIクライアントのインターフェース。
type PostServiceInterface interface {
	ListPosts(ctx context.Context) blogapi.Result[[]model.Post]
	GetPost(ctx context.Context, id int64) blogapi.Result[model.Post]
	SearchPosts(ctx context.Context, keyword string) blogapi.Result[[]model.Post]
}

// PostHandler は記事の一覧・検索・詳細画面のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
	pages   *Pages
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface, pages *Pages) *PostHandler {
	return &PostHandler{service: service, pages: pages}
}

// Home は記事一覧を表示する。q が指定された場合はキーワード検索の結果も表示する。
// 読み込みに失敗した一覧は空として描画する。
// GET /
func (h *PostHandler) Home(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("q"))
	data := view.HomeData{
		Keyword:  keyword,
		Searched: keyword != "",
		Posts:    []model.Post{},
		Results:  []model.Post{},
	}

	mount := view.NewMount(r.Context())
	ctx := mount.Detach()

	// 一覧と検索は独立に読み込み、届いた順に反映する
	var g errgroup.Group
	g.Go(func() error {
		res := h.service.ListPosts(ctx)
		mount.Apply(func() { data.Posts = res.Data })
		return nil
	})
	if data.Searched {
		g.Go(func() error {
			res := h.service.SearchPosts(ctx, keyword)
			mount.Apply(func() { data.Results = res.Data })
			return nil
		})
	}
	_ = g.Wait()

	if !mount.Alive() {
		return
	}

	var notice *view.Notice
	if data.Searched && len(data.Results) == 0 {
		notice = &view.Notice{Level: view.NoticeInfo, Message: noSearchResultsMessage}
	}
	h.pages.RenderWithNotice(w, r, http.StatusOK, view.PageHome, "", data, notice)
}

// Show は記事の詳細を表示する。
// GET /posts/{id}
func (h *PostHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		h.pages.NotFound(w, r)
		return
	}

	res := h.service.GetPost(r.Context(), id)
	if !res.OK() {
		h.pages.Error(w, r, failureStatus(res.Failure), res.Failure.Message)
		return
	}

	h.pages.Render(w, r, http.StatusOK, view.PagePost, res.Data.Title, view.PostData{Post: res.Data})
}

// postID はURLパラメータ {id} を正の整数として解釈する。
func postID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
