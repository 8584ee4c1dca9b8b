package blogapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/blogfront/internal/model"
)

// 操作名。ログとメトリクスのラベルに使う。
const (
	OpListPosts    = "list_posts"
	OpGetPost      = "get_post"
	OpSearchPosts  = "search_posts"
	OpCreatePost   = "create_post"
	OpUpdatePost   = "update_post"
	OpDeletePost   = "delete_post"
	OpRegisterUser = "register_user"
	OpLogin        = "login"
	OpListUsers    = "list_users"
)

// loginResponse は POST /user/signin の成功レスポンス。
type loginResponse struct {
	Token string `json:"token"`
}

// ListPosts は全記事を取得する。
// 失敗時も Data は空スライスになり、画面は空の一覧として描画できる。
func (c *Client) ListPosts(ctx context.Context) Result[[]model.Post] {
	op := operation{name: OpListPosts, method: http.MethodGet, path: "/post/all"}
	return listOrEmpty(decodeList(c, ctx, op, nil, checkPost))
}

// GetPost はIDを指定して記事を1件取得する。
func (c *Client) GetPost(ctx context.Context, id int64) Result[model.Post] {
	op := operation{name: OpGetPost, method: http.MethodGet, path: postPath(id)}
	resp, f := c.do(ctx, op, nil, nil)
	if f != nil {
		return failed[model.Post](f)
	}
	return decode(c, op, resp, checkPost)
}

// SearchPosts はキーワードに一致する記事を取得する。
// 失敗時も Data は空スライスになる。
func (c *Client) SearchPosts(ctx context.Context, keyword string) Result[[]model.Post] {
	op := operation{name: OpSearchPosts, method: http.MethodGet, path: "/post/wordkey/" + pathSegment(keyword)}
	return listOrEmpty(decodeList(c, ctx, op, nil, checkPost))
}

// CreatePost は記事を作成する。認証が必要。
func (c *Client) CreatePost(ctx context.Context, tokens TokenSource, in model.PostInput) Result[model.Post] {
	op := operation{name: OpCreatePost, method: http.MethodPost, path: "/post", auth: true}
	resp, f := c.do(ctx, op, tokens, in)
	if f != nil {
		return failed[model.Post](f)
	}
	return decodeOptional[model.Post](c, op, resp, nil)
}

// UpdatePost は記事を部分更新する。認証が必要。
func (c *Client) UpdatePost(ctx context.Context, tokens TokenSource, id int64, patch model.PostPatch) Result[model.Post] {
	op := operation{name: OpUpdatePost, method: http.MethodPut, path: postPath(id), auth: true}
	resp, f := c.do(ctx, op, tokens, patch)
	if f != nil {
		return failed[model.Post](f)
	}
	return decodeOptional[model.Post](c, op, resp, nil)
}

// DeletePost は記事を削除する。認証が必要。
// レスポンスボディは読み捨てる。
func (c *Client) DeletePost(ctx context.Context, tokens TokenSource, id int64) Result[struct{}] {
	op := operation{name: OpDeletePost, method: http.MethodDelete, path: postPath(id), auth: true}
	resp, f := c.do(ctx, op, tokens, nil)
	if f != nil {
		return failed[struct{}](f)
	}
	c.complete(op, resp, nil)
	return success(struct{}{}, resp.status)
}

// RegisterUser はユーザーを登録する。IDは送信しない。
func (c *Client) RegisterUser(ctx context.Context, u model.User) Result[model.User] {
	op := operation{name: OpRegisterUser, method: http.MethodPost, path: "/user"}
	u.ID = 0
	resp, f := c.do(ctx, op, nil, u)
	if f != nil {
		return failed[model.User](f)
	}
	res := decodeOptional[model.User](c, op, resp, nil)
	// パスワードは呼び出し側に残さない
	res.Data.Password, res.Data.ConfirmPassword = "", ""
	return res
}

// Login は認証情報を送信し、成功時はトークンを返す。
// セッションへの保存は呼び出し側の責務。
func (c *Client) Login(ctx context.Context, cred model.Credentials) Result[string] {
	op := operation{name: OpLogin, method: http.MethodPost, path: "/user/signin"}
	resp, f := c.do(ctx, op, nil, cred)
	if f != nil {
		return failed[string](f)
	}
	res := decode(c, op, resp, func(lr loginResponse) error {
		if lr.Token == "" {
			return errors.New("token is missing")
		}
		return nil
	})
	if !res.OK() {
		return failed[string](res.Failure)
	}
	return success(res.Data.Token, res.StatusCode)
}

// ListUsers は全ユーザーを取得する。管理者のトークンが必要。
// 失敗時も Data は空スライスになる。
func (c *Client) ListUsers(ctx context.Context, tokens TokenSource) Result[[]model.User] {
	op := operation{name: OpListUsers, method: http.MethodGet, path: "/user", auth: true}
	res := listOrEmpty(decodeList(c, ctx, op, tokens, checkUser))
	for i := range res.Data {
		res.Data[i].Password, res.Data[i].ConfirmPassword = "", ""
	}
	return res
}

// decodeList は一覧系の操作を送信し、各要素を検証する。
func decodeList[T any](c *Client, ctx context.Context, op operation, tokens TokenSource, check func(T) error) Result[[]T] {
	resp, f := c.do(ctx, op, tokens, nil)
	if f != nil {
		return failed[[]T](f)
	}
	return decode(c, op, resp, func(items []T) error {
		if items == nil {
			return errors.New("expected a JSON array")
		}
		for i, item := range items {
			if err := check(item); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		return nil
	})
}

// decodeOptional は空ボディを許容するデコード。作成・更新・登録のAPIは
// 実装によって本文を返さないことがあるため、その場合はゼロ値で成功とする。
// 本文がある場合はJSONオブジェクトとして解釈できなければ失敗とする。
func decodeOptional[T any](c *Client, op operation, resp *response, check func(T) error) Result[T] {
	if len(resp.body) == 0 {
		c.complete(op, resp, nil)
		var zero T
		return success(zero, resp.status)
	}
	return decode(c, op, resp, check)
}

// listOrEmpty は失敗時に空スライスを設定する。
func listOrEmpty[T any](res Result[[]T]) Result[[]T] {
	if res.Data == nil {
		res.Data = []T{}
	}
	return res
}

// pathSegment はパスの1セグメントとしてエスケープする。
// "." と ".." はプロキシ等で正規化されないよう %2E に置き換える。
func pathSegment(s string) string {
	if s == "." || s == ".." {
		return strings.Repeat("%2E", len(s))
	}
	return url.PathEscape(s)
}

func postPath(id int64) string {
	return "/post/" + strconv.FormatInt(id, 10)
}

func checkPost(p model.Post) error {
	if p.ID <= 0 {
		return errors.New("post id is missing")
	}
	if p.Title == "" {
		return errors.New("post title is missing")
	}
	return nil
}

func checkUser(u model.User) error {
	if u.Username == "" {
		return errors.New("username is missing")
	}
	return nil
}
