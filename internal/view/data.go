package view

import (
	"github.com/hitoshi/blogfront/internal/model"
	"github.com/hitoshi/blogfront/internal/validation"
)

// HomeData はトップ画面のデータ。
type HomeData struct {
	Keyword  string
	Searched bool
	Posts    []model.Post
	Results  []model.Post
}

// PostData は記事詳細画面のデータ。
type PostData struct {
	Post model.Post
}

// LoginData はログイン画面のデータ。パスワードは再表示しない。
type LoginData struct {
	Username string
	Error    string
	Errors   validation.FieldErrors
}

// RegisterData はユーザー登録画面のデータ。
type RegisterData struct {
	User   model.User
	Error  string
	Errors validation.FieldErrors
}

// AdminData は管理画面のデータ。
// 記事とユーザーはそれぞれ独立に読み込まれ、片方の失敗はもう片方に影響しない。
type AdminData struct {
	Posts      []model.Post
	Users      []model.User
	PostsError string
	UsersError string
}

// PostFormData は記事の作成・編集画面のデータ。
type PostFormData struct {
	Action  string
	Title   string
	Content string
	Error   string
	Errors  validation.FieldErrors
}

// PostDeleteData は記事削除の確認画面のデータ。
type PostDeleteData struct {
	Post model.Post
}
