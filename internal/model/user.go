// Package model はブログAPIとやり取りするドメインモデルを定義する。
package model

// Credentials はログインフォームの入力値。送信処理の間だけ存在する。
type Credentials struct {
	Username        string `json:"username" validate:"notblank"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"-"`
}

// User はブログのユーザーを表す。
// 登録後はクライアントからは読み取り専用。
// validateタグは登録フォームの検証ルール（CPFは形式のみ）。
type User struct {
	ID              int64  `json:"id,omitempty"`
	Username        string `json:"username" validate:"notblank"`
	Name            string `json:"name" validate:"notblank"`
	CPF             string `json:"cpf" validate:"required,len=11,number"`
	Email           string `json:"email,omitempty" validate:"omitempty,email"`
	Password        string `json:"password,omitempty" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword,omitempty" validate:"eqfield=Password"`
}
