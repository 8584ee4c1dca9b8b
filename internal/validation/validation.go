// Package validation はフォーム送信前のクライアント側検証を提供する。
// 検証エラーはネットワークに到達させず、フィールド単位でフォームに表示する。
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/hitoshi/blogfront/internal/model"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 6

// CPFLength はCPFの桁数。
const CPFLength = 11

// cpfRules はCPFの形式ルール（ちょうど11桁の半角数字）。
const cpfRules = "len=11,number"

var (
	// ErrCPFLength はCPFの桁数が11でない場合のエラー。
	ErrCPFLength = errors.New("CPF must have exactly 11 digits")
	// ErrCPFDigits はCPFに数字以外が含まれる場合のエラー。
	ErrCPFDigits = errors.New("CPF must contain only digits")
)

// messages は「フィールド名.タグ」から表示メッセージへの対応。
var messages = map[string]string{
	"username.notblank":       "Username is required",
	"name.notblank":           "Name is required",
	"cpf.required":            "CPF is required",
	"cpf.len":                 ErrCPFLength.Error(),
	"cpf.number":              ErrCPFDigits.Error(),
	"email.email":             "Invalid email address",
	"password.required":       "Password is required",
	"password.min":            "Password must contain at least 6 characters",
	"confirmPassword.eqfield": "Passwords do not match",
	"title.notblank":          "Title is required",
	"content.notblank":        "Content is required",
}

// validate は全フォームで共有する。*validator.Validate は並行利用しても安全。
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 空白のみの入力は未入力として扱う
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	// エラーのフィールド名はフォームと同じJSON名にする
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// postFields は記事フォームの検証対象。
type postFields struct {
	Title   string `json:"title" validate:"notblank"`
	Content string `json:"content" validate:"notblank"`
}

// FieldErrors はフィールド名からエラーメッセージへの対応。
type FieldErrors map[string]string

// Add はフィールドにエラーが未登録の場合のみ追加する（最初のエラーを優先）。
func (fe FieldErrors) Add(field, message string) {
	if _, exists := fe[field]; !exists {
		fe[field] = message
	}
}

// Empty はエラーがない場合にtrueを返す。
func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// CPF は形式のみを検証する（ちょうど11桁の半角数字）。チェックディジットは検証しない。
func CPF(cpf string) error {
	var verrs validator.ValidationErrors
	if err := validate.Var(cpf, cpfRules); !errors.As(err, &verrs) {
		return err
	}
	if verrs[0].Tag() == "len" {
		return ErrCPFLength
	}
	return ErrCPFDigits
}

// Registration はユーザー登録フォームを検証する。
func Registration(u model.User) FieldErrors {
	return check(u)
}

// Credentials はログインフォームを検証する。
func Credentials(c model.Credentials) FieldErrors {
	return check(c)
}

// Post は記事フォームを検証する。
func Post(title, content string) FieldErrors {
	return check(postFields{Title: title, Content: content})
}

// check は構造体タグのルールで検証し、結果をFieldErrorsに変換する。
func check(s any) FieldErrors {
	fe := FieldErrors{}

	err := validate.Struct(s)
	if err == nil {
		return fe
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// タグ定義の誤りなど。フォーム全体のエラーとして表示する
		fe.Add("form", err.Error())
		return fe
	}
	for _, e := range verrs {
		msg, ok := messages[e.Field()+"."+e.Tag()]
		if !ok {
			msg = e.Error()
		}
		fe.Add(e.Field(), msg)
	}
	return fe
}
