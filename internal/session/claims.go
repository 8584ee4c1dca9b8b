package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims はトークンから読み取れる表示用の情報。
// 署名は検証しない（検証はAPIサーバーの責務）。
type Claims struct {
	Subject   string
	Username  string
	ExpiresAt time.Time
}

// Expired はexpが設定されており、かつ過去であればtrueを返す。
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ParseClaims はJWT形式のトークンからクレームを取り出す。
// JWTとして解釈できない不透明なトークンの場合はfalseを返す。
func ParseClaims(token string) (Claims, bool) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, false
	}

	var c Claims
	if sub, err := mc.GetSubject(); err == nil {
		c.Subject = sub
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	for _, key := range []string{"username", "preferred_username", "name"} {
		if v, ok := mc[key].(string); ok && v != "" {
			c.Username = v
			break
		}
	}
	if c.Username == "" {
		c.Username = c.Subject
	}
	return c, true
}
