package session

import (
	"net/http"
	"sync"
)

// CookieConfig はトークンCookieの属性。
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge int // 秒
}

// CookieStorage は1リクエスト分のCookieをStorageとして扱う。
// 同一リクエスト内でSet/Removeした値は以降のGetに反映される。
type CookieStorage struct {
	w      http.ResponseWriter
	r      *http.Request
	config CookieConfig

	mu      sync.Mutex
	overlay map[string]*string // nilは削除済みを表す
}

// NewCookieStorage はリクエスト/レスポンスに紐づくCookieStorageを生成する。
func NewCookieStorage(w http.ResponseWriter, r *http.Request, config CookieConfig) *CookieStorage {
	return &CookieStorage{
		w:       w,
		r:       r,
		config:  config,
		overlay: make(map[string]*string),
	}
}

// Get はCookieの値を返す。
func (c *CookieStorage) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.overlay[key]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}

	cookie, err := c.r.Cookie(key)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Set はHTTP Only Cookieとして値を書き込む。
// ブラウザが同じ値を既に保持している場合は Set-Cookie を出力しない。
func (c *CookieStorage) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, touched := c.overlay[key]
	if touched && v != nil && *v == value {
		return
	}
	c.overlay[key] = &value
	if !touched {
		if cookie, err := c.r.Cookie(key); err == nil && cookie.Value == value {
			return
		}
	}

	http.SetCookie(c.w, &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		Domain:   c.config.Domain,
		MaxAge:   c.config.MaxAge,
		HttpOnly: true,
		Secure:   c.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Remove はCookieを失効させる。
// リクエストにCookieがなく、このリクエスト内でも設定していない場合は何もしない。
func (c *CookieStorage) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, touched := c.overlay[key]
	if touched && v == nil {
		return
	}
	if !touched {
		if _, err := c.r.Cookie(key); err != nil {
			return
		}
	}
	c.overlay[key] = nil

	http.SetCookie(c.w, &http.Cookie{
		Name:     key,
		Value:    "",
		Path:     "/",
		Domain:   c.config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// MemoryStorage はメモリ上のStorage実装。
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage は空のMemoryStorageを生成する。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStorage) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *MemoryStorage) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}
