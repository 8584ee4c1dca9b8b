// Package session はブラウザ単位の認証トークン（セッション）を管理する。
//
// Store はメモリ上のトークンと永続ストレージ（ブラウザCookie）の写しを一致させ、
// トークン変更時に購読者へ通知する。
package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// StorageKey は永続ストレージ上でトークンを保持するキー。
const StorageKey = "authToken"

// Storage はトークンを永続化するストレージのインターフェース。
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// Listener はトークン変更の通知を受け取る関数。
// 空文字列は未ログイン状態を表す。
type Listener func(token string)

// Store は認証状態の唯一の情報源。
// 空文字列のトークンは「セッションなし」を表す。
type Store struct {
	mu        sync.RWMutex
	token     string
	storage   Storage
	listeners map[int]Listener
	nextID    int
	now       func() time.Time
}

// NewStore は未ログイン状態のStoreを生成する。
func NewStore(storage Storage) *Store {
	return &Store{
		storage:   storage,
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
}

// Token は現在のトークンを返す。
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated はトークンを保持しているかどうかを返す。
func (s *Store) Authenticated() bool {
	return s.Token() != ""
}

// SetToken はトークンを更新し、永続ストレージへ常に反映する。
// 空文字列を渡すとストレージのエントリを削除する。
// 値が変化した場合のみ購読者へ通知する。
func (s *Store) SetToken(token string) {
	s.mu.Lock()
	changed := s.token != token
	s.token = token
	if token != "" {
		s.storage.Set(StorageKey, token)
	} else {
		s.storage.Remove(StorageKey)
	}
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if !changed {
		return
	}
	// 購読者はロック外で呼び出す（購読者からToken()を呼べるようにするため）
	for _, l := range listeners {
		l(token)
	}
}

// Clear はログアウト時に使用する。トークンを破棄し、ストレージのエントリも削除する。
func (s *Store) Clear() {
	s.SetToken("")
	s.storage.Remove(StorageKey)
}

// Hydrate は永続ストレージからトークンを読み込み、メモリ上の状態と一致させる。
// エントリがない、空である、または期限切れのJWTである場合は未ログインとして扱う。
func (s *Store) Hydrate() {
	token, ok := s.storage.Get(StorageKey)
	if !ok || token == "" {
		return
	}

	if claims, ok := ParseClaims(token); ok && claims.Expired(s.now()) {
		s.storage.Remove(StorageKey)
		return
	}

	s.SetToken(token)
}

// Subscribe はトークン変更の購読者を登録し、登録解除用の関数を返す。
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// snapshotListeners は登録順に並べた購読者のコピーを返す。呼び出し側でロックを保持すること。
func (s *Store) snapshotListeners() []Listener {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.listeners[id])
	}
	return out
}

type contextKey struct{}

// NewContext はStoreを格納したコンテキストを返す。
func NewContext(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext はコンテキストからStoreを取り出す。
func FromContext(ctx context.Context) (*Store, bool) {
	s, ok := ctx.Value(contextKey{}).(*Store)
	return s, ok && s != nil
}
