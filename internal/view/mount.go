package view

import (
	"context"
	"sync"
)

// Mount はリクエストが生きている間だけ状態を更新するためのガード。
// 外部APIの呼び出しはリクエストのキャンセルと切り離して完了まで走らせ、
// その結果は Apply を通して反映する。クライアントが去った後に届いた結果は捨てる。
type Mount struct {
	ctx context.Context
	mu  sync.Mutex
}

// NewMount は ctx の生存期間に紐づく Mount を返す。
func NewMount(ctx context.Context) *Mount {
	return &Mount{ctx: ctx}
}

// Alive はリクエストがまだ有効かどうかを返す。
func (m *Mount) Alive() bool {
	return m.ctx.Err() == nil
}

// Apply はリクエストが有効な場合のみ fn を実行する。
// fn は互いに排他的に実行される。実行した場合はtrueを返す。
func (m *Mount) Apply(fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

// Detach はリクエストのキャンセルを引き継がない外部呼び出し用のコンテキストを返す。
func (m *Mount) Detach() context.Context {
	return context.WithoutCancel(m.ctx)
}
