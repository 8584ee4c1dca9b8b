package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogfront/internal/blogapi"
	"github.com/hitoshi/blogfront/internal/feed"
	"github.com/hitoshi/blogfront/internal/model"
)

// PostLister は記事一覧を取得するインターフェース。
type PostLister interface {
	ListPosts(ctx context.Context) blogapi.Result[[]model.Post]
}

// FeedHandler は記事一覧のRSSフィードを配信するHTTPハンドラー。
type FeedHandler struct {
	service PostLister
	channel feed.Channel
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(service PostLister, channel feed.Channel) *FeedHandler {
	return &FeedHandler{service: service, channel: channel}
}

// Feed はRSS 2.0フィードを返す。APIから取得できない場合は空のフィードを返す。
// GET /feed.xml
func (h *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	res := h.service.ListPosts(r.Context())

	body, err := feed.Build(h.channel, res.Data)
	if err != nil {
		slog.Error("failed to build feed", append(logAttrs(r), slog.String("error", err.Error()))...)
		http.Error(w, "failed to build feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
