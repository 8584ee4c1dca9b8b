// Package feed は公開記事のRSS 2.0フィードを生成する。
package feed

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/blogfront/internal/model"
	"github.com/hitoshi/blogfront/internal/textutil"
)

// DefaultLimit はフィードに含める記事数の上限。
const DefaultLimit = 20

// excerptLength は各記事の説明文の最大文字数。
const excerptLength = 300

// Channel はフィード全体の情報。
type Channel struct {
	Title       string
	BaseURL     string
	Description string
	Limit       int
}

type rss struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	DC      string     `xml:"xmlns:dc,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	AtomLink      atomLink  `xml:"atom:link"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	GUID        rssGUID `xml:"guid"`
	Author      string  `xml:"dc:creator,omitempty"`
	Description string  `xml:"description"`
	PubDate     string  `xml:"pubDate,omitempty"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// Build は記事一覧からRSS 2.0のXMLを生成する。
// 記事は作成日時の新しい順に並べ、Limit件までに切り詰める。
// 作成日時が解釈できない記事は pubDate を省略して末尾に置く。
func Build(ch Channel, posts []model.Post) ([]byte, error) {
	base := strings.TrimRight(ch.BaseURL, "/")
	limit := ch.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	type dated struct {
		post model.Post
		at   time.Time
		ok   bool
	}
	sorted := make([]dated, 0, len(posts))
	for _, p := range posts {
		at, err := time.Parse(time.RFC3339, p.CreationDate)
		sorted = append(sorted, dated{post: p, at: at, ok: err == nil})
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ok != sorted[j].ok {
			return sorted[i].ok
		}
		return sorted[i].at.After(sorted[j].at)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	doc := rss{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		DC:      "http://purl.org/dc/elements/1.1/",
		Channel: rssChannel{
			Title:       ch.Title,
			Link:        base + "/",
			Description: ch.Description,
			AtomLink:    atomLink{Href: base + "/feed.xml", Rel: "self", Type: "application/rss+xml"},
			Items:       make([]rssItem, 0, len(sorted)),
		},
	}
	if doc.Channel.Description == "" {
		doc.Channel.Description = ch.Title
	}

	for _, d := range sorted {
		link := base + "/posts/" + strconv.FormatInt(d.post.ID, 10)
		item := rssItem{
			Title:       d.post.Title,
			Link:        link,
			GUID:        rssGUID{Value: link, IsPermaLink: true},
			Author:      d.post.Author,
			Description: textutil.Excerpt(d.post.Content, excerptLength),
		}
		if d.ok {
			item.PubDate = d.at.UTC().Format(time.RFC1123Z)
			if doc.Channel.LastBuildDate == "" {
				doc.Channel.LastBuildDate = item.PubDate
			}
		}
		doc.Channel.Items = append(doc.Channel.Items, item)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling rss: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
