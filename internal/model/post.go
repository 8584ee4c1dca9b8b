package model

// Post はブログ記事を表す。
// ID と日時はサーバーが採番・設定する。日時はAPIが返す文字列のまま保持する。
type Post struct {
	ID           int64  `json:"id,omitempty"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	Author       string `json:"author"`
	CreationDate string `json:"creation_date,omitempty"`
	UpdateDate   string `json:"update_date,omitempty"`
}

// PostInput は記事作成時に送信する項目。
type PostInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Author  string `json:"author"`
}

// PostPatch は記事の部分更新で送信する項目。nilの項目は送信しない。
type PostPatch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Author  *string `json:"author,omitempty"`
}
