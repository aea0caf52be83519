package model

import "time"

// NewsItem は公開サイトのマーケットニュース欄に表示する1記事を表す。
// Summaryはサニタイズ済みHTML。
type NewsItem struct {
	Title       string
	Link        string
	Summary     string
	ImageURL    string
	PublishedAt time.Time
}
