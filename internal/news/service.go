// Package news は公開サイトのマーケットニュース欄向けに外部RSSフィードを
// 取得・整形する。フェッチ結果は再検証間隔つきでキャッシュされ、取得失敗時は
// 直前の結果を返し続ける（stale-while-error）。
package news

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/hitoshi/estatebase/internal/model"
	"github.com/hitoshi/estatebase/internal/security"
)

// maxItems は公開サイトに表示する最大記事数。
const maxItems = 10

// RefreshMetrics はフィード再取得の計測に使用するインターフェース。
// metrics.Collectorの部分集合として定義する。
type RefreshMetrics interface {
	RecordNewsRefresh(success bool, duration time.Duration)
}

// Service はマーケットニュースの取得とキャッシュを提供する。
type Service struct {
	feedURL    string
	revalidate time.Duration
	maxBytes   int64

	ssrfGuard security.SSRFGuardService
	sanitizer security.ContentSanitizerService
	metrics   RefreshMetrics
	logger    *slog.Logger

	// テスト用にHTTPクライアントと時刻を差し替え可能
	client *http.Client
	now    func() time.Time

	mu        sync.Mutex
	cached    []model.NewsItem
	fetchedAt time.Time
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	feedURL string,
	revalidate time.Duration,
	maxBytes int64,
	ssrfGuard security.SSRFGuardService,
	sanitizer security.ContentSanitizerService,
	metrics RefreshMetrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		feedURL:    feedURL,
		revalidate: revalidate,
		maxBytes:   maxBytes,
		ssrfGuard:  ssrfGuard,
		sanitizer:  sanitizer,
		metrics:    metrics,
		logger:     logger,
		client:     ssrfGuard.NewSafeClient(10*time.Second, maxBytes),
		now:        time.Now,
	}
}

// Items は表示用のニュース記事一覧を返す。
// キャッシュが再検証間隔内であればそのまま返し、期限切れの場合は
// 再取得する。再取得に失敗した場合は直前のキャッシュを返す。
// フィードURLが未設定の場合は常に空スライスを返す。
func (s *Service) Items(ctx context.Context) []model.NewsItem {
	if s.feedURL == "" {
		return []model.NewsItem{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.revalidate {
		return s.cached
	}

	start := s.now()
	items, err := s.fetch(ctx)
	if s.metrics != nil {
		s.metrics.RecordNewsRefresh(err == nil, s.now().Sub(start))
	}

	if err != nil {
		s.logger.Warn("news feed refresh failed",
			slog.String("feed_url", s.feedURL),
			slog.String("error", err.Error()),
		)
		if s.cached != nil {
			// 取得失敗時は古いキャッシュで継続する
			return s.cached
		}
		return []model.NewsItem{}
	}

	s.cached = items
	s.fetchedAt = s.now()
	return s.cached
}

// fetch はフィードを取得・パースし、表示用に整形する。
func (s *Service) fetch(ctx context.Context) ([]model.NewsItem, error) {
	if err := s.ssrfGuard.ValidateURL(s.feedURL); err != nil {
		return nil, fmt.Errorf("フィードURLの検証に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Estatebase/1.0 News Fetcher")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("フィードの取得に失敗しました: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み取りに失敗しました: %w", err)
	}

	parser := gofeed.NewParser()
	parsed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}

	return s.convertItems(parsed.Items), nil
}

// convertItems はgofeedの記事を表示用のNewsItemに変換する。
// 概要はサニタイズし、画像はメディア添付またはHTML内の最初のimgから抽出する。
func (s *Service) convertItems(items []*gofeed.Item) []model.NewsItem {
	result := make([]model.NewsItem, 0, maxItems)

	for _, item := range items {
		if item == nil || item.Title == "" {
			continue
		}
		if len(result) >= maxItems {
			break
		}

		news := model.NewsItem{
			Title:   item.Title,
			Link:    item.Link,
			Summary: s.sanitizer.Sanitize(item.Description),
		}

		if item.PublishedParsed != nil {
			news.PublishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			news.PublishedAt = *item.UpdatedParsed
		}

		news.ImageURL = extractImageURL(item)

		result = append(result, news)
	}

	return result
}

// extractImageURL は記事から表示用画像のURLを抽出する。
// 優先順: フィードのimage要素、enclosure、本文HTML内の最初のimg。
// https以外のURLは採用しない。
func extractImageURL(item *gofeed.Item) string {
	if item.Image != nil && isHTTPSURL(item.Image.URL) {
		return item.Image.URL
	}

	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && isHTTPSURL(enc.URL) {
			return enc.URL
		}
	}

	if src := firstImageSrc(item.Content); src != "" {
		return src
	}
	return firstImageSrc(item.Description)
}

// firstImageSrc はHTML断片から最初のimg要素のsrc属性を返す。
// 見つからない場合、またはhttps以外の場合は空文字列を返す。
func firstImageSrc(htmlFragment string) string {
	if htmlFragment == "" {
		return ""
	}

	tokenizer := html.NewTokenizer(strings.NewReader(htmlFragment))
	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			return ""
		}
		if tokenType != html.StartTagToken && tokenType != html.SelfClosingTagToken {
			continue
		}

		name, hasAttr := tokenizer.TagName()
		if string(name) != "img" || !hasAttr {
			continue
		}

		for {
			key, value, more := tokenizer.TagAttr()
			if string(key) == "src" {
				src := string(value)
				if isHTTPSURL(src) {
					return src
				}
				return ""
			}
			if !more {
				break
			}
		}
	}
}

// isHTTPSURL はURLがhttpsスキームかどうかを判定する。
func isHTTPSURL(rawURL string) bool {
	return strings.HasPrefix(rawURL, "https://")
}
