package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/estatebase/internal/model"
	"github.com/hitoshi/estatebase/internal/store"
)

// NewsProvider は公開APIが必要とするニュースサービスのインターフェース。
type NewsProvider interface {
	Items(ctx context.Context) []model.NewsItem
}

// PublicHandler は公開サイト向けの読み取り専用APIを提供する。
// 公開ページのレンダリングを止めないため、ストア障害時は500ではなく
// 空の結果で応答する（degrade to empty）。障害はログとメトリクスに残す。
type PublicHandler struct {
	store  store.DocumentStore
	news   NewsProvider
	logger *slog.Logger
}

// NewPublicHandler はPublicHandlerを生成する。newsはnilでもよい。
func NewPublicHandler(docStore store.DocumentStore, news NewsProvider, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{
		store:  docStore,
		news:   news,
		logger: logger,
	}
}

// listOrEmpty はクエリを実行し、失敗時は空スライスを返す。
func (h *PublicHandler) listOrEmpty(ctx context.Context, q store.Query) []*model.Document {
	docs, err := h.store.Query(ctx, q)
	if err != nil {
		h.logger.Error("public query failed, serving empty result",
			slog.String("doc_type", q.Type),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return docs
}

// ListCities は公開サイト向けの都市一覧を返す。
// GET /api/cities
func (h *PublicHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	docs := h.listOrEmpty(r.Context(), store.Query{
		Type:         model.DocTypeCity,
		OrderBy:      "order",
		NumericOrder: true,
	})
	writeJSON(w, http.StatusOK, toDocumentListResponse(docs))
}

// ListNeighborhoods は公開サイト向けのエリア一覧を返す。
// GET /api/neighborhoods
func (h *PublicHandler) ListNeighborhoods(w http.ResponseWriter, r *http.Request) {
	docs := h.listOrEmpty(r.Context(), store.Query{
		Type:         model.DocTypeNeighborhood,
		OrderBy:      "order",
		NumericOrder: true,
	})
	writeJSON(w, http.StatusOK, toDocumentListResponse(docs))
}

// ListProperties は公開サイト向けの物件一覧を返す。
// GET /api/properties
func (h *PublicHandler) ListProperties(w http.ResponseWriter, r *http.Request) {
	docs := h.listOrEmpty(r.Context(), store.Query{
		Type:      model.DocTypeProperty,
		OrderBy:   "",
		OrderDesc: true,
	})
	writeJSON(w, http.StatusOK, toDocumentListResponse(docs))
}

// ListTestimonials は公開サイト向けのお客様の声一覧を返す。
// GET /api/testimonials
func (h *PublicHandler) ListTestimonials(w http.ResponseWriter, r *http.Request) {
	docs := h.listOrEmpty(r.Context(), store.Query{
		Type:         model.DocTypeTestimonial,
		OrderBy:      "order",
		NumericOrder: true,
	})
	writeJSON(w, http.StatusOK, toDocumentListResponse(docs))
}

// GetSiteSettings は公開サイト向けのサイト設定を返す。
// GET /api/site-settings
// サイト設定はシングルトンとして扱い、最初の1件を返す。未設定の場合は空オブジェクト。
func (h *PublicHandler) GetSiteSettings(w http.ResponseWriter, r *http.Request) {
	docs := h.listOrEmpty(r.Context(), store.Query{
		Type:  model.DocTypeSiteSettings,
		Limit: 1,
	})
	if len(docs) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(docs[0]))
}

// ListNews は公開サイト向けのマーケットニュース一覧を返す。
// GET /api/news
// ニュースサービスが未構成の場合は空配列を返す。
func (h *PublicHandler) ListNews(w http.ResponseWriter, r *http.Request) {
	if h.news == nil {
		writeJSON(w, http.StatusOK, []model.NewsItem{})
		return
	}

	items := h.news.Items(r.Context())
	type newsItemResponse struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Summary     string `json:"summary"`
		ImageURL    string `json:"imageUrl,omitempty"`
		PublishedAt string `json:"publishedAt,omitempty"`
	}

	result := make([]newsItemResponse, 0, len(items))
	for _, item := range items {
		resp := newsItemResponse{
			Title:    item.Title,
			Link:     item.Link,
			Summary:  item.Summary,
			ImageURL: item.ImageURL,
		}
		if !item.PublishedAt.IsZero() {
			resp.PublishedAt = item.PublishedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		result = append(result, resp)
	}

	writeJSON(w, http.StatusOK, result)
}
