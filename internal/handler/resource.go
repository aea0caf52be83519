package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/estatebase/internal/model"
	"github.com/hitoshi/estatebase/internal/schema"
	"github.com/hitoshi/estatebase/internal/store"
)

// ValidationMetrics はスキーマ検証失敗の計測に使用するインターフェース。
// metrics.Collectorの部分集合として定義する。
type ValidationMetrics interface {
	RecordValidationFailure(docType string)
}

// ResourceConfig はエンティティごとの管理CRUDハンドラーの設定。
// エンティティ間の差異はこの設定のみで表現し、ハンドラーの制御フローは共有する。
type ResourceConfig struct {
	// Name はルーティングとログに使用するリソース名（複数形）。
	Name string
	// DocType はストア上のドキュメントタイプ。
	DocType string
	// Schema は検証に使用するスキーマ。
	Schema schema.Schema
	// SortField は一覧のソートキー。空の場合は作成日時の降順。
	SortField string
	// SortDesc が真の場合は降順ソート。
	SortDesc bool
	// NumericSort が真の場合、ソートキーを数値として比較する。
	NumericSort bool
}

// ResourceHandler は1エンティティ分の管理CRUDを提供する汎用ハンドラー。
type ResourceHandler struct {
	config    ResourceConfig
	store     store.DocumentStore
	validator *schema.Validator
	metrics   ValidationMetrics
}

// NewResourceHandler はResourceHandlerを生成する。metricsはnilでもよい。
func NewResourceHandler(config ResourceConfig, docStore store.DocumentStore, validator *schema.Validator, metrics ValidationMetrics) *ResourceHandler {
	return &ResourceHandler{
		config:    config,
		store:     docStore,
		validator: validator,
		metrics:   metrics,
	}
}

// List はエンティティの一覧を返す。
// GET /admin/{resource}
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.Query(r.Context(), store.Query{
		Type:         h.config.DocType,
		OrderBy:      h.config.SortField,
		OrderDesc:    h.config.SortDesc,
		NumericOrder: h.config.NumericSort,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDocumentListResponse(docs))
}

// Create はエンティティを新規作成する。
// POST /admin/{resource}
// ペイロードはスキーマで検証され、全フィールドのエラーが収集される。
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	result := h.validator.Validate(h.config.Schema, payload)
	if !result.OK() {
		h.recordValidationFailure()
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailedError(result.Errors))
		return
	}

	doc, err := h.store.Create(r.Context(), h.config.DocType, result.Data)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

// Update はエンティティをマージ更新する。
// PUT /admin/{resource}
// ボディのidフィールドで更新対象を指定する。検証は供給されたフィールドのみに
// 行われ、供給されなかったフィールドは既存値が維持される。
func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	id, _ := payload["id"].(string)
	if id == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingIDError())
		return
	}
	if !schema.IDPattern.MatchString(id) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError(id))
		return
	}
	delete(payload, "id")

	result := h.validator.ValidatePartial(h.config.Schema, payload)
	if !result.OK() {
		h.recordValidationFailure()
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationFailedError(result.Errors))
		return
	}

	doc, err := h.store.Patch(r.Context(), id, result.Data)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// Delete はエンティティを削除する。
// DELETE /admin/{resource}?id=xxx
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingIDError())
		return
	}
	if !schema.IDPattern.MatchString(id) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError(id))
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (h *ResourceHandler) recordValidationFailure() {
	if h.metrics != nil {
		h.metrics.RecordValidationFailure(h.config.DocType)
	}
}

// AdminResources は管理CRUDを提供する全エンティティの設定一覧を返す。
// ルーターはこの一覧からエンドポイントを機械的に生成する。
func AdminResources() []ResourceConfig {
	return []ResourceConfig{
		{Name: "cities", DocType: model.DocTypeCity, Schema: schema.CitySchema, SortField: "name"},
		{Name: "neighborhoods", DocType: model.DocTypeNeighborhood, Schema: schema.NeighborhoodSchema, SortField: "order", NumericSort: true},
		{Name: "properties", DocType: model.DocTypeProperty, Schema: schema.PropertySchema},
		{Name: "deals", DocType: model.DocTypeActiveDeal, Schema: schema.ActiveDealSchema},
		{Name: "site-settings", DocType: model.DocTypeSiteSettings, Schema: schema.SiteSettingsSchema},
		{Name: "testimonials", DocType: model.DocTypeTestimonial, Schema: schema.TestimonialSchema, SortField: "order", NumericSort: true},
		{Name: "tenant-configs", DocType: model.DocTypeTenantConfig, Schema: schema.TenantConfigSchema, SortField: "domain"},
	}
}
