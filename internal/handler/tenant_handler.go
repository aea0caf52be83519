package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/estatebase/internal/model"
)

// TenantResolverInterface はテナントハンドラーが必要とするリゾルバのインターフェース。
type TenantResolverInterface interface {
	ResolveConfig(ctx context.Context, host string) (*model.Document, error)
	ResolveDeal(ctx context.Context, host, clientEmail string) (*model.Document, error)
}

// TenantHandler はテナント設定とクライアント向けディール照会のHTTPハンドラー。
type TenantHandler struct {
	resolver TenantResolverInterface
}

// NewTenantHandler はTenantHandlerを生成する。
func NewTenantHandler(resolver TenantResolverInterface) *TenantHandler {
	return &TenantHandler{resolver: resolver}
}

// GetTenantConfig はリクエスト元ドメインのテナント設定を返す。
// GET /api/tenant-config
// テナント設定は見た目の分離に直結するため、公開読み取りと異なり
// 見つからない場合は404を返す（空へのデグレードはしない）。
func (h *TenantHandler) GetTenantConfig(w http.ResponseWriter, r *http.Request) {
	doc, err := h.resolver.ResolveConfig(r.Context(), r.Host)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// GetDeal はクライアントメールアドレスに対応するアクティブディールを返す。
// GET /api/deal?email=xxx
// ディールは常にリクエスト元ドメインのテナント内でのみ検索される。
func (h *TenantHandler) GetDeal(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	doc, err := h.resolver.ResolveDeal(r.Context(), r.Host, email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}
