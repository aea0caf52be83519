// Package tenant はホスト名からテナント設定とアクティブディールを解決する。
// 複数の配信ドメインが同一ストアを共有するため、解決は常にドメインで
// フィルタし、他テナントのレコードへのフォールバックは行わない。
package tenant

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/estatebase/internal/model"
	"github.com/hitoshi/estatebase/internal/store"
)

// Resolver はテナント設定とアクティブディールの解決を提供する。
type Resolver struct {
	store         store.DocumentStore
	defaultDomain string
}

// NewResolver はResolverを生成する。
// defaultDomainはホストが特定できないリクエストのフォールバック先。
func NewResolver(docStore store.DocumentStore, defaultDomain string) *Resolver {
	return &Resolver{
		store:         docStore,
		defaultDomain: NormalizeDomain(defaultDomain),
	}
}

// NormalizeDomain はホスト名を比較可能な形式に正規化する。
// 小文字化し、ポート番号・先頭の"www."・末尾のドットを除去する。
func NormalizeDomain(host string) string {
	domain := strings.ToLower(strings.TrimSpace(host))

	// ポート番号を除去（IPv6リテラルは想定しない）
	if i := strings.LastIndex(domain, ":"); i >= 0 && !strings.Contains(domain[i:], "]") {
		domain = domain[:i]
	}

	domain = strings.TrimSuffix(domain, ".")
	domain = strings.TrimPrefix(domain, "www.")

	return domain
}

// ResolveConfig はホスト名に対応するテナント設定を返す。
// ホストが空の場合のみデフォルトドメインにフォールバックする。
// 設定が見つからない場合は他テナントへフォールバックせず、
// TENANT_NOT_FOUNDエラーを返す。
func (r *Resolver) ResolveConfig(ctx context.Context, host string) (*model.Document, error) {
	domain := NormalizeDomain(host)
	if domain == "" {
		domain = r.defaultDomain
	}
	if domain == "" {
		return nil, model.NewTenantNotFoundError(host)
	}

	docs, err := r.store.Query(ctx, store.Query{
		Type: model.DocTypeTenantConfig,
		Filters: []store.FieldFilter{
			{Path: "domain", Value: domain},
		},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("テナント設定の取得に失敗しました: %w", err)
	}
	if len(docs) == 0 {
		return nil, model.NewTenantNotFoundError(domain)
	}

	return docs[0], nil
}

// ResolveDeal はテナントドメインとクライアントメールアドレスの両方に
// 一致するアクティブディールを返す。メールアドレスの比較は大文字小文字を
// 区別しない。ドメインフィルタは常に適用され、別テナントの同一メール
// アドレスのディールが返ることはない。
func (r *Resolver) ResolveDeal(ctx context.Context, host, clientEmail string) (*model.Document, error) {
	email := strings.ToLower(strings.TrimSpace(clientEmail))
	if email == "" {
		return nil, model.NewMissingEmailError()
	}

	domain := NormalizeDomain(host)
	if domain == "" {
		domain = r.defaultDomain
	}

	docs, err := r.store.Query(ctx, store.Query{
		Type: model.DocTypeActiveDeal,
		Filters: []store.FieldFilter{
			{Path: "tenantDomain", Value: domain},
			{Path: "clientEmail", Value: email, CaseInsensitive: true},
		},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("取引情報の取得に失敗しました: %w", err)
	}
	if len(docs) == 0 {
		return nil, model.NewDealNotFoundError()
	}

	return docs[0], nil
}
