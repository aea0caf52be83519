// Package store は外部ドキュメントストアへの薄いアダプタを提供する。
// 取得・作成・部分更新・削除の4プリミティブとアセットアップロードのみを公開し、
// ビジネスルールは一切解釈しない。キャッシュも持たず、リクエストごとに独立して
// ストアへアクセスする。
package store

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/estatebase/internal/model"
)

// ErrDocumentNotFound は指定IDのドキュメントが存在しない場合に返される。
var ErrDocumentNotFound = errors.New("document not found")

// ErrAssetNotFound は指定IDのアセットが存在しない場合に返される。
var ErrAssetNotFound = errors.New("asset not found")

// ErrAssetTooLarge はアップロードサイズが上限を超えた場合に返される。
// ストアへのアクセス前に検出される。
var ErrAssetTooLarge = errors.New("asset exceeds size limit")

// ErrUnsupportedMimeType は許可されていないMIMEタイプの場合に返される。
// ストアへのアクセス前に検出される。
var ErrUnsupportedMimeType = errors.New("unsupported mime type")

// FieldFilter はドキュメントのトップレベルフィールドに対する等値フィルタ。
type FieldFilter struct {
	// Path はdata内のトップレベルフィールド名。
	Path string
	// Value は比較する値。
	Value string
	// CaseInsensitive が真の場合、両辺を小文字化して比較する。
	CaseInsensitive bool
}

// Query はドキュメント検索の条件を表す。
type Query struct {
	// Type は検索対象のドキュメントタイプ（必須）。
	Type string
	// Filters は全件にAND適用されるフィールドフィルタ。
	Filters []FieldFilter
	// OrderBy はdata内のソートキー。空の場合は作成日時の降順。
	OrderBy string
	// OrderDesc が真の場合は降順ソート。
	OrderDesc bool
	// NumericOrder が真の場合、ソートキーを数値として比較する。
	NumericOrder bool
	// Limit は最大取得件数。0は無制限。
	Limit int
}

// DocumentStore はドキュメントストアの4プリミティブを定義する。
type DocumentStore interface {
	// Query は条件に一致するドキュメントの一覧を返す。該当なしは空スライス。
	Query(ctx context.Context, q Query) ([]*model.Document, error)
	// Get は指定IDのドキュメントを返す。存在しない場合はErrDocumentNotFound。
	Get(ctx context.Context, id string) (*model.Document, error)
	// Create はドキュメントを作成し、採番されたIDを含むレコードを返す。
	Create(ctx context.Context, docType string, data map[string]any) (*model.Document, error)
	// Patch は指定フィールドのみをマージ更新し、更新後のレコードを返す。
	// 供給されなかったフィールドは維持される。存在しない場合はErrDocumentNotFound。
	Patch(ctx context.Context, id string, fields map[string]any) (*model.Document, error)
	// Delete は指定IDのドキュメントを削除する。存在しない場合はErrDocumentNotFound。
	Delete(ctx context.Context, id string) error
}

// Asset はアップロード済みアセットのメタデータを表す。
type Asset struct {
	ID        string
	Filename  string
	MimeType  string
	SizeBytes int64
	URL       string
	CreatedAt time.Time
}

// AssetStore はアセットの保存と取得を定義する。
type AssetStore interface {
	// Upload はバイト列をアセットとして保存し、IDと取得用URLを返す。
	// MIMEタイプとサイズの検証はストアアクセス前に行われ、
	// 不正な場合はErrAssetTooLarge / ErrUnsupportedMimeTypeを返す。
	Upload(ctx context.Context, data []byte, mimeType, filename string) (*Asset, error)
	// Get は指定IDのアセットのメタデータと本体を返す。
	Get(ctx context.Context, id string) (*Asset, []byte, error)
}

// StoreMetrics はストア操作の計測に使用するインターフェース。
// metrics.Collectorの部分集合として定義する。
type StoreMetrics interface {
	RecordStoreOp(op string, duration time.Duration, err error)
}
