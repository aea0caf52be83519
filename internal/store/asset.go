package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxAssetBytes はアセットの最大サイズ（10MB）。
const MaxAssetBytes = 10 * 1024 * 1024

// allowedMimeTypes はアップロードを許可する画像MIMEタイプ。
var allowedMimeTypes = map[string]bool{
	"image/jpeg":    true,
	"image/png":     true,
	"image/webp":    true,
	"image/gif":     true,
	"image/svg+xml": true,
}

// PostgresAssetStore はPostgreSQLを使用したアセットストア。
type PostgresAssetStore struct {
	read    *sql.DB
	write   *sql.DB
	baseURL string
}

// NewPostgresAssetStore はPostgresAssetStoreを生成する。
// baseURLは取得用URLの組み立てに使用する（例: "https://example.com"）。
func NewPostgresAssetStore(read, write *sql.DB, baseURL string) *PostgresAssetStore {
	return &PostgresAssetStore{
		read:    read,
		write:   write,
		baseURL: baseURL,
	}
}

// ValidateAsset はアセットのサイズとMIMEタイプを検証する。
// ネットワークアクセスを伴わない。アップロード前の事前チェックとしても使用できる。
func ValidateAsset(size int64, mimeType string) error {
	if size > MaxAssetBytes {
		return ErrAssetTooLarge
	}
	if !allowedMimeTypes[mimeType] {
		return ErrUnsupportedMimeType
	}
	return nil
}

// Upload はバイト列をアセットとして保存する。
// サイズとMIMEタイプの検証はINSERT前に行い、不正なペイロードで
// ストアへのアクセスが発生しないようにする。
func (s *PostgresAssetStore) Upload(ctx context.Context, data []byte, mimeType, filename string) (*Asset, error) {
	if err := ValidateAsset(int64(len(data)), mimeType); err != nil {
		return nil, err
	}

	asset := &Asset{
		ID:        uuid.NewString(),
		Filename:  filename,
		MimeType:  mimeType,
		SizeBytes: int64(len(data)),
	}

	var createdAt time.Time
	err := s.write.QueryRowContext(ctx,
		`INSERT INTO assets (id, filename, mime_type, size_bytes, data)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		asset.ID, asset.Filename, asset.MimeType, asset.SizeBytes, data,
	).Scan(&createdAt)
	if err != nil {
		return nil, fmt.Errorf("アセットの保存に失敗しました: %w", err)
	}

	asset.CreatedAt = createdAt
	asset.URL = s.assetURL(asset.ID)
	return asset, nil
}

// Get は指定IDのアセットのメタデータと本体を返す。
// 存在しない場合はErrAssetNotFoundを返す。
func (s *PostgresAssetStore) Get(ctx context.Context, id string) (*Asset, []byte, error) {
	asset := &Asset{}
	var data []byte

	err := s.read.QueryRowContext(ctx,
		`SELECT id, filename, mime_type, size_bytes, data, created_at
		 FROM assets WHERE id = $1`,
		id,
	).Scan(&asset.ID, &asset.Filename, &asset.MimeType, &asset.SizeBytes, &data, &asset.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("アセットの取得に失敗しました: %w", err)
	}

	asset.URL = s.assetURL(asset.ID)
	return asset, data, nil
}

// assetURL はアセットの取得用URLを組み立てる。
func (s *PostgresAssetStore) assetURL(id string) string {
	return s.baseURL + "/assets/" + id
}

// compile-time interface check
var _ AssetStore = (*PostgresAssetStore)(nil)
