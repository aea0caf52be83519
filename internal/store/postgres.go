package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/estatebase/internal/model"
)

// PostgresDocumentStore はPostgreSQLのJSONBカラムを使用したドキュメントストア。
// 読み取りと書き込みで別の接続（資格情報）を使用する。
type PostgresDocumentStore struct {
	read    *sql.DB
	write   *sql.DB
	metrics StoreMetrics
}

// NewPostgresDocumentStore はPostgresDocumentStoreを生成する。
// metricsはnilを許容する（計測なしで動作する）。
func NewPostgresDocumentStore(read, write *sql.DB, metrics StoreMetrics) *PostgresDocumentStore {
	return &PostgresDocumentStore{
		read:    read,
		write:   write,
		metrics: metrics,
	}
}

// documentColumns はSELECT句で取得するカラム。scanDocumentと対応する。
const documentColumns = "id, doc_type, data, created_at, updated_at"

// Query は条件に一致するドキュメントの一覧を返す。該当なしは空スライスを返す。
func (s *PostgresDocumentStore) Query(ctx context.Context, q Query) (docs []*model.Document, err error) {
	start := time.Now()
	defer func() { s.record("query", start, err) }()

	sqlText, args, err := buildQuerySQL(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.read.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("ドキュメントの検索に失敗しました: %w", err)
	}
	defer rows.Close()

	docs = make([]*model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ドキュメントの読み取りに失敗しました: %w", err)
	}

	return docs, nil
}

// Get は指定IDのドキュメントを返す。存在しない場合はErrDocumentNotFoundを返す。
func (s *PostgresDocumentStore) Get(ctx context.Context, id string) (doc *model.Document, err error) {
	start := time.Now()
	defer func() { s.record("get", start, err) }()

	row := s.read.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = $1", id)

	doc, err = scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Create はドキュメントを作成する。IDはストア側で採番し、以後不変とする。
func (s *PostgresDocumentStore) Create(ctx context.Context, docType string, data map[string]any) (doc *model.Document, err error) {
	start := time.Now()
	defer func() { s.record("create", start, err) }()

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("ドキュメントのエンコードに失敗しました: %w", err)
	}

	id := uuid.NewString()
	row := s.write.QueryRowContext(ctx,
		`INSERT INTO documents (id, doc_type, data)
		 VALUES ($1, $2, $3)
		 RETURNING `+documentColumns,
		id, docType, raw,
	)

	doc, err = scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("ドキュメントの作成に失敗しました: %w", err)
	}
	return doc, nil
}

// Patch は指定フィールドのみをJSONBマージで上書きする。
// 供給されなかったフィールドは既存値が維持される（純粋なマージ更新）。
func (s *PostgresDocumentStore) Patch(ctx context.Context, id string, fields map[string]any) (doc *model.Document, err error) {
	start := time.Now()
	defer func() { s.record("patch", start, err) }()

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("更新フィールドのエンコードに失敗しました: %w", err)
	}

	row := s.write.QueryRowContext(ctx,
		`UPDATE documents
		 SET data = data || $2::jsonb, updated_at = now()
		 WHERE id = $1
		 RETURNING `+documentColumns,
		id, raw,
	)

	doc, err = scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ドキュメントの更新に失敗しました: %w", err)
	}
	return doc, nil
}

// Delete は指定IDのドキュメントを削除する。存在しない場合はErrDocumentNotFoundを返す。
func (s *PostgresDocumentStore) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.record("delete", start, err) }()

	result, err := s.write.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("ドキュメントの削除に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	if affected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// record はストア操作の所要時間と結果をメトリクスに記録する。
// errには操作の最終的なエラーを渡す（成功時はnil）。
func (s *PostgresDocumentStore) record(op string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordStoreOp(op, time.Since(start), err)
	}
}

// buildQuerySQL はQueryからパラメータ化済みSQLを構築する。
// フィルタ値・フィールド名はすべてプレースホルダで渡し、文字列連結による注入を防ぐ。
func buildQuerySQL(q Query) (string, []any, error) {
	if q.Type == "" {
		return "", nil, fmt.Errorf("query type is required")
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + documentColumns + " FROM documents WHERE doc_type = $1")
	args := []any{q.Type}

	for _, f := range q.Filters {
		if f.Path == "" {
			return "", nil, fmt.Errorf("filter path is required")
		}
		pathArg := strconv.Itoa(len(args) + 1)
		valueArg := strconv.Itoa(len(args) + 2)
		if f.CaseInsensitive {
			sb.WriteString(" AND lower(data ->> $" + pathArg + ") = lower($" + valueArg + ")")
		} else {
			sb.WriteString(" AND data ->> $" + pathArg + " = $" + valueArg)
		}
		args = append(args, f.Path, f.Value)
	}

	direction := " ASC"
	if q.OrderDesc {
		direction = " DESC"
	}

	if q.OrderBy == "" {
		sb.WriteString(" ORDER BY created_at DESC")
	} else {
		orderArg := strconv.Itoa(len(args) + 1)
		if q.NumericOrder {
			sb.WriteString(" ORDER BY (data ->> $" + orderArg + ")::numeric" + direction + " NULLS LAST")
		} else {
			sb.WriteString(" ORDER BY data ->> $" + orderArg + direction + " NULLS LAST")
		}
		args = append(args, q.OrderBy)
	}

	if q.Limit > 0 {
		limitArg := strconv.Itoa(len(args) + 1)
		sb.WriteString(" LIMIT $" + limitArg)
		args = append(args, q.Limit)
	}

	return sb.String(), args, nil
}

// rowScanner はsql.Rowとsql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument は1行をmodel.Documentに変換する。
func scanDocument(row rowScanner) (*model.Document, error) {
	doc := &model.Document{}
	var raw []byte

	if err := row.Scan(&doc.ID, &doc.Type, &raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("ドキュメントの読み取りに失敗しました: %w", err)
	}

	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return nil, fmt.Errorf("ドキュメントのデコードに失敗しました: %w", err)
	}

	return doc, nil
}

// compile-time interface check
var _ DocumentStore = (*PostgresDocumentStore)(nil)
