package seed

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/hitoshi/estatebase/internal/model"
	"github.com/hitoshi/estatebase/internal/schema"
	"github.com/hitoshi/estatebase/internal/store"
)

// memoryStore はテスト用のインメモリDocumentStore。
type memoryStore struct {
	docs map[string]*model.Document
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: make(map[string]*model.Document)}
}

func (s *memoryStore) Query(ctx context.Context, q store.Query) ([]*model.Document, error) {
	var result []*model.Document
	for _, doc := range s.docs {
		if doc.Type == q.Type {
			result = append(result, doc)
		}
		if q.Limit > 0 && len(result) >= q.Limit {
			break
		}
	}
	return result, nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (*model.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, store.ErrDocumentNotFound
	}
	return doc, nil
}

func (s *memoryStore) Create(ctx context.Context, docType string, data map[string]any) (*model.Document, error) {
	doc := &model.Document{ID: uuid.NewString(), Type: docType, Data: data}
	s.docs[doc.ID] = doc
	return doc, nil
}

func (s *memoryStore) Patch(ctx context.Context, id string, fields map[string]any) (*model.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, store.ErrDocumentNotFound
	}
	for k, v := range fields {
		doc.Data[k] = v
	}
	return doc, nil
}

func (s *memoryStore) Delete(ctx context.Context, id string) error {
	if _, ok := s.docs[id]; !ok {
		return store.ErrDocumentNotFound
	}
	delete(s.docs, id)
	return nil
}

var _ store.DocumentStore = (*memoryStore)(nil)

func seedTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_InsertsSampleContent(t *testing.T) {
	ms := newMemoryStore()
	s := NewSeeder(ms, schema.NewValidator(nil), seedTestLogger())

	inserted, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if inserted == 0 {
		t.Fatal("seed should insert sample documents")
	}

	neighborhoods, _ := ms.Query(context.Background(), store.Query{Type: model.DocTypeNeighborhood})
	if len(neighborhoods) != 2 {
		t.Errorf("neighborhoods = %d, want 2", len(neighborhoods))
	}

	// 配列要素には安定キーが付与されている
	for _, doc := range neighborhoods {
		highlights, ok := doc.Data["highlights"].([]any)
		if !ok {
			continue
		}
		for _, item := range highlights {
			obj := item.(map[string]any)
			if key, _ := obj["_key"].(string); key == "" {
				t.Error("seeded array items should carry a stable key")
			}
		}
	}
}

func TestRun_IsIdempotent(t *testing.T) {
	ms := newMemoryStore()
	s := NewSeeder(ms, schema.NewValidator(nil), seedTestLogger())

	first, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	second, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if second != 0 {
		t.Errorf("second run inserted %d documents, want 0", second)
	}

	all := 0
	for _, doc := range ms.docs {
		_ = doc
		all++
	}
	if all != first {
		t.Errorf("total documents = %d, want %d", all, first)
	}
}

// TestSampleContent_PassesValidation はサンプルデータが本番スキーマを
// 通過することを確認する。
func TestSampleContent_PassesValidation(t *testing.T) {
	v := schema.NewValidator(nil)
	for docType, payloads := range sampleContent() {
		entitySchema := schema.ForDocType(docType)
		if entitySchema == nil {
			t.Errorf("no schema registered for %q", docType)
			continue
		}
		for i, payload := range payloads {
			if result := v.Validate(entitySchema, payload); !result.OK() {
				t.Errorf("%s[%d] failed validation: %v", docType, i, result.Errors)
			}
		}
	}
}
