package tenant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/estatebase/internal/model"
	"github.com/hitoshi/estatebase/internal/store"
)

// filteringStore はフィルタを実際に適用するテスト用のDocumentStore。
// ドメイン分離の検証にはフィルタの適用そのものが重要なため、
// 固定値を返すモックではなくフィルタリングを実装する。
type filteringStore struct {
	docs []*model.Document
}

func (s *filteringStore) Query(ctx context.Context, q store.Query) ([]*model.Document, error) {
	var result []*model.Document
	for _, doc := range s.docs {
		if doc.Type != q.Type {
			continue
		}
		match := true
		for _, f := range q.Filters {
			value, _ := doc.Data[f.Path].(string)
			if f.CaseInsensitive {
				if !strings.EqualFold(value, f.Value) {
					match = false
				}
			} else if value != f.Value {
				match = false
			}
		}
		if match {
			result = append(result, doc)
		}
		if q.Limit > 0 && len(result) >= q.Limit {
			break
		}
	}
	return result, nil
}

func (s *filteringStore) Get(ctx context.Context, id string) (*model.Document, error) {
	return nil, store.ErrDocumentNotFound
}

func (s *filteringStore) Create(ctx context.Context, docType string, data map[string]any) (*model.Document, error) {
	return nil, errors.New("not implemented")
}

func (s *filteringStore) Patch(ctx context.Context, id string, fields map[string]any) (*model.Document, error) {
	return nil, errors.New("not implemented")
}

func (s *filteringStore) Delete(ctx context.Context, id string) error {
	return errors.New("not implemented")
}

var _ store.DocumentStore = (*filteringStore)(nil)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{host: "Example.COM", want: "example.com"},
		{host: "example.com:8080", want: "example.com"},
		{host: "www.example.com", want: "example.com"},
		{host: "example.com.", want: "example.com"},
		{host: "  WWW.Example.com:443  ", want: "example.com"},
		{host: "wwwexample.com", want: "wwwexample.com"},
		{host: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := NormalizeDomain(tt.host); got != tt.want {
				t.Errorf("NormalizeDomain(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func newTestResolver() *Resolver {
	s := &filteringStore{
		docs: []*model.Document{
			{
				ID:   "tc-1",
				Type: model.DocTypeTenantConfig,
				Data: map[string]any{"domain": "agent-a.com", "agentName": "Agent A"},
			},
			{
				ID:   "tc-2",
				Type: model.DocTypeTenantConfig,
				Data: map[string]any{"domain": "agent-b.com", "agentName": "Agent B"},
			},
			{
				ID:   "deal-a",
				Type: model.DocTypeActiveDeal,
				Data: map[string]any{"tenantDomain": "agent-a.com", "clientEmail": "client@example.com", "stage": "offer"},
			},
			{
				ID:   "deal-b",
				Type: model.DocTypeActiveDeal,
				Data: map[string]any{"tenantDomain": "agent-b.com", "clientEmail": "client@example.com", "stage": "closing"},
			},
		},
	}
	return NewResolver(s, "agent-a.com")
}

func TestResolveConfig(t *testing.T) {
	r := newTestResolver()

	doc, err := r.ResolveConfig(context.Background(), "www.Agent-A.com:443")
	if err != nil {
		t.Fatalf("ResolveConfig() error = %v", err)
	}
	if doc.ID != "tc-1" {
		t.Errorf("resolved %q, want tc-1", doc.ID)
	}
}

func TestResolveConfig_EmptyHostFallsBackToDefault(t *testing.T) {
	r := newTestResolver()

	doc, err := r.ResolveConfig(context.Background(), "")
	if err != nil {
		t.Fatalf("ResolveConfig() error = %v", err)
	}
	if doc.ID != "tc-1" {
		t.Errorf("empty host should resolve default domain, got %q", doc.ID)
	}
}

func TestResolveConfig_UnknownDomainDoesNotFallBack(t *testing.T) {
	r := newTestResolver()

	_, err := r.ResolveConfig(context.Background(), "unknown.example.org")
	if err == nil {
		t.Fatal("unknown domain should not fall back to another tenant")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeTenantNotFound {
		t.Errorf("error = %v, want TENANT_NOT_FOUND", err)
	}
}

func TestResolveDeal(t *testing.T) {
	r := newTestResolver()

	doc, err := r.ResolveDeal(context.Background(), "agent-a.com", "Client@Example.COM")
	if err != nil {
		t.Fatalf("ResolveDeal() error = %v", err)
	}
	if doc.ID != "deal-a" {
		t.Errorf("resolved %q, want deal-a", doc.ID)
	}
}

// TestResolveDeal_TenantIsolation は同一メールアドレスのディールが複数の
// テナントに存在する場合、リクエスト元ドメインのディールのみが返る
// ことを確認する。
func TestResolveDeal_TenantIsolation(t *testing.T) {
	r := newTestResolver()

	doc, err := r.ResolveDeal(context.Background(), "agent-b.com", "client@example.com")
	if err != nil {
		t.Fatalf("ResolveDeal() error = %v", err)
	}
	if doc.ID != "deal-b" {
		t.Errorf("resolved %q, want deal-b (never the other tenant's deal)", doc.ID)
	}
}

func TestResolveDeal_MissingEmail(t *testing.T) {
	r := newTestResolver()

	_, err := r.ResolveDeal(context.Background(), "agent-a.com", "  ")
	if err == nil {
		t.Fatal("missing email should be rejected")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeMissingEmail {
		t.Errorf("error = %v, want MISSING_EMAIL", err)
	}
}

func TestResolveDeal_NotFound(t *testing.T) {
	r := newTestResolver()

	_, err := r.ResolveDeal(context.Background(), "agent-a.com", "nobody@example.com")
	if err == nil {
		t.Fatal("unknown client should return not found")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDealNotFound {
		t.Errorf("error = %v, want DEAL_NOT_FOUND", err)
	}
}
