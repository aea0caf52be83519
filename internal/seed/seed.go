// Package seed は開発・デモ環境向けのサンプルコンテンツ投入を提供する。
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/estatebase/internal/model"
	"github.com/hitoshi/estatebase/internal/schema"
	"github.com/hitoshi/estatebase/internal/store"
)

// Seeder はサンプルコンテンツの投入を行う。
// 各ドキュメントタイプについて既存レコードが1件もない場合のみ投入する
// （冪等: 再実行しても重複しない）。
type Seeder struct {
	store     store.DocumentStore
	validator *schema.Validator
	logger    *slog.Logger
}

// NewSeeder はSeederを生成する。
func NewSeeder(docStore store.DocumentStore, validator *schema.Validator, logger *slog.Logger) *Seeder {
	return &Seeder{
		store:     docStore,
		validator: validator,
		logger:    logger,
	}
}

// Run は全ドキュメントタイプのサンプルコンテンツを投入する。
// 投入したドキュメント数を返す。
func (s *Seeder) Run(ctx context.Context) (int, error) {
	total := 0
	for docType, payloads := range sampleContent() {
		inserted, err := s.seedType(ctx, docType, payloads)
		if err != nil {
			return total, err
		}
		total += inserted
	}

	s.logger.Info("seed completed", slog.Int("documents_inserted", total))
	return total, nil
}

// seedType は1ドキュメントタイプ分のサンプルを投入する。
// 既存レコードがある場合はスキップする。
func (s *Seeder) seedType(ctx context.Context, docType string, payloads []map[string]any) (int, error) {
	existing, err := s.store.Query(ctx, store.Query{Type: docType, Limit: 1})
	if err != nil {
		return 0, fmt.Errorf("既存レコードの確認に失敗しました: %w", err)
	}
	if len(existing) > 0 {
		s.logger.Info("seed skipped: documents already exist", slog.String("doc_type", docType))
		return 0, nil
	}

	entitySchema := schema.ForDocType(docType)
	inserted := 0
	for _, payload := range payloads {
		// サンプルも本番と同じ検証を通す
		result := s.validator.Validate(entitySchema, payload)
		if !result.OK() {
			return inserted, fmt.Errorf("サンプルデータの検証に失敗しました (%s): %v", docType, result.Errors)
		}

		if _, err := s.store.Create(ctx, docType, result.Data); err != nil {
			return inserted, fmt.Errorf("サンプルデータの投入に失敗しました (%s): %w", docType, err)
		}
		inserted++
	}

	s.logger.Info("seed inserted",
		slog.String("doc_type", docType),
		slog.Int("count", inserted),
	)
	return inserted, nil
}

// sampleContent はドキュメントタイプごとのサンプルペイロードを返す。
func sampleContent() map[string][]map[string]any {
	return map[string][]map[string]any{
		model.DocTypeCity: {
			{
				"name":        "Austin",
				"slug":        "austin",
				"state":       "TX",
				"description": "<p>Live music, tech jobs, and breakfast tacos.</p>",
				"order":       float64(1),
			},
		},
		model.DocTypeNeighborhood: {
			{
				"name":     "Zilker",
				"slug":     "zilker",
				"tagline":  "Parks, trails, and the springs",
				"vibe":     "Laid-back",
				"avgPrice": "$850k",
				"order":    float64(1),
				"highlights": []any{
					map[string]any{"label": "Walkability", "value": "High"},
					map[string]any{"label": "Schools", "value": "Zilker Elementary"},
				},
			},
			{
				"name":    "Mueller",
				"slug":    "mueller",
				"tagline": "New urbanism on the old airport",
				"order":   float64(2),
			},
		},
		model.DocTypeProperty: {
			{
				"title":       "Modern bungalow near the lake",
				"slug":        "modern-bungalow-near-the-lake",
				"status":      "active",
				"price":       float64(749000),
				"beds":        float64(3),
				"baths":       float64(2),
				"sqft":        float64(1850),
				"address":     "1200 Example St, Austin, TX",
				"description": "<p>Renovated 1940s bungalow with a detached studio.</p>",
				"featured":    true,
			},
		},
		model.DocTypeTestimonial: {
			{
				"author":  "S. Nguyen",
				"quote":   "Sold our house in nine days, above asking.",
				"context": "Seller, Mueller",
				"rating":  float64(5),
				"order":   float64(1),
			},
		},
		model.DocTypeSiteSettings: {
			{
				"agentName":    "Jordan Avery",
				"brokerage":    "Avery Realty Group",
				"phone":        "(512) 555-0134",
				"email":        "jordan@example.com",
				"heroTitle":    "Find your place in Austin",
				"heroSubtitle": "Boutique service, neighborhood expertise.",
			},
		},
	}
}
