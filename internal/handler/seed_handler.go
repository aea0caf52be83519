package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/estatebase/internal/model"
)

// SeedRunner はシードハンドラーが必要とするインターフェース。
type SeedRunner interface {
	Run(ctx context.Context) (int, error)
}

// SeedHandler はサンプルコンテンツ投入のHTTPハンドラー。
type SeedHandler struct {
	seeder  SeedRunner
	enabled bool
}

// NewSeedHandler はSeedHandlerを生成する。
func NewSeedHandler(seeder SeedRunner, enabled bool) *SeedHandler {
	return &SeedHandler{
		seeder:  seeder,
		enabled: enabled,
	}
}

// Seed はサンプルコンテンツを投入する。
// POST /admin/seed
// SEED_ENABLEDが無効な環境では403を返す。投入は冪等で、
// 既存レコードがあるタイプはスキップされる。
func (h *SeedHandler) Seed(w http.ResponseWriter, r *http.Request) {
	if !h.enabled {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewSeedDisabledError())
		return
	}

	inserted, err := h.seeder.Run(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"inserted": inserted,
	})
}
