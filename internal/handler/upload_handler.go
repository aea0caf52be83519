package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/estatebase/internal/model"
	"github.com/hitoshi/estatebase/internal/store"
)

// UploadMetrics はアップロード拒否の計測に使用するインターフェース。
// metrics.Collectorの部分集合として定義する。
type UploadMetrics interface {
	RecordUploadRejected(reason string)
}

// UploadHandler はアセットのアップロードと配信のHTTPハンドラー。
type UploadHandler struct {
	assets   store.AssetStore
	maxBytes int64
	metrics  UploadMetrics
	logger   *slog.Logger
}

// NewUploadHandler はUploadHandlerを生成する。metricsはnilでもよい。
func NewUploadHandler(assets store.AssetStore, maxBytes int64, metrics UploadMetrics, logger *slog.Logger) *UploadHandler {
	if maxBytes <= 0 || maxBytes > store.MaxAssetBytes {
		maxBytes = store.MaxAssetBytes
	}
	return &UploadHandler{
		assets:   assets,
		maxBytes: maxBytes,
		metrics:  metrics,
		logger:   logger,
	}
}

// Upload は画像アセットのアップロードを処理する。
// POST /admin/upload (multipart/form-data, フィールド名 "file")
// サイズとMIMEタイプはストアへ渡す前に検証する。MIMEタイプは
// クライアント申告ではなく先頭バイトのスニッフィングで判定する。
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// multipart全体のメモリ上限。超過分は一時ファイルに退避される。
	if err := r.ParseMultipartForm(h.maxBytes + 1); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("multipartフォームの解析に失敗しました"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("fileフィールドが必要です"))
		return
	}
	defer file.Close()

	// 上限+1バイトまで読み、超過を検出する
	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("ファイルの読み取りに失敗しました"))
		return
	}
	if int64(len(data)) > h.maxBytes {
		h.recordRejection("too_large")
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUploadTooLargeError(h.maxBytes))
		return
	}

	mimeType := http.DetectContentType(data)
	// DetectContentTypeはSVGをtext/xmlと判定するため、申告値がSVGの場合のみ補正する
	if header.Header.Get("Content-Type") == "image/svg+xml" &&
		(mimeType == "text/xml; charset=utf-8" || mimeType == "text/plain; charset=utf-8") {
		mimeType = "image/svg+xml"
	}

	if err := store.ValidateAsset(int64(len(data)), mimeType); err != nil {
		h.recordRejection("unsupported_mime")
		handleServiceError(w, err)
		return
	}

	asset, err := h.assets.Upload(r.Context(), data, mimeType, header.Filename)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.logger.Info("asset uploaded",
		slog.String("asset_id", asset.ID),
		slog.String("mime_type", asset.MimeType),
		slog.Int64("size_bytes", asset.SizeBytes),
	)

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        asset.ID,
		"url":       asset.URL,
		"filename":  asset.Filename,
		"mimeType":  asset.MimeType,
		"sizeBytes": asset.SizeBytes,
	})
}

// Serve はアセット本体を配信する。
// GET /assets/{id}
func (h *UploadHandler) Serve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingIDError())
		return
	}

	asset, data, err := h.assets.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", asset.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(asset.SizeBytes, 10))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *UploadHandler) recordRejection(reason string) {
	if h.metrics != nil {
		h.metrics.RecordUploadRejected(reason)
	}
}
