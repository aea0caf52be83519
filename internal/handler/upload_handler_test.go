package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/estatebase/internal/model"
	"github.com/hitoshi/estatebase/internal/store"
)

func newChiRouterForServe(h *UploadHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/assets/{id}", h.Serve)
	return r
}

// pngBytes は最小のPNGシグネチャを持つテストデータを返す。
// http.DetectContentTypeがimage/pngと判定する。
func pngBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte("\x89PNG\r\n\x1a\n"))
	return data
}

func multipartBody(t *testing.T, filename string, data []byte) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	part.Write(data)
	writer.Close()
	return &buf, writer.FormDataContentType()
}

func newTestUploadHandler(maxBytes int64) (*UploadHandler, *memoryAssetStore) {
	assets := newMemoryAssetStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewUploadHandler(assets, maxBytes, nil, logger), assets
}

func TestUpload_PNG(t *testing.T) {
	h, assets := newTestUploadHandler(1 << 20)

	body, contentType := multipartBody(t, "hero.png", pngBytes(2048))
	req := httptest.NewRequest(http.MethodPost, "/admin/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("response should be JSON: %v", err)
	}
	if resp["mimeType"] != "image/png" {
		t.Errorf("mimeType = %v, want sniffed image/png", resp["mimeType"])
	}
	if resp["url"] == "" || resp["url"] == nil {
		t.Error("response should include asset URL")
	}
	if len(assets.assets) != 1 {
		t.Errorf("stored assets = %d, want 1", len(assets.assets))
	}
}

func TestUpload_TooLarge(t *testing.T) {
	h, assets := newTestUploadHandler(1024)

	body, contentType := multipartBody(t, "big.png", pngBytes(2048))
	req := httptest.NewRequest(http.MethodPost, "/admin/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp apiErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Code != model.ErrCodeUploadTooLarge {
		t.Errorf("code = %q, want UPLOAD_TOO_LARGE", resp.Code)
	}
	if len(assets.assets) != 0 {
		t.Error("oversized upload must not reach the store")
	}
}

func TestUpload_UnsupportedMimeSniffed(t *testing.T) {
	h, assets := newTestUploadHandler(1 << 20)

	// 拡張子は.pngでも中身がPDFなら拒否される（スニッフィング判定）
	body, contentType := multipartBody(t, "fake.png", []byte("%PDF-1.7 not an image"))
	req := httptest.NewRequest(http.MethodPost, "/admin/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(assets.assets) != 0 {
		t.Error("unsupported upload must not reach the store")
	}
}

func TestUpload_MissingFileField(t *testing.T) {
	h, _ := newTestUploadHandler(1 << 20)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.WriteField("other", "value")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/admin/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServe_Asset(t *testing.T) {
	h, assets := newTestUploadHandler(1 << 20)

	data := pngBytes(128)
	asset, err := assets.Upload(context.Background(), data, "image/png", "x.png")
	if err != nil {
		t.Fatalf("setup upload failed: %v", err)
	}

	// chiのURLパラメータを通すため、ルーター経由で配信を検証する
	req := httptest.NewRequest(http.MethodGet, "/assets/"+asset.ID, nil)
	rec := httptest.NewRecorder()
	r := newChiRouterForServe(h)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Error("served bytes should match stored asset")
	}
}

func TestServe_NotFound(t *testing.T) {
	h, _ := newTestUploadHandler(1 << 20)

	r := newChiRouterForServe(h)
	req := httptest.NewRequest(http.MethodGet, "/assets/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestUpload_ValidationBeforeStore はストア側の検証も通ることの回帰テスト。
func TestUpload_ValidationBeforeStore(t *testing.T) {
	if err := store.ValidateAsset(int64(len(pngBytes(64))), "image/png"); err != nil {
		t.Errorf("ValidateAsset() = %v, want nil", err)
	}
}
