// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/estatebase/internal/model"
	"github.com/hitoshi/estatebase/internal/store"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Category string   `json:"category"`
	Action   string   `json:"action"`
	Details  []string `json:"details,omitempty"`
}

// documentResponse はドキュメントのAPIレスポンス。
// dataのフィールドはトップレベルに展開し、システムフィールドを併置する。
type documentResponse map[string]any

// toDocumentResponse はmodel.DocumentからAPIレスポンスに変換する。
func toDocumentResponse(doc *model.Document) documentResponse {
	resp := make(documentResponse, len(doc.Data)+4)
	for k, v := range doc.Data {
		resp[k] = v
	}
	resp["id"] = doc.ID
	resp["docType"] = doc.Type
	resp["createdAt"] = doc.CreatedAt
	resp["updatedAt"] = doc.UpdatedAt
	return resp
}

// toDocumentListResponse はドキュメントのスライスをAPIレスポンスに変換する。
// 該当なしの場合もnullではなく空配列を返す。
func toDocumentListResponse(docs []*model.Document) []documentResponse {
	result := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		result = append(result, toDocumentResponse(doc))
	}
	return result
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
		Details:  apiErr.Details,
	})
}

// handleServiceError はサービス層・ストア層から返されたエラーを
// 適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	// ストアのセンチネルエラーを先に判定する
	switch {
	case errors.Is(err, store.ErrDocumentNotFound):
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewDocumentNotFoundError(""))
		return
	case errors.Is(err, store.ErrAssetNotFound):
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     model.ErrCodeAssetNotFound,
			Message:  "指定されたアセットが見つかりません。",
			Category: "content",
			Action:   "アセットIDを確認してください。",
		})
		return
	case errors.Is(err, store.ErrAssetTooLarge):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUploadTooLargeError(store.MaxAssetBytes))
		return
	case errors.Is(err, store.ErrUnsupportedMimeType):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUnsupportedMimeError(""))
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeNotAllowlisted:
		return http.StatusForbidden
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidRequest,
		model.ErrCodeMissingID, model.ErrCodeInvalidID, model.ErrCodeMissingEmail,
		model.ErrCodeUploadTooLarge, model.ErrCodeUnsupportedMime:
		return http.StatusBadRequest
	case model.ErrCodeDocumentNotFound, model.ErrCodeTenantNotFound,
		model.ErrCodeDealNotFound, model.ErrCodeAssetNotFound:
		return http.StatusNotFound
	case model.ErrCodeSeedDisabled:
		return http.StatusForbidden
	case model.ErrCodeOAuthFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
