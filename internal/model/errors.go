// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string   // エラーコード
	Message  string   // エラーメッセージ
	Category string   // カテゴリ: auth, validation, content, tenant, system
	Action   string   // ユーザー向け対処方法
	Details  []string // フィールド単位のエラー詳細（バリデーション失敗時のみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated  = "UNAUTHENTICATED"
	ErrCodeNotAllowlisted   = "NOT_ALLOWLISTED"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeMissingID        = "MISSING_ID"
	ErrCodeInvalidID        = "INVALID_ID"
	ErrCodeDocumentNotFound = "DOCUMENT_NOT_FOUND"
	ErrCodeTenantNotFound   = "TENANT_NOT_FOUND"
	ErrCodeDealNotFound     = "DEAL_NOT_FOUND"
	ErrCodeMissingEmail     = "MISSING_EMAIL"
	ErrCodeUploadTooLarge   = "UPLOAD_TOO_LARGE"
	ErrCodeUnsupportedMime  = "UNSUPPORTED_MIME_TYPE"
	ErrCodeAssetNotFound    = "ASSET_NOT_FOUND"
	ErrCodeSeedDisabled     = "SEED_DISABLED"
	ErrCodeOAuthFailed      = "OAUTH_FAILED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewUnauthenticatedError は未認証エラーを生成する。
// セッションの欠如・失効・署名不正はすべて同一のメッセージに潰す（fail closed）。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewNotAllowlistedError は許可リスト外エラーを生成する。
// 拒否されたメールアドレスはログにのみ記録し、レスポンスには含めない。
func NewNotAllowlistedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAllowlisted,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者として許可されたアカウントでログインしてください。",
	}
}

// NewValidationFailedError はスキーマ検証失敗エラーを生成する。
// detailsには「フィールド名: 理由」形式のメッセージを全件含める。
func NewValidationFailedError(details []string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "各フィールドのエラーを修正して再度送信してください。",
		Details:  details,
	}
}

// NewInvalidRequestError はリクエスト形式不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewMissingIDError は更新対象ID欠落エラーを生成する。
func NewMissingIDError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingID,
		Message:  "更新対象のIDが指定されていません。",
		Category: "validation",
		Action:   "idフィールドを含めて再度送信してください。",
	}
}

// NewInvalidIDError は識別子の文字種不正エラーを生成する。
// 英数字とハイフン・アンダースコア以外を含むIDはクエリへの注入を防ぐため拒否する。
func NewInvalidIDError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("不正なID形式です: %s", id),
		Category: "validation",
		Action:   "IDには英数字、ハイフン、アンダースコアのみ使用できます。",
	}
}

// NewDocumentNotFoundError はドキュメント未検出エラーを生成する。
func NewDocumentNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeDocumentNotFound,
		Message:  fmt.Sprintf("指定されたドキュメントが見つかりません: %s", id),
		Category: "content",
		Action:   "IDを確認してください。",
	}
}

// NewTenantNotFoundError はテナント未検出エラーを生成する。
// 他テナントへのフォールバックは分離違反となるため行わない。
func NewTenantNotFoundError(domain string) *APIError {
	return &APIError{
		Code:     ErrCodeTenantNotFound,
		Message:  fmt.Sprintf("指定されたドメインのサイト設定が見つかりません: %s", domain),
		Category: "tenant",
		Action:   "ドメインの設定状況を確認してください。",
	}
}

// NewDealNotFoundError はアクティブディール未検出エラーを生成する。
func NewDealNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeDealNotFound,
		Message:  "該当する取引情報が見つかりません。",
		Category: "tenant",
		Action:   "メールアドレスを確認してください。",
	}
}

// NewMissingEmailError はメールアドレス未指定エラーを生成する。
func NewMissingEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingEmail,
		Message:  "メールアドレスが指定されていません。",
		Category: "validation",
		Action:   "emailクエリパラメータを指定してください。",
	}
}

// NewUploadTooLargeError はアップロードサイズ超過エラーを生成する。
func NewUploadTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeUploadTooLarge,
		Message:  fmt.Sprintf("ファイルサイズが上限（%dMB）を超えています。", maxBytes/(1024*1024)),
		Category: "validation",
		Action:   "ファイルを圧縮するか、より小さい画像をアップロードしてください。",
	}
}

// NewUnsupportedMimeError は非対応MIMEタイプエラーを生成する。
func NewUnsupportedMimeError(mimeType string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedMime,
		Message:  fmt.Sprintf("対応していないファイル形式です: %s", mimeType),
		Category: "validation",
		Action:   "JPEG、PNG、WebP、GIF、SVGのいずれかの画像をアップロードしてください。",
	}
}

// NewSeedDisabledError はシード機能無効エラーを生成する。
func NewSeedDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeSeedDisabled,
		Message:  "シード機能はこの環境では無効です。",
		Category: "system",
		Action:   "SEED_ENABLEDを有効にした環境でのみ実行できます。",
	}
}

// NewOAuthFailedError はOAuthフロー失敗エラーを生成する。
func NewOAuthFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeOAuthFailed,
		Message:  "ログイン処理に失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度ログインしてください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
