package model

// AdminUser は認証済み管理者の最小限のユーザー情報を表す。
// 署名付きセッショントークンからリクエストごとに導出され、永続化しない。
// Emailは小文字化済み。トークン中のその他のクレームは信用しない。
type AdminUser struct {
	ID    string
	Email string
	Name  string
}
