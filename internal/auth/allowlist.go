// Package auth はOAuth認証フロー、セッショントークン、管理者許可リストを提供する。
package auth

import "strings"

// Allowlist は管理者として許可されたメールアドレスの集合。
// 起動時に構築され、プロセス稼働中は変更されない。
// 変更はデプロイ（環境変数の更新）によってのみ行う。
type Allowlist struct {
	members map[string]struct{}
}

// NewAllowlist はAllowlistを生成する。
// 各メールアドレスはトリム・小文字化して保持し、空要素は除外する。
func NewAllowlist(emails []string) *Allowlist {
	members := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		normalized := strings.ToLower(strings.TrimSpace(email))
		if normalized != "" {
			members[normalized] = struct{}{}
		}
	}
	return &Allowlist{members: members}
}

// Contains はメールアドレスが許可リストに含まれるかを返す。
// 判定は大文字小文字を区別しない。空のメールアドレスは常に非メンバー。
func (a *Allowlist) Contains(email string) bool {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return false
	}
	_, ok := a.members[normalized]
	return ok
}

// Len は許可リストのエントリ数を返す。起動ログ用。
func (a *Allowlist) Len() int {
	return len(a.members)
}
