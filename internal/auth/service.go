package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/estatebase/internal/model"
)

// TokenIssuer はセッショントークンの発行インターフェース。
type TokenIssuer interface {
	Issue(user model.AdminUser) (string, error)
}

// Service は管理者認証のユースケースを提供する。
// OAuthフローの結果を許可リストと突き合わせ、許可された場合のみ
// セッショントークンを発行する。
type Service struct {
	oauth     OAuthProvider
	tokens    TokenIssuer
	allowlist *Allowlist
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(oauth OAuthProvider, tokens TokenIssuer, allowlist *Allowlist, logger *slog.Logger) *Service {
	return &Service{
		oauth:     oauth,
		tokens:    tokens,
		allowlist: allowlist,
		logger:    logger,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// GenerateState はCSRF対策用のstateパラメータを生成する。
func (s *Service) GenerateState() string {
	return uuid.NewString()
}

// HandleCallback はOAuthコールバックを処理し、セッショントークンを発行する。
// メールアドレスが許可リストに含まれない場合はNOT_ALLOWLISTEDエラーを返し、
// 拒否されたメールアドレスはログにのみ記録する。
func (s *Service) HandleCallback(ctx context.Context, code string) (string, *model.AdminUser, error) {
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("OAuthコード交換に失敗しました: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(userInfo.Email))
	if email == "" {
		s.logger.Warn("oauth callback returned empty email", slog.String("provider", userInfo.Provider))
		return "", nil, model.NewUnauthenticatedError()
	}

	if !s.allowlist.Contains(email) {
		s.logger.Warn("admin access denied: email not in allowlist",
			slog.String("email", email),
		)
		return "", nil, model.NewNotAllowlistedError()
	}

	user := model.AdminUser{
		ID:    userInfo.ProviderUserID,
		Email: email,
		Name:  userInfo.Name,
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", nil, fmt.Errorf("セッショントークンの発行に失敗しました: %w", err)
	}

	s.logger.Info("admin logged in", slog.String("email", email))
	return token, &user, nil
}
