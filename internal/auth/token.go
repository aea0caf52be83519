package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/estatebase/internal/model"
)

// TokenManager は署名付きセッショントークンの発行と検証を行う。
// トークンはHS256で署名されたJWTで、HTTP Only Cookieに格納される。
// サーバー側にセッション状態は持たない。
type TokenManager struct {
	secret []byte
	issuer string
	maxAge time.Duration
}

// NewTokenManager はTokenManagerを生成する。
// secretはHS256の安全性のため32文字以上を推奨する。
func NewTokenManager(secret string, maxAge time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: "estatebase",
		maxAge: maxAge,
	}
}

// sessionClaims は標準クレームに管理者のメールアドレスと表示名を加えたもの。
type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Issue は管理者のセッショントークンを発行する。
// メールアドレスは小文字化してクレームに含める。
func (m *TokenManager) Issue(user model.AdminUser) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email: strings.ToLower(strings.TrimSpace(user.Email)),
		Name:  user.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, nil
}

// Verify はセッショントークンを検証し、管理者情報を返す。
// 署名不正・期限切れ・発行者不一致はすべてエラーとなる（fail closed）。
// メールクレームの有無の判定は呼び出し側（ゲート）が行う。
func (m *TokenManager) Verify(tokenString string) (*model.AdminUser, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("session token is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token claims")
	}

	if claims.Issuer != m.issuer {
		return nil, fmt.Errorf("invalid issuer: expected %s, got %s", m.issuer, claims.Issuer)
	}

	return &model.AdminUser{
		ID:    claims.Subject,
		Email: strings.ToLower(strings.TrimSpace(claims.Email)),
		Name:  claims.Name,
	}, nil
}
