package realtime

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nao1215/animalbase/pkg/middleware"
)

const (
	// CloseUnauthorized は認証に失敗した接続を閉じるときのクローズコード。
	CloseUnauthorized = 4001
	// reasonUnauthorized は認証失敗時のクローズ理由。
	reasonUnauthorized = "unauthorized"
)

var (
	// ErrMissingToken は接続要求に資格情報が無いことを表す。
	ErrMissingToken = errors.New("資格情報がありません")
	// ErrInvalidToken は資格情報が不正・期限切れであることを表す。
	ErrInvalidToken = errors.New("資格情報が無効です")
)

// Authenticator は接続要求のJWTを検証してユーザーIDを解決する。
type Authenticator struct {
	secret string
}

// NewAuthenticator は署名検証用の秘密鍵を持つAuthenticatorを生成する。
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: secret}
}

// Authenticate は ?token= クエリパラメータかAuthorizationヘッダーのJWTを検証し、
// ユーザーIDを返す。
func (a *Authenticator) Authenticate(r *http.Request) (string, error) {
	tokenString, err := middleware.TokenFromRequest(r)
	if errors.Is(err, middleware.ErrMissingToken) {
		return "", ErrMissingToken
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, err := middleware.ParseToken(a.secret, tokenString)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims.UserID, nil
}

// rejectReason はメトリクス用に認証エラーを分類する。
func rejectReason(err error) string {
	if errors.Is(err, ErrMissingToken) {
		return "missing_token"
	}
	return "invalid_token"
}
