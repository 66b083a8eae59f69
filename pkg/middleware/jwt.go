package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
// REST APIとWebSocketハンドシェイクの両方でユーザーIDの解決に使用する。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// tokenIssuer はこのAPIが発行するトークンのiss。
const tokenIssuer = "animalbase-api"

// tokenTTL は発行するトークンの既定の有効期間。
const tokenTTL = 24 * time.Hour

// headerKeyUserID はサービス間でユーザーIDを伝播するためのHTTPヘッダーキー。
const headerKeyUserID = "X-User-ID"

// queryKeyToken はWebSocket接続時にトークンを渡すクエリパラメータ名。
const queryKeyToken = "token"

var (
	// ErrMissingToken はリクエストにトークンが含まれていないことを表す。
	ErrMissingToken = errors.New("トークンがありません")
	// ErrMalformedHeader はAuthorizationヘッダーがBearer形式でないことを表す。
	ErrMalformedHeader = errors.New("Bearer トークン形式が不正です")
	// ErrInvalidToken は署名・有効期限・クレームの検証に失敗したことを表す。
	ErrInvalidToken = errors.New("トークンが無効です")
)

// GenerateJWT はユーザー情報から24時間有効なJWTトークンを生成する。
func GenerateJWT(secret, userID, email string) (string, error) {
	return GenerateJWTWithTTL(secret, userID, email, tokenTTL)
}

// GenerateJWTWithTTL は有効期間を指定してJWTトークンを生成する。
// ttlに負の値を渡すと期限切れのトークンになる。
func GenerateJWTWithTTL(secret, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
		UserID: userID,
		Email:  email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseToken はトークン文字列の署名と有効期限を検証し、クレームを返す。
// expクレームが無いトークンとuser_idが空のトークンは無効として扱う。
func ParseToken(secret, tokenString string) (*JWTClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenFromRequest はリクエストからトークン文字列を取り出す。
// Authorizationヘッダー（Bearer）を優先し、無ければ ?token= クエリパラメータを使う。
func TokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			return "", ErrMalformedHeader
		}
		return tokenString, nil
	}

	if tokenString := r.URL.Query().Get(queryKeyToken); tokenString != "" {
		return tokenString, nil
	}
	return "", ErrMissingToken
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "user_id" と "email" を設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": ErrMalformedHeader.Error(),
			})
			return
		}

		claims, err := ParseToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": ErrInvalidToken.Error(),
			})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Header(headerKeyUserID, claims.UserID)
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}
