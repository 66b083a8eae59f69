package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSecret はテスト用のJWTシークレット。
const testSecret = "test-secret-key-for-unit-tests"

// TestGenerateJWT はGenerateJWT関数を検証する。
func TestGenerateJWT(t *testing.T) {
	t.Parallel()

	before := time.Now()
	tokenStr, err := GenerateJWT(testSecret, "user-123", "test@example.com")
	if err != nil {
		t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
	}

	claims, err := ParseToken(testSecret, tokenStr)
	if err != nil {
		t.Fatalf("ParseToken()でエラーが発生: %v", err)
	}
	if claims.UserID != "user-123" || claims.Email != "test@example.com" {
		t.Errorf("claims: got user_id=%q email=%q", claims.UserID, claims.Email)
	}
	if claims.Issuer != tokenIssuer {
		t.Errorf("Issuer: got %q, want %q", claims.Issuer, tokenIssuer)
	}
	if d := claims.ExpiresAt.Sub(before.Add(tokenTTL)); d < -time.Minute || d > time.Minute {
		t.Errorf("ExpiresAt: got %v, want 約%v後", claims.ExpiresAt.Time, tokenTTL)
	}

	token, _, err := jwt.NewParser().ParseUnverified(tokenStr, &JWTClaims{})
	if err != nil {
		t.Fatalf("トークンのパースに失敗: %v", err)
	}
	if token.Method.Alg() != "HS256" {
		t.Errorf("署名アルゴリズム: got %q, want HS256", token.Method.Alg())
	}

	if _, err := ParseToken("wrong-secret", tokenStr); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("異なるシークレット: got %v, want ErrInvalidToken", err)
	}
}

// TestJWTAuth はJWTAuthミドルウェアを検証する。
func TestJWTAuth(t *testing.T) {
	t.Parallel()

	valid, err := GenerateJWT(testSecret, "user-ok", "ok@example.com")
	if err != nil {
		t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
	}
	expired, err := GenerateJWTWithTTL(testSecret, "user-old", "old@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWTWithTTL()でエラーが発生: %v", err)
	}
	foreign, err := GenerateJWT("other-secret", "user-ok", "ok@example.com")
	if err != nil {
		t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUserID string
	}{
		{name: "有効なトークンでユーザーIDが設定されること", header: "Bearer " + valid, wantStatus: http.StatusOK, wantUserID: "user-ok"},
		{name: "Authorizationヘッダーが無い場合401が返ること", wantStatus: http.StatusUnauthorized},
		{name: "Bearer接頭辞が無い場合401が返ること", header: valid, wantStatus: http.StatusUnauthorized},
		{name: "JWTでない文字列で401が返ること", header: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized},
		{name: "異なるシークレットで署名されたトークンで401が返ること", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized},
		{name: "期限切れトークンで401が返ること", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := gin.New()
			router.Use(JWTAuth(testSecret))
			router.GET("/api/v1/notifications", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c)})
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("ステータスコード: got %d, want %d", w.Code, tt.wantStatus)
			}

			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("レスポンスボディのパースに失敗: %v", err)
			}
			if tt.wantStatus != http.StatusOK {
				if body["error"] == "" {
					t.Error("errorフィールドが空")
				}
				return
			}
			if body["user_id"] != tt.wantUserID {
				t.Errorf("user_id: got %q, want %q", body["user_id"], tt.wantUserID)
			}
			if got := w.Header().Get(headerKeyUserID); got != tt.wantUserID {
				t.Errorf("%s: got %q, want %q", headerKeyUserID, got, tt.wantUserID)
			}
		})
	}
}

// TestGetUserID はGetUserID関数を検証する。
func TestGetUserID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		set   bool
		want  string
	}{
		{name: "文字列のuser_idを取得できること", value: "user-1", set: true, want: "user-1"},
		{name: "未設定なら空文字列が返ること"},
		{name: "文字列以外なら空文字列が返ること", value: 123, set: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			if tt.set {
				c.Set("user_id", tt.value)
			}
			if got := GetUserID(c); got != tt.want {
				t.Errorf("GetUserID(): got %q, want %q", got, tt.want)
			}
		})
	}
}

// TestParseToken はParseToken関数を検証する。
func TestParseToken(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンからクレームを取得できること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-parse", "parse@example.com")
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		claims, err := ParseToken(testSecret, tokenStr)
		if err != nil {
			t.Fatalf("ParseToken()でエラーが発生: %v", err)
		}
		if claims.UserID != "user-parse" {
			t.Errorf("UserID = %q, want %q", claims.UserID, "user-parse")
		}
	})

	t.Run("空文字列はErrMissingTokenになること", func(t *testing.T) {
		t.Parallel()

		_, err := ParseToken(testSecret, "")
		if !errors.Is(err, ErrMissingToken) {
			t.Errorf("err = %v, want ErrMissingToken", err)
		}
	})

	t.Run("期限切れトークンはErrInvalidTokenになること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWTWithTTL(testSecret, "user-expired", "expired@example.com", -time.Minute)
		if err != nil {
			t.Fatalf("GenerateJWTWithTTL()でエラーが発生: %v", err)
		}

		_, err = ParseToken(testSecret, tokenStr)
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("err = %v, want ErrInvalidToken", err)
		}
		if !errors.Is(err, jwt.ErrTokenExpired) {
			t.Errorf("err = %v, want jwt.ErrTokenExpired を含むこと", err)
		}
	})

	t.Run("expクレームが無いトークンは無効であること", func(t *testing.T) {
		t.Parallel()

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{UserID: "user-noexp"})
		tokenStr, err := token.SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("トークンの署名に失敗: %v", err)
		}

		if _, err := ParseToken(testSecret, tokenStr); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("err = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("user_idが空のトークンは無効であること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "", "nouser@example.com")
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		if _, err := ParseToken(testSecret, tokenStr); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("err = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("HS256以外のアルゴリズムは拒否されること", func(t *testing.T) {
		t.Parallel()

		token := jwt.NewWithClaims(jwt.SigningMethodHS512, JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			UserID: "user-hs512",
		})
		tokenStr, err := token.SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("トークンの署名に失敗: %v", err)
		}

		if _, err := ParseToken(testSecret, tokenStr); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("err = %v, want ErrInvalidToken", err)
		}
	})
}

// TestTokenFromRequest はTokenFromRequest関数を検証する。
func TestTokenFromRequest(t *testing.T) {
	t.Parallel()

	t.Run("Bearerヘッダーからトークンを取得できること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set("Authorization", "Bearer header-token")

		got, err := TokenFromRequest(req)
		if err != nil {
			t.Fatalf("TokenFromRequest()でエラーが発生: %v", err)
		}
		if got != "header-token" {
			t.Errorf("token = %q, want %q", got, "header-token")
		}
	})

	t.Run("クエリパラメータからトークンを取得できること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/ws?token=query-token", nil)

		got, err := TokenFromRequest(req)
		if err != nil {
			t.Fatalf("TokenFromRequest()でエラーが発生: %v", err)
		}
		if got != "query-token" {
			t.Errorf("token = %q, want %q", got, "query-token")
		}
	})

	t.Run("ヘッダーがクエリより優先されること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/ws?token=query-token", nil)
		req.Header.Set("Authorization", "Bearer header-token")

		got, _ := TokenFromRequest(req)
		if got != "header-token" {
			t.Errorf("token = %q, want %q", got, "header-token")
		}
	})

	t.Run("Bearer接頭辞が無い場合はErrMalformedHeaderになること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set("Authorization", "Basic abc")

		if _, err := TokenFromRequest(req); !errors.Is(err, ErrMalformedHeader) {
			t.Errorf("err = %v, want ErrMalformedHeader", err)
		}
	})

	t.Run("トークンが無い場合はErrMissingTokenになること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/ws", nil)

		if _, err := TokenFromRequest(req); !errors.Is(err, ErrMissingToken) {
			t.Errorf("err = %v, want ErrMissingToken", err)
		}
	})
}
