package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mocksh/mocksh-backend/internal/config"
	"github.com/mocksh/mocksh-backend/internal/service"
)

const testJWTSecret = "test-secret"

func signTestToken(t *testing.T, secret string, expiresAt time.Time) string {
	t.Helper()
	claims := service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-1",
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: "u1",
		Email:  "user@example.com",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func newJWTTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	authService := service.NewAuthService(&config.Config{JWTSecret: testJWTSecret}, nil, nil)

	r := gin.New()
	r.GET("/protected", RequireUserJWT(authService), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequireUserJWT(t *testing.T) {
	r := newJWTTestRouter()

	cases := []struct {
		name     string
		token    string
		wantCode int
		wantBody string
	}{
		{
			name:     "valid token",
			token:    signTestToken(t, testJWTSecret, time.Now().Add(time.Hour)),
			wantCode: http.StatusOK,
		},
		{
			name:     "expired token",
			token:    signTestToken(t, testJWTSecret, time.Now().Add(-time.Hour)),
			wantCode: http.StatusUnauthorized,
			wantBody: "TOKEN_EXPIRED",
		},
		{
			name:     "wrong signature",
			token:    signTestToken(t, "other-secret", time.Now().Add(time.Hour)),
			wantCode: http.StatusUnauthorized,
			wantBody: "TOKEN_INVALID",
		},
		{
			name:     "garbage token",
			token:    "not-a-jwt",
			wantCode: http.StatusUnauthorized,
			wantBody: "TOKEN_INVALID",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer "+tc.token)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.wantCode, w.Body.String())
			}
			if tc.wantBody != "" && !strings.Contains(w.Body.String(), tc.wantBody) {
				t.Fatalf("body %s does not carry %s", w.Body.String(), tc.wantBody)
			}
		})
	}
}
