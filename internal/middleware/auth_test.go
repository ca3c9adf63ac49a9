package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/dsnworks/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func hsToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestVerifyHS256(t *testing.T) {
	v, err := NewTokenVerifier(config.AuthConfig{JWTSecret: "secret", Issuer: "https://auth.test"})
	require.NoError(t, err)

	valid := hsToken(t, "secret", jwt.MapClaims{"sub": "user-42", "iss": "https://auth.test", "exp": time.Now().Add(time.Minute).Unix()})
	userID, err := v.Verify(valid)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)

	cases := map[string]string{
		"wrong secret":  hsToken(t, "other", jwt.MapClaims{"sub": "u", "iss": "https://auth.test", "exp": time.Now().Add(time.Minute).Unix()}),
		"expired":       hsToken(t, "secret", jwt.MapClaims{"sub": "u", "iss": "https://auth.test", "exp": time.Now().Add(-time.Minute).Unix()}),
		"no expiry":     hsToken(t, "secret", jwt.MapClaims{"sub": "u", "iss": "https://auth.test"}),
		"wrong issuer":  hsToken(t, "secret", jwt.MapClaims{"sub": "u", "iss": "evil", "exp": time.Now().Add(time.Minute).Unix()}),
		"no subject":    hsToken(t, "secret", jwt.MapClaims{"iss": "https://auth.test", "exp": time.Now().Add(time.Minute).Unix()}),
		"garbage token": "a.b.c",
	}
	for name, tok := range cases {
		_, err := v.Verify(tok)
		assert.Error(t, err, name)
	}
}

func TestVerifyRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := NewTokenVerifier(config.AuthConfig{PublicKeyPEM: string(pemKey)})
	require.NoError(t, err)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "rsa-user",
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString(key)
	require.NoError(t, err)

	userID, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "rsa-user", userID)

	// HS256令牌不能通过RS256校验
	_, err = v.Verify(hsToken(t, string(pemKey), jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Minute).Unix()}))
	assert.Error(t, err)

	_, err = NewTokenVerifier(config.AuthConfig{PublicKeyPEM: "not a pem"})
	assert.Error(t, err)
}

func TestVerifyWithoutKeyRejects(t *testing.T) {
	v, err := NewTokenVerifier(config.AuthConfig{})
	require.NoError(t, err)
	_, err = v.Verify(hsToken(t, "anything", jwt.MapClaims{"sub": "u", "exp": time.Now().Add(time.Minute).Unix()}))
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	v, err := NewTokenVerifier(config.AuthConfig{JWTSecret: "secret"})
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(Lang())
	engine.GET("/me", Auth(v), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})

	tok := hsToken(t, "secret", jwt.MapClaims{"sub": "user-7", "exp": time.Now().Add(time.Minute).Unix()})
	for _, header := range []string{"Bearer " + tok, "bearer " + tok} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-7", w.Body.String())
	}

	for _, header := range []string{"", "Bearer ", "Basic abc", tok} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", header)
		req.Header.Set("Accept-Language", "en")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.JSONEq(t, `{"error":"Not authenticated"}`, w.Body.String())
	}
}
