package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/weiwangfds/dsnworks/config"
	apperrors "github.com/weiwangfds/dsnworks/internal/errors"
	"github.com/weiwangfds/dsnworks/internal/logger"
	"github.com/weiwangfds/dsnworks/internal/response"
)

// UserIDKey gin上下文中保存调用方身份的键
const UserIDKey = "user_id"

var (
	errMissingToken = errors.New("missing bearer token")
	errNoKey        = errors.New("no verification key configured")
	errNoSubject    = errors.New("token has no subject")
)

// TokenVerifier 校验身份提供商签发的访问令牌
type TokenVerifier struct {
	keyFunc jwt.Keyfunc
	options []jwt.ParserOption
}

// NewTokenVerifier 根据配置选择HS256共享密钥或RS256公钥
func NewTokenVerifier(cfg config.AuthConfig) (*TokenVerifier, error) {
	v := &TokenVerifier{}

	switch {
	case cfg.PublicKeyPEM != "":
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse auth public key: %w", err)
		}
		v.keyFunc = func(*jwt.Token) (interface{}, error) { return key, nil }
		v.options = append(v.options, jwt.WithValidMethods([]string{"RS256"}))
	case cfg.JWTSecret != "":
		secret := []byte(cfg.JWTSecret)
		v.keyFunc = func(*jwt.Token) (interface{}, error) { return secret, nil }
		v.options = append(v.options, jwt.WithValidMethods([]string{"HS256"}))
	default:
		v.keyFunc = func(*jwt.Token) (interface{}, error) { return nil, errNoKey }
	}

	if cfg.Issuer != "" {
		v.options = append(v.options, jwt.WithIssuer(cfg.Issuer))
	}
	v.options = append(v.options, jwt.WithExpirationRequired())
	return v, nil
}

// Verify 解析令牌并返回subject作为用户ID
func (v *TokenVerifier) Verify(tokenString string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc, v.options...)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenSignatureInvalid
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errNoSubject
	}
	return sub, nil
}

// Auth 要求Bearer令牌，成功后把用户ID写入上下文
func Auth(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, apperrors.Authentication(errMissingToken))
			return
		}

		userID, err := verifier.Verify(tokenString)
		if err != nil {
			logger.WithField("path", c.Request.URL.Path).Debugf("token rejected: %v", err)
			response.Error(c, apperrors.Authentication(err))
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID 当前请求的用户ID，未认证时为空
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
