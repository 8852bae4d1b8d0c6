package api

import (
	"crypto/subtle"
	"strings"

	"wallet-custody-go/internal/apperr"
	"wallet-custody-go/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const principalKey = "principal"

// OperatorAuth accepts HS256 bearer tokens and attaches the subject as the acting principal
func OperatorAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			abortWithError(c, apperr.Unauthorized("bearer token required"))
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return []byte(jwtSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			zap.L().Debug("Rejected operator token", zap.Error(err))
			abortWithError(c, apperr.Unauthorized("invalid or expired token"))
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			abortWithError(c, apperr.Unauthorized("token has no subject"))
			return
		}

		c.Set(principalKey, subject)
		c.Request = c.Request.WithContext(models.WithPrincipal(c.Request.Context(), subject))
		c.Next()
	}
}

// TriggerAuth guards scheduler-facing routes with a shared bearer secret
func TriggerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			abortWithError(c, apperr.Unauthorized("invalid trigger secret"))
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
