package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/PaulBabatuyi/coova/internal/auth"
)

// ClaimsKey is the gin context key JWTAuth stores verified claims under.
const ClaimsKey = "claims"

// BearerToken extracts the token from an "Authorization: Bearer <t>" value.
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// JWTAuth rejects requests without a valid bearer token. Verified claims are
// put on both the gin context and the request context.
func JWTAuth(j *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := j.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Request = c.Request.WithContext(auth.NewContext(c.Request.Context(), claims))
		c.Next()
	}
}

// RateLimit limits a route per authenticated user, or per client IP when
// the route is public.
func RateLimit(store *LimiterStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if claims, ok := auth.FromContext(c.Request.Context()); ok {
			key = "user:" + claims.UserID
		}
		if !store.Allow(key + "|" + c.FullPath()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// AccessLog writes one structured line per request.
func AccessLog(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		})
		if claims, ok := auth.FromContext(c.Request.Context()); ok {
			entry = entry.WithField("user_id", claims.UserID)
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}
