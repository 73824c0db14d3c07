package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-runworld/internal/app/observability/metrics"
)

// Define typed context keys
type contextKey string

const UserKeyContextKey contextKey = "userKey"

const userKeyGinKey = "user_key"

// SetUserKey stores the resolved anonymous user key on the request context.
// Called by the session middleware only.
func SetUserKey(c *gin.Context, userKey string) {
	c.Set(userKeyGinKey, userKey)
}

// GetUserKeyFromContext extracts the anonymous user key from context.
func GetUserKeyFromContext(c *gin.Context) string {
	if userKey, exists := c.Get(userKeyGinKey); exists {
		if keyStr, ok := userKey.(string); ok {
			return keyStr
		}
	}
	return ""
}

// CreateContextWithUser propagates the user key onto the request's
// context.Context for services that run outside the gin layer.
func CreateContextWithUser(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if key := GetUserKeyFromContext(c); key != "" {
		ctx = context.WithValue(ctx, UserKeyContextKey, key)
	}
	return ctx
}

// CORSMiddleware handles CORS headers
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Admin-Token")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// SecurityMiddleware adds security headers
func SecurityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Writer.Header().Set("X-XSS-Protection", "1; mode=block")
		c.Writer.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		c.Next()
	}
}

// AdminRequired guards the invite-administration endpoints with a static
// token from configuration. An empty configured token disables the surface
// entirely instead of leaving it open.
func AdminRequired(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin surface disabled"})
			c.Abort()
			return
		}

		provided := c.GetHeader("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(adminToken)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid admin token"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// ObservabilityMiddleware adds OpenTelemetry tracing and metrics to HTTP requests
func ObservabilityMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("runworld-http")
	return func(c *gin.Context) {
		start := time.Now()

		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath())
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.url", c.Request.URL.String()),
			attribute.String("client.ip", c.ClientIP()),
		)

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		duration := time.Since(start).Seconds()
		statusCode := c.Writer.Status()

		span.SetAttributes(
			attribute.Int("http.status_code", statusCode),
			attribute.Float64("http.duration", duration),
		)

		m := metrics.Get()
		m.HTTPRequestsTotal.Add(context.Background(), 1,
			metric.WithAttributes(
				attribute.String("method", c.Request.Method),
				attribute.String("path", c.FullPath()),
				attribute.String("status", strconv.Itoa(statusCode)),
			))

		m.HTTPRequestDuration.Record(context.Background(), duration,
			metric.WithAttributes(
				attribute.String("method", c.Request.Method),
				attribute.String("path", c.FullPath()),
			))
	}
}
