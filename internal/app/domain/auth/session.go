package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-runworld/internal/app/domain/progress"
	"github.com/FACorreiaa/go-runworld/internal/app/middleware"
)

// SessionCookie is the browser session cookie name.
const SessionCookie = "rw_session"

// SessionMiddleware resolves the anonymous user key for every request.
// A valid token (cookie first, then Authorization header) identifies the
// caller; otherwise a fresh key is minted and a new session cookie issued.
// No request is ever rejected for missing identity.
func SessionMiddleware(config JWTConfig) gin.HandlerFunc {
	service := NewJWTService()

	return func(c *gin.Context) {
		var tokenString string

		if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
			tokenString = cookie
		}

		if tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && parts[0] == "Bearer" {
					tokenString = parts[1]
				}
			}
		}

		if tokenString != "" {
			if claims, err := service.ValidateToken(config, tokenString); err == nil {
				middleware.SetUserKey(c, claims.UserKey)
				c.Next()
				return
			}
			config.Logger.Debug("Session token rejected, minting a new identity")
		}

		userKey := progress.MintUserKey()
		token, err := service.GenerateToken(config, userKey)
		if err != nil {
			config.Logger.Error("Failed to mint session token", zap.Error(err))
			// The request still proceeds with an unpersisted identity.
			middleware.SetUserKey(c, userKey)
			c.Next()
			return
		}

		c.SetCookie(SessionCookie, token, int(config.TokenExpiration.Seconds()), "/", "", false, true)
		c.Header("X-User-Key", userKey)
		middleware.SetUserKey(c, userKey)
		c.Next()
	}
}
