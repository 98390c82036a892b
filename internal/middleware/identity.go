package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"dreamlets-server/internal/auth"
	"dreamlets-server/internal/models"
)

const ownerContextKey = "owner"

// GuestCookieConfig controls the anonymous session cookie.
type GuestCookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// Identity resolves the request owner. A valid bearer token maps to a
// registered account; anything else falls back to a guest session
// identified by a cookie, minted on first contact. Invalid tokens are
// rejected rather than silently demoted to guest.
func Identity(verifier *auth.JWTVerifier, cookie GuestCookieConfig, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header format"})
				return
			}

			claims, err := verifier.VerifyToken(c.Request.Context(), parts[1])
			if err != nil {
				status := http.StatusUnauthorized
				msg := "token is invalid"
				if errors.Is(err, models.ErrTokenExpired) {
					msg = "token has expired"
				}
				c.AbortWithStatusJSON(status, gin.H{"error": msg})
				return
			}

			c.Set(ownerContextKey, models.Owner{ID: claims.UserID})
			c.Next()
			return
		}

		sessionID, err := c.Cookie(cookie.Name)
		if err != nil || sessionID == "" {
			sessionID = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookie.Name, sessionID, int(cookie.TTL.Seconds()), "/", "", cookie.Secure, true)
			log.Debug("Issued guest session", zap.String("sessionID", sessionID))
		}

		c.Set(ownerContextKey, models.Owner{ID: sessionID, Guest: true})
		c.Next()
	}
}

// OwnerFrom extracts the resolved owner from the gin context.
func OwnerFrom(c *gin.Context) (models.Owner, bool) {
	v, ok := c.Get(ownerContextKey)
	if !ok {
		return models.Owner{}, false
	}
	owner, ok := v.(models.Owner)
	return owner, ok
}
