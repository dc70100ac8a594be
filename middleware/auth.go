package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/coderoom-server/models"
)

const (
	CtxUser   = "user"
	CtxUserID = "userID"
	CtxRoom   = "roomObj"
)

// TokenVerifier turns a bearer token into a user id.
type TokenVerifier interface {
	VerifyToken(token string) (uint, error)
}

// UserFinder loads the authenticated user.
type UserFinder interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
}

type authOptions struct {
	queryToken bool
}

// AuthOption tunes AuthJWT.
type AuthOption func(*authOptions)

// AllowQueryToken accepts ?token= when no Authorization header is sent.
// Browsers cannot set headers on websocket upgrades, so only the socket route
// should use it.
func AllowQueryToken() AuthOption {
	return func(o *authOptions) { o.queryToken = true }
}

// AuthJWT checks Authorization: Bearer <token>, loads the user and puts it in
// the context.
func AuthJWT(tokens TokenVerifier, users UserFinder, opts ...AuthOption) gin.HandlerFunc {
	var o authOptions
	for _, opt := range opts {
		opt(&o)
	}
	return func(c *gin.Context) {
		rawToken := bearerToken(c, o.queryToken)
		if rawToken == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Missing or invalid Authorization header"})
			return
		}

		uid, err := tokens.VerifyToken(rawToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
			return
		}

		user, err := users.FindByID(c.Request.Context(), uid)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "User not found"})
			return
		}

		c.Set(CtxUser, *user)
		c.Set(CtxUserID, user.ID)
		c.Next()
	}
}

func bearerToken(c *gin.Context, allowQuery bool) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "bearer ") {
			return ""
		}
		return strings.TrimSpace(authHeader[7:])
	}
	if allowQuery {
		return c.Query("token")
	}
	return ""
}

// CurrentUserID returns the id set by AuthJWT.
func CurrentUserID(c *gin.Context) uint {
	return c.GetUint(CtxUserID)
}

// CurrentUser returns the user set by AuthJWT.
func CurrentUser(c *gin.Context) models.User {
	return c.MustGet(CtxUser).(models.User)
}
