package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/unidocs-api/internal/models"
	"github.com/noah-isme/unidocs-api/internal/policy"
	appErrors "github.com/noah-isme/unidocs-api/pkg/errors"
	"github.com/noah-isme/unidocs-api/pkg/logger"
	"github.com/noah-isme/unidocs-api/pkg/response"
)

// Context keys for the authenticated caller.
const (
	ContextUserKey  = "currentUser"
	ContextActorKey = "currentActor"
)

// Authenticator verifies an access token and resolves the caller from the
// current user record, so role, affiliation and deactivation changes apply
// before the token expires.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.JWTClaims, *policy.Actor, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			response.AbortError(c, err)
			return
		}
		claims, actor, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.AbortError(c, err)
			return
		}
		setCaller(c, claims, actor)
		c.Next()
	}
}

// OptionalJWT attaches claims when a token is sent. Requests without an
// Authorization header continue anonymously; a bad or expired token is still
// rejected so clients know to refresh.
func OptionalJWT(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(c.GetHeader("Authorization")) == "" {
			c.Next()
			return
		}
		token, err := bearerToken(c)
		if err != nil {
			response.AbortError(c, err)
			return
		}
		claims, actor, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.AbortError(c, err)
			return
		}
		setCaller(c, claims, actor)
		c.Next()
	}
}

// Claims returns the claims stored by JWT or OptionalJWT.
func Claims(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}

func bearerToken(c *gin.Context) (string, error) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", appErrors.ErrTokenMissing
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.ErrTokenInvalid
	}
	return strings.TrimSpace(parts[1]), nil
}

// Actor returns the caller resolved by JWT or OptionalJWT, nil when anonymous.
func Actor(c *gin.Context) *policy.Actor {
	value, exists := c.Get(ContextActorKey)
	if !exists {
		return nil
	}
	actor, _ := value.(*policy.Actor)
	return actor
}

func setCaller(c *gin.Context, claims *models.JWTClaims, actor *policy.Actor) {
	c.Set(ContextUserKey, claims)
	c.Set(ContextActorKey, actor)
	c.Set(logger.UserIDKey, claims.UserID)
}
