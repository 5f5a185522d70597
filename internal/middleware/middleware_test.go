package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/unidocs-api/internal/models"
	"github.com/noah-isme/unidocs-api/internal/policy"
	"github.com/noah-isme/unidocs-api/internal/service"
	appErrors "github.com/noah-isme/unidocs-api/pkg/errors"
	"github.com/noah-isme/unidocs-api/pkg/logger"
)

// stubAuthenticator resolves the actor from roles, which stand in for the
// current user rows and may differ from what the token was issued with.
type stubAuthenticator struct {
	claims map[string]*models.JWTClaims
	roles  map[string]models.UserRole
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*models.JWTClaims, *policy.Actor, error) {
	switch token {
	case "expired":
		return nil, nil, appErrors.ErrTokenExpired
	case "deactivated":
		return nil, nil, appErrors.Clone(appErrors.ErrInactiveAccount, "Account is deactivated")
	}
	claims, ok := s.claims[token]
	if !ok {
		return nil, nil, appErrors.ErrTokenInvalid
	}
	role, ok := s.roles[claims.UserID]
	if !ok {
		role = claims.Role
	}
	return claims, &policy.Actor{UserID: claims.UserID, Role: role}, nil
}

var validator = stubAuthenticator{
	claims: map[string]*models.JWTClaims{
		"admin-token":   {UserID: "u-admin", Role: models.RoleAdmin},
		"sub-token":     {UserID: "u-sub", Role: models.RoleSubAdmin},
		"legacy":        {UserID: "u-legacy", Role: models.UserRole("director")},
		"demoted-token": {UserID: "u-demoted", Role: models.RoleAdmin},
	},
	roles: map[string]models.UserRole{"u-demoted": models.RoleSubAdmin},
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			c.JSON(http.StatusOK, gin.H{"user": ""})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": claims.UserID, "logged": c.GetString(logger.UserIDKey)})
	})
	router.GET("/", handlers...)
	return router
}

func do(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Message string `json:"message"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code, body.Message
}

func TestJWTMissingToken(t *testing.T) {
	rec := do(newRouter(JWT(validator)), "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	code, message := errorCode(t, rec)
	assert.Equal(t, "TOKEN_MISSING", code)
	assert.Equal(t, "No token provided", message)
}

func TestJWTRejectsMalformedAndExpired(t *testing.T) {
	router := newRouter(JWT(validator))

	rec := do(router, "Token admin-token")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	code, _ := errorCode(t, rec)
	assert.Equal(t, "TOKEN_INVALID", code)

	rec = do(router, "Bearer expired")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	code, message := errorCode(t, rec)
	assert.Equal(t, "TOKEN_EXPIRED", code)
	assert.Equal(t, "Token expired", message)
}

func TestJWTStoresClaimsForLogging(t *testing.T) {
	rec := do(newRouter(JWT(validator)), "bearer admin-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":"u-admin","logged":"u-admin"}`, rec.Body.String())
}

func TestOptionalJWT(t *testing.T) {
	router := newRouter(OptionalJWT(validator))

	rec := do(router, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":""}`, rec.Body.String())

	rec = do(router, "Bearer sub-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"u-sub"`)

	rec = do(router, "Bearer expired")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoles(t *testing.T) {
	router := newRouter(JWT(validator), RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))

	assert.Equal(t, http.StatusOK, do(router, "Bearer admin-token").Code)
	assert.Equal(t, http.StatusOK, do(router, "Bearer legacy").Code)

	rec := do(router, "Bearer sub-token")
	require.Equal(t, http.StatusForbidden, rec.Code)
	code, _ := errorCode(t, rec)
	assert.Equal(t, "FORBIDDEN", code)

	unauthenticated := newRouter(RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, do(unauthenticated, "").Code)
}

func TestRequireRolesUsesCurrentRole(t *testing.T) {
	router := newRouter(JWT(validator), RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))

	rec := do(router, "Bearer demoted-token")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(router, "Bearer deactivated")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	code, message := errorCode(t, rec)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, code)
	assert.Equal(t, "Account is deactivated", message)
}

func TestActorStoredWithClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", OptionalJWT(validator), func(c *gin.Context) {
		actor := Actor(c)
		if actor == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, string(actor.Role))
	})

	assert.Equal(t, "anonymous", do(router, "").Body.String())
	assert.Equal(t, "sub_admin", do(router, "Bearer demoted-token").Body.String())
}

func TestMetricsMiddlewareLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/documents/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/documents/a", "/documents/b", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, family := range families {
		if family.GetName() == "unidocs_http_requests_total" {
			found = true
			assert.Len(t, family.GetMetric(), 2)
		}
	}
	assert.True(t, found)
}
