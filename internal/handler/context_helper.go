package handler

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/unidocs-api/internal/middleware"
	"github.com/noah-isme/unidocs-api/internal/models"
	"github.com/noah-isme/unidocs-api/internal/policy"
	appErrors "github.com/noah-isme/unidocs-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// actorFromContext returns nil for anonymous requests.
func actorFromContext(c *gin.Context) *policy.Actor {
	return middleware.Actor(c)
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

// invalidInput reports a request that could not be decoded. The decoder error
// is kept for logs and message goes into the field details.
func invalidInput(err error, field, message string) error {
	wrapped := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	wrapped.Details = []appErrors.FieldError{{Field: field, Message: message}}
	return wrapped
}

func bindJSON(c *gin.Context, dest interface{}, message string) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return invalidInput(err, "body", message)
	}
	return nil
}

// bindOptionalJSON accepts an empty body and leaves dest untouched.
func bindOptionalJSON(c *gin.Context, dest interface{}, message string) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		return invalidInput(err, "body", message)
	}
	return nil
}

func bindQuery(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindQuery(dest); err != nil {
		return invalidInput(err, "query", "invalid query parameters")
	}
	return nil
}

func blankToNil(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return v
}
