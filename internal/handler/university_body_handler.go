package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/unidocs-api/internal/dto"
	"github.com/noah-isme/unidocs-api/internal/models"
	"github.com/noah-isme/unidocs-api/internal/policy"
	"github.com/noah-isme/unidocs-api/pkg/response"
)

type universityBodyService interface {
	ListPublic(ctx context.Context) ([]models.PublicUniversityBody, error)
	List(ctx context.Context, actor *policy.Actor, query dto.UniversityBodyListQuery) ([]models.UniversityBody, *models.Pagination, error)
	Get(ctx context.Context, actor *policy.Actor, id string) (*models.UniversityBody, error)
	Create(ctx context.Context, actor *policy.Actor, req dto.CreateUniversityBodyRequest, meta models.RequestMeta) (*models.UniversityBody, error)
	Update(ctx context.Context, actor *policy.Actor, id string, req dto.UpdateUniversityBodyRequest, meta models.RequestMeta) (*models.UniversityBody, error)
	Delete(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) error
}

// UniversityBodyHandler serves university body endpoints.
type UniversityBodyHandler struct {
	service universityBodyService
}

// NewUniversityBodyHandler constructs the handler.
func NewUniversityBodyHandler(svc universityBodyService) *UniversityBodyHandler {
	return &UniversityBodyHandler{service: svc}
}

// List godoc
// @Summary List university bodies
// @Description Active bodies for everyone; super admins get the full paginated registry
// @Tags University Bodies
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Param type query string false "Body type"
// @Param search query string false "Name search"
// @Success 200 {object} response.Envelope
// @Router /university-bodies [get]
func (h *UniversityBodyHandler) List(c *gin.Context) {
	actor := actorFromContext(c)
	if !policy.CanManageBodies(actor) {
		bodies, err := h.service.ListPublic(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, bodies, nil)
		return
	}

	var query dto.UniversityBodyListQuery
	if err := bindQuery(c, &query); err != nil {
		response.Error(c, err)
		return
	}
	bodies, pagination, err := h.service.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bodies, pagination)
}

// Get godoc
// @Summary Get university body
// @Tags University Bodies
// @Produce json
// @Param id path string true "Body ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /university-bodies/{id} [get]
func (h *UniversityBodyHandler) Get(c *gin.Context) {
	actor := actorFromContext(c)
	body, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !policy.CanManageBodies(actor) {
		response.JSON(c, http.StatusOK, body.Public(), nil)
		return
	}
	response.JSON(c, http.StatusOK, body, nil)
}

// Create godoc
// @Summary Create university body
// @Tags University Bodies
// @Accept json
// @Produce json
// @Param payload body dto.CreateUniversityBodyRequest true "Body"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /university-bodies [post]
func (h *UniversityBodyHandler) Create(c *gin.Context) {
	var req dto.CreateUniversityBodyRequest
	if err := bindJSON(c, &req, "invalid university body payload"); err != nil {
		response.Error(c, err)
		return
	}
	body, err := h.service.Create(c.Request.Context(), actorFromContext(c), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, body)
}

// Update godoc
// @Summary Update university body
// @Tags University Bodies
// @Accept json
// @Produce json
// @Param id path string true "Body ID"
// @Param payload body dto.UpdateUniversityBodyRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /university-bodies/{id} [put]
func (h *UniversityBodyHandler) Update(c *gin.Context) {
	var req dto.UpdateUniversityBodyRequest
	if err := bindJSON(c, &req, "invalid university body payload"); err != nil {
		response.Error(c, err)
		return
	}
	body, err := h.service.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, body, nil)
}

// Delete godoc
// @Summary Delete university body
// @Description Documents and users of the body are detached, not deleted
// @Tags University Bodies
// @Param id path string true "Body ID"
// @Success 204
// @Router /university-bodies/{id} [delete]
func (h *UniversityBodyHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), actorFromContext(c), c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
