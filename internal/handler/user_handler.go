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

type userService interface {
	List(ctx context.Context, actor *policy.Actor, query dto.UserListQuery) ([]models.User, *models.Pagination, error)
	Get(ctx context.Context, actor *policy.Actor, id string) (*models.User, error)
	Create(ctx context.Context, actor *policy.Actor, req dto.CreateUserRequest, meta models.RequestMeta) (*models.User, error)
	Update(ctx context.Context, actor *policy.Actor, id string, req dto.UpdateUserRequest, meta models.RequestMeta) (*models.User, error)
	Delete(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) error
	ToggleStatus(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) (*models.User, error)
}

// UserHandler manages user endpoints.
type UserHandler struct {
	service userService
}

// NewUserHandler constructs a user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users
// @Tags Users
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Param role query string false "Role filter"
// @Param is_active query bool false "Active filter"
// @Param university_body_id query string false "Body filter"
// @Param search query string false "Name or email search"
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	var query dto.UserListQuery
	if err := bindQuery(c, &query); err != nil {
		response.Error(c, err)
		return
	}
	users, pagination, err := h.service.List(c.Request.Context(), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// Get godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Create godoc
// @Summary Create user
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body dto.CreateUserRequest true "User"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := bindJSON(c, &req, "invalid user payload"); err != nil {
		response.Error(c, err)
		return
	}
	user, err := h.service.Create(c.Request.Context(), actorFromContext(c), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Update godoc
// @Summary Update user
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.UpdateUserRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	var req dto.UpdateUserRequest
	if err := bindJSON(c, &req, "invalid user payload"); err != nil {
		response.Error(c, err)
		return
	}
	user, err := h.service.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Delete godoc
// @Summary Deactivate user
// @Description Soft delete; the account is deactivated and its sessions revoked
// @Tags Users
// @Param id path string true "User ID"
// @Success 204
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), actorFromContext(c), c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ToggleStatus godoc
// @Summary Toggle user active flag
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/toggle-status [patch]
func (h *UserHandler) ToggleStatus(c *gin.Context) {
	user, err := h.service.ToggleStatus(c.Request.Context(), actorFromContext(c), c.Param("id"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}
