package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/unidocs-api/internal/dto"
	"github.com/noah-isme/unidocs-api/internal/models"
	"github.com/noah-isme/unidocs-api/internal/policy"
	"github.com/noah-isme/unidocs-api/internal/repository"
	appErrors "github.com/noah-isme/unidocs-api/pkg/errors"
)

type universityBodyRepository interface {
	List(ctx context.Context, filter models.UniversityBodyFilter) ([]models.UniversityBody, int, error)
	ListPublic(ctx context.Context) ([]models.PublicUniversityBody, error)
	FindByID(ctx context.Context, id string) (*models.UniversityBody, error)
	FindByName(ctx context.Context, name string) (*models.UniversityBody, error)
	Create(ctx context.Context, body *models.UniversityBody) error
	Update(ctx context.Context, body *models.UniversityBody) error
	Delete(ctx context.Context, id string) (int64, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

var errDuplicateBodyName = appErrors.Clone(appErrors.ErrConflict, "University body with this name already exists")

// UniversityBodyService manages the registry of boards, committees and other bodies.
type UniversityBodyService struct {
	repo      universityBodyRepository
	users     userLookup
	cache     *CacheService
	audit     auditor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUniversityBodyService constructs the service. cache may be nil.
func NewUniversityBodyService(repo universityBodyRepository, users userLookup, cache *CacheService, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *UniversityBodyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UniversityBodyService{
		repo:      repo,
		users:     users,
		cache:     cache,
		audit:     auditor{repo: audit, logger: logger},
		validator: validate,
		logger:    logger,
	}
}

// ListPublic returns active bodies for anonymous browsing, served from cache when possible.
func (s *UniversityBodyService) ListPublic(ctx context.Context) ([]models.PublicUniversityBody, error) {
	var cached []models.PublicUniversityBody
	if s.cache.Get(ctx, cacheKeyPublicBodies, &cached) {
		return cached, nil
	}
	bodies, err := s.repo.ListPublic(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list university bodies")
	}
	s.cache.Set(ctx, cacheKeyPublicBodies, bodies, 0)
	return bodies, nil
}

// List returns the full registry, including inactive bodies, to super_admins.
func (s *UniversityBodyService) List(ctx context.Context, actor *policy.Actor, query dto.UniversityBodyListQuery) ([]models.UniversityBody, *models.Pagination, error) {
	if err := requireBodyAdmin(actor); err != nil {
		return nil, nil, err
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, validationError(err)
	}
	p := models.NewPagination(query.Page, query.PageSize, 0)
	bodies, total, err := s.repo.List(ctx, models.UniversityBodyFilter{
		Type:      query.Type,
		Search:    query.Search,
		Page:      p.Page,
		PageSize:  p.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list university bodies")
	}
	return bodies, models.NewPagination(p.Page, p.PageSize, total), nil
}

// Get loads a body. Inactive bodies are hidden from everyone but super_admins.
func (s *UniversityBodyService) Get(ctx context.Context, actor *policy.Actor, id string) (*models.UniversityBody, error) {
	body, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !body.Active && !policy.CanManageBodies(actor) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "University body not found")
	}
	return body, nil
}

// Create registers a body. Names are unique regardless of case.
func (s *UniversityBodyService) Create(ctx context.Context, actor *policy.Actor, req dto.CreateUniversityBodyRequest, meta models.RequestMeta) (*models.UniversityBody, error) {
	if err := requireBodyAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fieldError("name", "name is required")
	}
	if err := s.ensureNameFree(ctx, name, ""); err != nil {
		return nil, err
	}
	if err := s.ensureAdminExists(ctx, req.AdminID); err != nil {
		return nil, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	body := &models.UniversityBody{
		ID:          uuid.NewString(),
		Name:        name,
		Type:        req.Type,
		Description: req.Description,
		AdminID:     emptyPtrToNil(req.AdminID),
		Active:      active,
	}
	if err := s.repo.Create(ctx, body); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, errDuplicateBodyName
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create university body")
	}

	s.cache.Invalidate(ctx, cachePatternBodies)
	s.audit.record(ctx, actor.UserID, models.AuditActionBodyCreate, "university_bodies", body.ID, meta, nil, body)
	return body, nil
}

// Update changes body attributes.
func (s *UniversityBodyService) Update(ctx context.Context, actor *policy.Actor, id string, req dto.UpdateUniversityBodyRequest, meta models.RequestMeta) (*models.UniversityBody, error) {
	if err := requireBodyAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	body, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *body

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fieldError("name", "name is required")
		}
		if !strings.EqualFold(name, body.Name) {
			if err := s.ensureNameFree(ctx, name, body.ID); err != nil {
				return nil, err
			}
		}
		body.Name = name
	}
	if req.Type != nil {
		body.Type = *req.Type
	}
	if req.Description != nil {
		body.Description = emptyToNil(*req.Description)
	}
	switch {
	case req.ClearAdmin:
		body.AdminID = nil
	case req.AdminID != nil:
		if err := s.ensureAdminExists(ctx, req.AdminID); err != nil {
			return nil, err
		}
		body.AdminID = emptyPtrToNil(req.AdminID)
	}
	if req.IsActive != nil {
		body.Active = *req.IsActive
	}

	if err := s.repo.Update(ctx, body); err != nil {
		switch {
		case errors.Is(err, repository.ErrUniqueViolation):
			return nil, errDuplicateBodyName
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "University body not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update university body")
	}

	s.cache.Invalidate(ctx, cachePatternBodies)
	s.audit.record(ctx, actor.UserID, models.AuditActionBodyUpdate, "university_bodies", body.ID, meta, before, body)
	return body, nil
}

// Delete removes a body. Its documents and members stay, detached from it.
func (s *UniversityBodyService) Delete(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) error {
	if err := requireBodyAdmin(actor); err != nil {
		return err
	}
	body, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	detached, err := s.repo.Delete(ctx, body.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "University body not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete university body")
	}

	s.logger.Info("university body deleted", zap.String("body_id", body.ID), zap.Int64("detached_documents", detached))
	s.cache.Invalidate(ctx, cachePatternBodies)
	s.cache.Invalidate(ctx, cachePatternDocuments)
	s.audit.record(ctx, actor.UserID, models.AuditActionBodyDelete, "university_bodies", body.ID, meta, body,
		map[string]int64{"detached_documents": detached})
	return nil
}

func (s *UniversityBodyService) load(ctx context.Context, id string) (*models.UniversityBody, error) {
	body, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "University body not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load university body")
	}
	return body, nil
}

func (s *UniversityBodyService) ensureNameFree(ctx context.Context, name, selfID string) error {
	existing, err := s.repo.FindByName(ctx, name)
	switch {
	case err == nil && existing.ID != selfID:
		return errDuplicateBodyName
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check university body name")
	}
	return nil
}

func (s *UniversityBodyService) ensureAdminExists(ctx context.Context, adminID *string) error {
	if adminID == nil || *adminID == "" || s.users == nil {
		return nil
	}
	if _, err := s.users.FindByID(ctx, *adminID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fieldError("admin_id", "Admin user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admin user")
	}
	return nil
}

func requireBodyAdmin(actor *policy.Actor) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !policy.CanManageBodies(actor) {
		return appErrors.Clone(appErrors.ErrForbidden, "Only super admins can manage university bodies")
	}
	return nil
}

func emptyPtrToNil(v *string) *string {
	if v == nil {
		return nil
	}
	return emptyToNil(*v)
}
