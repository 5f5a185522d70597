package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/unidocs-api/internal/dto"
	"github.com/noah-isme/unidocs-api/internal/models"
	"github.com/noah-isme/unidocs-api/internal/policy"
	"github.com/noah-isme/unidocs-api/internal/repository"
	appErrors "github.com/noah-isme/unidocs-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetActive(ctx context.Context, id string, active bool) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

type bodyLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// UserService handles user management workflows. Every operation requires a
// super_admin actor.
type UserService struct {
	repo      userRepository
	bodies    bodyLookup
	audit     auditor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, bodies bodyLookup, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, bodies: bodies, audit: auditor{repo: audit, logger: logger}, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, actor *policy.Actor, query dto.UserListQuery) ([]models.User, *models.Pagination, error) {
	if err := requireUserAdmin(actor); err != nil {
		return nil, nil, err
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, validationError(err)
	}

	filter := models.UserFilter{
		Active:           query.Active,
		UniversityBodyID: query.UniversityBodyID,
		Search:           query.Search,
		Page:             query.Page,
		PageSize:         query.PageSize,
		SortBy:           query.SortBy,
		SortOrder:        query.SortOrder,
	}
	if query.Role != "" {
		role := models.NormalizeRole(query.Role)
		if !role.Valid() {
			return nil, nil, fieldError("role", "Invalid role")
		}
		filter.Role = &role
	}
	pagination := models.NewPagination(filter.Page, filter.PageSize, 0)
	filter.Page, filter.PageSize = pagination.Page, pagination.PageSize

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, actor *policy.Actor, id string) (*models.User, error) {
	if err := requireUserAdmin(actor); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Create adds a new user.
func (s *UserService) Create(ctx context.Context, actor *policy.Actor, req dto.CreateUserRequest, meta models.RequestMeta) (*models.User, error) {
	if err := requireUserAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	role := models.NormalizeRole(req.Role)
	if !role.Valid() {
		return nil, fieldError("role", "Invalid role")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	bodyID, err := s.resolveBody(ctx, role, req.UniversityBodyID)
	if err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	user := &models.User{
		ID:               uuid.NewString(),
		Email:            email,
		PasswordHash:     string(passwordHash),
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Designation:      req.Designation,
		Phone:            req.Phone,
		Role:             role,
		UniversityBodyID: bodyID,
		Active:           active,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "User with this email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.audit.record(ctx, actor.UserID, models.AuditActionUserCreate, "users", user.ID, meta, nil, models.NewUserInfo(user))
	return user, nil
}

// Update modifies the user attributes.
func (s *UserService) Update(ctx context.Context, actor *policy.Actor, id string, req dto.UpdateUserRequest, meta models.RequestMeta) (*models.User, error) {
	if err := requireUserAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if req.IsActive != nil && !*req.IsActive {
		if err := policy.EnsureNotSelf(actor.UserID, id, "Cannot modify your own status"); err != nil {
			return nil, err
		}
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	before := models.NewUserInfo(user)
	revokeSessions := false

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		user.PasswordHash = string(hash)
		revokeSessions = true
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Designation != nil {
		user.Designation = emptyToNil(*req.Designation)
	}
	if req.Phone != nil {
		user.Phone = emptyToNil(*req.Phone)
	}
	if req.Role != nil {
		role := models.NormalizeRole(*req.Role)
		if !role.Valid() {
			return nil, fieldError("role", "Invalid role")
		}
		user.Role = role
	}

	requested := user.UniversityBodyID
	if req.ClearBody {
		requested = nil
	} else if req.UniversityBodyID != nil {
		requested = req.UniversityBodyID
	}
	if user.UniversityBodyID, err = s.resolveBody(ctx, user.Role, requested); err != nil {
		return nil, err
	}

	if req.IsActive != nil {
		if user.Active && !*req.IsActive {
			revokeSessions = true
		}
		user.Active = *req.IsActive
	}

	if err := s.repo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrUniqueViolation):
			return nil, appErrors.Clone(appErrors.ErrConflict, "User with this email already exists")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	if revokeSessions {
		s.revokeSessions(ctx, user.ID)
	}

	s.audit.record(ctx, actor.UserID, models.AuditActionUserUpdate, "users", user.ID, meta, before, models.NewUserInfo(user))
	return user, nil
}

// Delete deactivates a user. Accounts are never removed.
func (s *UserService) Delete(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) error {
	if err := requireUserAdmin(actor); err != nil {
		return err
	}
	if err := policy.EnsureNotSelf(actor.UserID, id, "Cannot delete your own account"); err != nil {
		return err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.setActive(ctx, user.ID, false); err != nil {
		return err
	}
	s.audit.record(ctx, actor.UserID, models.AuditActionUserDelete, "users", user.ID, meta,
		map[string]bool{"is_active": user.Active}, map[string]bool{"is_active": false})
	return nil
}

// ToggleStatus flips the active flag of a user.
func (s *UserService) ToggleStatus(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) (*models.User, error) {
	if err := requireUserAdmin(actor); err != nil {
		return nil, err
	}
	if err := policy.EnsureNotSelf(actor.UserID, id, "Cannot modify your own status"); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := user.Active
	if err := s.setActive(ctx, user.ID, !previous); err != nil {
		return nil, err
	}
	user.Active = !previous
	s.audit.record(ctx, actor.UserID, models.AuditActionUserToggle, "users", user.ID, meta,
		map[string]bool{"is_active": previous}, map[string]bool{"is_active": user.Active})
	return user, nil
}

func (s *UserService) setActive(ctx context.Context, id string, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user status")
	}
	if !active {
		s.revokeSessions(ctx, id)
	}
	return nil
}

func (s *UserService) revokeSessions(ctx context.Context, userID string) {
	if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != selfID:
		return appErrors.Clone(appErrors.ErrConflict, "User with this email already exists")
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	return nil
}

// resolveBody clears the affiliation of super_admins and checks that any
// requested body exists.
func (s *UserService) resolveBody(ctx context.Context, role models.UserRole, requested *string) (*string, error) {
	if role == models.RoleSuperAdmin || requested == nil || *requested == "" {
		return nil, nil
	}
	exists, err := s.bodies.Exists(ctx, *requested)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check university body")
	}
	if !exists {
		return nil, fieldError("university_body_id", "University body not found")
	}
	id := *requested
	return &id, nil
}

func requireUserAdmin(actor *policy.Actor) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !policy.CanManageUsers(actor) {
		return appErrors.Clone(appErrors.ErrForbidden, "Only super admins can manage users")
	}
	return nil
}
