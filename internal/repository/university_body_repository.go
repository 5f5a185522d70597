package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/unidocs-api/internal/models"
)

const bodyColumns = `id, name, type, description, admin_id, is_active, created_at, updated_at`

// UniversityBodyRepository persists university bodies.
type UniversityBodyRepository struct {
	db *sqlx.DB
}

// NewUniversityBodyRepository constructs the repository.
func NewUniversityBodyRepository(db *sqlx.DB) *UniversityBodyRepository {
	return &UniversityBodyRepository{db: db}
}

// List returns bodies matching the filter with the total count.
func (r *UniversityBodyRepository) List(ctx context.Context, filter models.UniversityBodyFilter) ([]models.UniversityBody, int, error) {
	base := strings.Builder{}
	base.WriteString(" FROM university_bodies WHERE 1=1")
	args := make([]interface{}, 0, 3)

	if filter.Type != "" {
		args = append(args, filter.Type)
		base.WriteString(fmt.Sprintf(" AND type = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		base.WriteString(fmt.Sprintf(" AND is_active = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, containsPattern(filter.Search))
		base.WriteString(fmt.Sprintf(` AND (LOWER(name) LIKE $%d ESCAPE '\' OR LOWER(COALESCE(description, '')) LIKE $%d ESCAPE '\')`, len(args), len(args)))
	}

	sortBy := filter.SortBy
	switch sortBy {
	case "name", "type", "created_at":
	default:
		sortBy = "name"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
	}
	p := models.NewPagination(filter.Page, filter.PageSize, 0)

	query := fmt.Sprintf("SELECT %s%s ORDER BY %s %s LIMIT %d OFFSET %d", bodyColumns, base.String(), sortBy, sortOrder, p.PageSize, (p.Page-1)*p.PageSize)
	bodies := make([]models.UniversityBody, 0)
	if err := r.db.SelectContext(ctx, &bodies, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list university bodies: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+base.String(), args...); err != nil {
		return nil, 0, fmt.Errorf("count university bodies: %w", err)
	}
	return bodies, total, nil
}

// ListPublic returns the active bodies with non-sensitive fields only.
func (r *UniversityBodyRepository) ListPublic(ctx context.Context) ([]models.PublicUniversityBody, error) {
	const query = `SELECT id, name, type, description FROM university_bodies WHERE is_active = TRUE ORDER BY name ASC`
	bodies := make([]models.PublicUniversityBody, 0)
	if err := r.db.SelectContext(ctx, &bodies, query); err != nil {
		return nil, fmt.Errorf("list public university bodies: %w", err)
	}
	return bodies, nil
}

// FindByID loads one body.
func (r *UniversityBodyRepository) FindByID(ctx context.Context, id string) (*models.UniversityBody, error) {
	query := `SELECT ` + bodyColumns + ` FROM university_bodies WHERE id = $1`
	var body models.UniversityBody
	if err := r.db.GetContext(ctx, &body, query, id); err != nil {
		err = translateMissing(err)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find university body: %w", err)
	}
	return &body, nil
}

// FindByName loads a body by name, ignoring case and surrounding spaces.
func (r *UniversityBodyRepository) FindByName(ctx context.Context, name string) (*models.UniversityBody, error) {
	query := `SELECT ` + bodyColumns + ` FROM university_bodies WHERE LOWER(name) = LOWER($1) LIMIT 1`
	var body models.UniversityBody
	if err := r.db.GetContext(ctx, &body, query, strings.TrimSpace(name)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find university body by name: %w", err)
	}
	return &body, nil
}

// Exists reports whether a body id is present.
func (r *UniversityBodyRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM university_bodies WHERE id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		if errors.Is(translateMissing(err), sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check university body: %w", err)
	}
	return exists, nil
}

// Create inserts a body. Duplicate names surface as ErrUniqueViolation.
func (r *UniversityBodyRepository) Create(ctx context.Context, body *models.UniversityBody) error {
	if body.ID == "" {
		body.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	body.CreatedAt = now
	body.UpdatedAt = now
	const query = `INSERT INTO university_bodies (id, name, type, description, admin_id, is_active, created_at, updated_at)
	VALUES (:id, :name, :type, :description, :admin_id, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, body); err != nil {
		if errors.Is(translateUnique(err), ErrUniqueViolation) {
			return ErrUniqueViolation
		}
		return fmt.Errorf("create university body: %w", err)
	}
	return nil
}

// Update writes all mutable columns.
func (r *UniversityBodyRepository) Update(ctx context.Context, body *models.UniversityBody) error {
	body.UpdatedAt = time.Now().UTC()
	const query = `UPDATE university_bodies SET name = :name, type = :type, description = :description, admin_id = :admin_id,
	is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, body)
	if err != nil {
		if errors.Is(translateUnique(err), ErrUniqueViolation) {
			return ErrUniqueViolation
		}
		return fmt.Errorf("update university body: %w", err)
	}
	return expectAffected(res, "update university body")
}

// Delete detaches documents and users from the body and removes it in one
// transaction. It returns the number of detached documents.
func (r *UniversityBodyRepository) Delete(ctx context.Context, id string) (detached int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete university body: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `UPDATE documents SET university_body_id = NULL, updated_at = $2 WHERE university_body_id = $1`, id, now)
	if err != nil {
		return 0, fmt.Errorf("detach documents: %w", err)
	}
	if detached, err = res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("detach documents rows: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE users SET university_body_id = NULL, updated_at = $2 WHERE university_body_id = $1`, id, now); err != nil {
		return 0, fmt.Errorf("detach users: %w", err)
	}
	res, err = tx.ExecContext(ctx, `DELETE FROM university_bodies WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete university body: %w", err)
	}
	if err = expectAffected(res, "delete university body"); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete university body: %w", err)
	}
	return detached, nil
}
