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
	"github.com/lib/pq"

	"github.com/noah-isme/unidocs-api/internal/models"
)

const documentSelect = `SELECT d.id, d.title, d.description, d.file_name, d.mime_type, d.file_size, d.storage_backend, d.storage_key,
       d.uploaded_by, d.university_body_id, d.is_public, d.approval_status, d.approved_by, d.approved_at, d.rejection_reason,
       d.requested_at, d.download_count, d.created_at, d.updated_at,
       COALESCE(TRIM(u.first_name || ' ' || u.last_name), '') AS uploader_name, b.name AS university_body_name
FROM documents d
LEFT JOIN users u ON u.id = d.uploaded_by
LEFT JOIN university_bodies b ON b.id = d.university_body_id`

var documentSorts = map[string]string{
	"title":          "d.title",
	"created_at":     "d.created_at",
	"download_count": "d.download_count",
	"approved_at":    "d.approved_at",
}

// DocumentRepository persists document metadata and, for the database
// backend, document bytes.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts the metadata row and, when content is non-nil, the blob row
// in the same transaction.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document, content []byte) (err error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.RequestedAt.IsZero() {
		doc.RequestedAt = now
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create document: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertDoc = `INSERT INTO documents
	(id, title, description, file_name, mime_type, file_size, storage_backend, storage_key, uploaded_by, university_body_id,
	 is_public, approval_status, approved_by, approved_at, rejection_reason, requested_at, download_count, created_at, updated_at)
	VALUES (:id, :title, :description, :file_name, :mime_type, :file_size, :storage_backend, :storage_key, :uploaded_by, :university_body_id,
	 :is_public, :approval_status, :approved_by, :approved_at, :rejection_reason, :requested_at, :download_count, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertDoc, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	if content != nil {
		if _, err = tx.ExecContext(ctx, `INSERT INTO document_blobs (document_id, content) VALUES ($1, $2)`, doc.ID, content); err != nil {
			return fmt.Errorf("create document blob: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create document: %w", err)
	}
	return nil
}

// FindByID loads one document with uploader and body names.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, documentSelect+` WHERE d.id = $1`, id); err != nil {
		err = translateMissing(err)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

// List returns the documents visible under filter.Visibility that match the
// caller filters, together with the total count of the same predicate.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	where, args := documentWhere(filter)

	sortCol, ok := documentSorts[filter.SortBy]
	if !ok {
		sortCol = "d.created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}
	nulls := ""
	if sortCol == "d.approved_at" {
		nulls = " NULLS LAST"
	}
	p := models.NewPagination(filter.Page, filter.PageSize, 0)

	query := fmt.Sprintf("%s WHERE %s ORDER BY %s %s%s, d.id ASC LIMIT %d OFFSET %d", documentSelect, where, sortCol, sortOrder, nulls, p.PageSize, (p.Page-1)*p.PageSize)
	docs := make([]models.Document, 0)
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM documents d WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}
	return docs, total, nil
}

// Stats aggregates counts per status under the visibility predicate.
func (r *DocumentRepository) Stats(ctx context.Context, visibility models.DocumentVisibility) (*models.DocumentStats, error) {
	where, args := documentWhere(models.DocumentFilter{Visibility: visibility})
	query := `SELECT COUNT(*) AS total,
       COUNT(*) FILTER (WHERE d.approval_status = 'pending') AS pending,
       COUNT(*) FILTER (WHERE d.approval_status = 'approved') AS approved,
       COUNT(*) FILTER (WHERE d.approval_status = 'rejected') AS rejected,
       COALESCE(SUM(d.download_count), 0) AS total_downloads
FROM documents d WHERE ` + where
	var row struct {
		Total          int   `db:"total"`
		Pending        int   `db:"pending"`
		Approved       int   `db:"approved"`
		Rejected       int   `db:"rejected"`
		TotalDownloads int64 `db:"total_downloads"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, fmt.Errorf("document stats: %w", err)
	}
	return &models.DocumentStats{
		Total:          row.Total,
		Pending:        row.Pending,
		Approved:       row.Approved,
		Rejected:       row.Rejected,
		TotalDownloads: row.TotalDownloads,
	}, nil
}

// Update writes the mutable metadata columns.
func (r *DocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE documents SET title = :title, description = :description, is_public = :is_public,
	university_body_id = :university_body_id, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, doc)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return expectAffected(res, "update document")
}

// Review applies an approval decision only while the document is pending.
// sql.ErrNoRows means the document is missing or no longer pending.
func (r *DocumentRepository) Review(ctx context.Context, review models.DocumentReview) error {
	const query = `UPDATE documents SET approval_status = $2, approved_by = $3, approved_at = $4, rejection_reason = $5, updated_at = $4
	WHERE id = $1 AND approval_status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, review.DocumentID, review.Status, review.ReviewerID, review.ReviewedAt, review.RejectionReason)
	if err != nil {
		return fmt.Errorf("review document: %w", err)
	}
	return expectAffected(res, "review document")
}

// IncrementDownloads bumps the download counter atomically.
func (r *DocumentRepository) IncrementDownloads(ctx context.Context, id string) error {
	const query = `UPDATE documents SET download_count = download_count + 1 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment downloads: %w", err)
	}
	return expectAffected(res, "increment downloads")
}

// Content returns the bytes stored in document_blobs.
func (r *DocumentRepository) Content(ctx context.Context, id string) ([]byte, error) {
	var content []byte
	if err := r.db.GetContext(ctx, &content, `SELECT content FROM document_blobs WHERE document_id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("load document content: %w", err)
	}
	return content, nil
}

// Delete removes the document; its blob row cascades.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return expectAffected(res, "delete document")
}

// ReferencedKeys returns the subset of storage keys still referenced by a document.
func (r *DocumentRepository) ReferencedKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	referenced := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return referenced, nil
	}
	var found []string
	if err := r.db.SelectContext(ctx, &found, `SELECT storage_key FROM documents WHERE storage_key = ANY($1)`, pq.Array(keys)); err != nil {
		return nil, fmt.Errorf("referenced storage keys: %w", err)
	}
	for _, k := range found {
		referenced[k] = true
	}
	return referenced, nil
}

// documentWhere renders visibility first and caller filters after it so the
// list and count queries share one predicate.
func documentWhere(filter models.DocumentFilter) (string, []interface{}) {
	args := make([]interface{}, 0, 6)
	conditions := []string{visibilityClause(filter.Visibility, &args)}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("d.approval_status = $%d", len(args)))
	}
	if filter.UniversityBodyID != "" {
		args = append(args, filter.UniversityBodyID)
		conditions = append(conditions, fmt.Sprintf("d.university_body_id = $%d", len(args)))
	}
	if filter.UploadedBy != "" {
		args = append(args, filter.UploadedBy)
		conditions = append(conditions, fmt.Sprintf("d.uploaded_by = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, containsPattern(filter.Search))
		conditions = append(conditions, fmt.Sprintf(`(LOWER(d.title) LIKE $%d ESCAPE '\' OR LOWER(COALESCE(d.description, '')) LIKE $%d ESCAPE '\')`, len(args), len(args)))
	}
	return strings.Join(conditions, " AND "), args
}

func visibilityClause(v models.DocumentVisibility, args *[]interface{}) string {
	switch {
	case v.None:
		return "FALSE"
	case v.All:
		return "TRUE"
	case v.PublicOnly:
		return "(d.approval_status = 'approved' AND d.is_public = TRUE)"
	}

	parts := make([]string, 0, 2)
	if v.UploaderID != "" {
		*args = append(*args, v.UploaderID)
		parts = append(parts, fmt.Sprintf("d.uploaded_by = $%d", len(*args)))
	}
	if v.BodyID != "" {
		*args = append(*args, v.BodyID)
		body := fmt.Sprintf("d.university_body_id = $%d", len(*args))
		if v.ApprovedInBodyOnly {
			body = "(" + body + " AND d.approval_status = 'approved')"
		}
		parts = append(parts, body)
	}
	if len(parts) == 0 {
		return "FALSE"
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}
