package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/unidocs-api/internal/dto"
	"github.com/noah-isme/unidocs-api/internal/models"
	"github.com/noah-isme/unidocs-api/internal/policy"
	"github.com/noah-isme/unidocs-api/pkg/config"
	appErrors "github.com/noah-isme/unidocs-api/pkg/errors"
	"github.com/noah-isme/unidocs-api/pkg/export"
	"github.com/noah-isme/unidocs-api/pkg/jobs"
	"github.com/noah-isme/unidocs-api/pkg/storage"
)

// JobBlobDelete removes the stored bytes of a deleted document.
const JobBlobDelete = "blob.delete"

const (
	exportPageSize = 100
	exportMaxRows  = 5000
	statsCacheTTL  = time.Minute
)

type documentRepository interface {
	Create(ctx context.Context, doc *models.Document, content []byte) error
	FindByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error)
	Stats(ctx context.Context, visibility models.DocumentVisibility) (*models.DocumentStats, error)
	Update(ctx context.Context, doc *models.Document) error
	IncrementDownloads(ctx context.Context, id string) error
	Content(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// DocumentStorageConfig selects where bytes go and what uploads are accepted.
type DocumentStorageConfig struct {
	Backend      string
	MaxFileSize  int64
	AllowedMIMEs []string
}

// FileUpload is the file part of an upload request.
type FileUpload struct {
	Name    string
	Size    int64
	Content io.Reader
}

// DocumentContent is an opened document ready to stream. Callers close Reader.
type DocumentContent struct {
	Document *models.Document
	Reader   io.ReadCloser
	Size     int64
}

// DocumentService implements upload, browsing, editing and download of documents.
type DocumentService struct {
	repo      documentRepository
	bodies    bodyLookup
	blobs     storage.BlobStore
	signer    *storage.SignedURLSigner
	queue     jobEnqueuer
	cache     *CacheService
	metrics   *MetricsService
	audit     auditor
	validator *validator.Validate
	logger    *zap.Logger
	cfg       DocumentStorageConfig
	now       func() time.Time
}

// DocumentServiceDeps groups the collaborators of DocumentService. Blobs is
// required unless the database backend is configured; the rest may be nil.
type DocumentServiceDeps struct {
	Repo      documentRepository
	Bodies    bodyLookup
	Blobs     storage.BlobStore
	Signer    *storage.SignedURLSigner
	Queue     jobEnqueuer
	Cache     *CacheService
	Metrics   *MetricsService
	Audit     auditLogger
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewDocumentService constructs the service.
func NewDocumentService(deps DocumentServiceDeps, cfg DocumentStorageConfig) *DocumentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := deps.Validator
	if validate == nil {
		validate = validator.New()
	}
	if cfg.Backend == "" {
		cfg.Backend = config.StorageBackendDatabase
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 << 20
	}
	return &DocumentService{
		repo:      deps.Repo,
		bodies:    deps.Bodies,
		blobs:     deps.Blobs,
		signer:    deps.Signer,
		queue:     deps.Queue,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		audit:     auditor{repo: deps.Audit, logger: logger},
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores a new document. Uploads by admins and super_admins are
// approved immediately, sub_admin uploads wait for review.
func (s *DocumentService) Upload(ctx context.Context, actor *policy.Actor, cmd dto.UploadDocumentCommand, file *FileUpload, meta models.RequestMeta) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(cmd); err != nil {
		return nil, validationError(err)
	}
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return nil, fieldError("title", "title is required")
	}
	if file == nil || file.Content == nil {
		return nil, fieldError("file", "file is required")
	}

	content, err := s.readUpload(file)
	if err != nil {
		return nil, err
	}
	detected := mimetype.Detect(content)
	if !s.mimeAllowed(detected) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("File type %s is not allowed", detected.String()))
	}

	requested := emptyPtrToNil(cmd.UniversityBodyID)
	if requested != nil {
		if err := s.ensureBodyExists(ctx, *requested); err != nil {
			return nil, err
		}
	}
	bodyID, err := policy.ResolveUploadBody(actor, requested)
	if err != nil {
		return nil, err
	}
	if bodyID != nil && requested == nil {
		if err := s.ensureBodyExists(ctx, *bodyID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	isPublic := true
	if cmd.IsPublic != nil {
		isPublic = *cmd.IsPublic
	}
	doc := &models.Document{
		ID:               uuid.NewString(),
		Title:            title,
		Description:      emptyPtrToNil(cmd.Description),
		FileName:         cleanFileName(file.Name, detected.Extension()),
		MimeType:         detected.String(),
		FileSize:         int64(len(content)),
		StorageBackend:   s.cfg.Backend,
		UploadedBy:       actor.UserID,
		UniversityBodyID: bodyID,
		IsPublic:         isPublic,
		ApprovalStatus:   policy.InitialStatus(actor),
		RequestedAt:      now,
	}
	if doc.ApprovalStatus == models.ApprovalApproved {
		approver := actor.UserID
		doc.ApprovedBy = &approver
		doc.ApprovedAt = &now
	}

	if err := s.persist(ctx, doc, content); err != nil {
		return nil, err
	}

	s.metrics.RecordUpload(string(doc.ApprovalStatus), doc.StorageBackend, doc.FileSize)
	s.cache.Invalidate(ctx, cachePatternDocuments)
	s.audit.record(ctx, actor.UserID, models.AuditActionDocumentUpload, "documents", doc.ID, meta, nil, map[string]interface{}{
		"title":              doc.Title,
		"file_name":          doc.FileName,
		"university_body_id": doc.UniversityBodyID,
		"approval_status":    doc.ApprovalStatus,
	})
	return doc, nil
}

// Get returns a document visible to the actor. Invisible and missing
// documents are reported identically.
func (s *DocumentService) Get(ctx context.Context, actor *policy.Actor, id string) (*models.Document, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewDocument(actor, doc) {
		return nil, errDocumentNotFound()
	}
	return doc, nil
}

// List returns the documents visible to the actor. A nil actor browses the
// approved public documents.
func (s *DocumentService) List(ctx context.Context, actor *policy.Actor, query dto.DocumentListQuery) ([]models.Document, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, validationError(err)
	}
	filter := query.Filter()
	filter.Visibility = policy.DocumentScope(actor, query.Mine && actor != nil)
	p := models.NewPagination(filter.Page, filter.PageSize, 0)
	filter.Page, filter.PageSize = p.Page, p.PageSize

	docs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, models.NewPagination(p.Page, p.PageSize, total), nil
}

// Update edits document metadata. Only super_admins may move a document to
// another body.
func (s *DocumentService) Update(ctx context.Context, actor *policy.Actor, id string, cmd dto.UpdateDocumentCommand, meta models.RequestMeta) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(cmd); err != nil {
		return nil, validationError(err)
	}
	doc, err := s.loadModifiable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	before := *doc

	if cmd.Title != nil {
		title := strings.TrimSpace(*cmd.Title)
		if title == "" {
			return nil, fieldError("title", "title is required")
		}
		doc.Title = title
	}
	if cmd.Description != nil {
		doc.Description = emptyToNil(*cmd.Description)
	}
	if cmd.IsPublic != nil {
		doc.IsPublic = *cmd.IsPublic
	}
	if cmd.UniversityBodyID != nil && !sameID(cmd.UniversityBodyID, doc.UniversityBodyID) {
		if actor.Role != models.RoleSuperAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "Only super admins can move documents between university bodies")
		}
		target := emptyPtrToNil(cmd.UniversityBodyID)
		if target != nil {
			if err := s.ensureBodyExists(ctx, *target); err != nil {
				return nil, err
			}
		}
		doc.UniversityBodyID = target
	}

	if err := s.repo.Update(ctx, doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errDocumentNotFound()
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document")
	}

	s.cache.Invalidate(ctx, cachePatternDocuments)
	s.audit.record(ctx, actor.UserID, models.AuditActionDocumentUpdate, "documents", doc.ID, meta, documentAuditView(&before), documentAuditView(doc))
	return doc, nil
}

// Delete removes a document. Bytes held outside the database are removed by
// a background job.
func (s *DocumentService) Delete(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	doc, err := s.loadModifiable(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, doc.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errDocumentNotFound()
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	if doc.StorageBackend != config.StorageBackendDatabase && doc.StorageKey != "" {
		s.scheduleBlobDeletion(ctx, doc)
	}

	s.cache.Invalidate(ctx, cachePatternDocuments)
	s.audit.record(ctx, actor.UserID, models.AuditActionDocumentDelete, "documents", doc.ID, meta, documentAuditView(doc), nil)
	return nil
}

// HandleBlobDeletion is the queue handler for JobBlobDelete.
func (s *DocumentService) HandleBlobDeletion(ctx context.Context, job jobs.Job) error {
	key := job.Payload["key"]
	if key == "" || s.blobs == nil {
		return nil
	}
	if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

// Download opens a visible document and counts the download.
func (s *DocumentService) Download(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) (*DocumentContent, error) {
	doc, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	content, err := s.open(ctx, doc)
	if err != nil {
		return nil, err
	}
	actorID := ""
	if actor != nil {
		actorID = actor.UserID
	}
	s.countDownload(ctx, doc, actorID, "direct", meta)
	return content, nil
}

// ShareLink issues a signed, time-limited download token for an approved
// document the actor can see.
func (s *DocumentService) ShareLink(ctx context.Context, actor *policy.Actor, id string) (string, time.Time, error) {
	if actor == nil {
		return "", time.Time{}, appErrors.ErrUnauthorized
	}
	if s.signer == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInternal, "share links are not configured")
	}
	doc, err := s.Get(ctx, actor, id)
	if err != nil {
		return "", time.Time{}, err
	}
	if doc.ApprovalStatus != models.ApprovalApproved {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInvalidState, "Only approved documents can be shared")
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.FileName)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign share link")
	}
	return token, expiresAt, nil
}

// OpenShared resolves a share token without authentication.
func (s *DocumentService) OpenShared(ctx context.Context, token string, meta models.RequestMeta) (*DocumentContent, error) {
	if s.signer == nil {
		return nil, errDocumentNotFound()
	}
	id, fileName, _, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrSignedURLExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "Share link has expired")
		}
		return nil, errDocumentNotFound()
	}
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.ApprovalStatus != models.ApprovalApproved || doc.FileName != fileName {
		return nil, errDocumentNotFound()
	}
	content, err := s.open(ctx, doc)
	if err != nil {
		return nil, err
	}
	s.countDownload(ctx, doc, "", "shared", meta)
	return content, nil
}

// Export renders the documents visible to the actor as a register file.
func (s *DocumentService) Export(ctx context.Context, actor *policy.Actor, query dto.DocumentListQuery, rawFormat string) ([]byte, export.Format, error) {
	if actor == nil {
		return nil, "", appErrors.ErrUnauthorized
	}
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, "", fieldError("format", "format must be one of: csv, pdf, xlsx")
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, "", validationError(err)
	}

	filter := query.Filter()
	filter.Visibility = policy.DocumentScope(actor, query.Mine)
	filter.PageSize = exportPageSize

	dataset := export.Dataset{
		Title:   "Document Register",
		Headers: []string{"Title", "University Body", "Uploaded By", "Status", "Public", "File", "Size (bytes)", "Downloads", "Uploaded At"},
	}
	for page := 1; len(dataset.Rows) < exportMaxRows; page++ {
		filter.Page = page
		docs, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
		}
		for i := range docs {
			dataset.Rows = append(dataset.Rows, documentRow(&docs[i]))
		}
		if len(docs) < exportPageSize || page*exportPageSize >= total {
			break
		}
	}
	if len(dataset.Rows) > exportMaxRows {
		dataset.Rows = dataset.Rows[:exportMaxRows]
	}

	payload, err := export.Render(format, dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return payload, format, nil
}

// Stats counts the documents visible to the actor by approval status.
func (s *DocumentService) Stats(ctx context.Context, actor *policy.Actor) (*models.DocumentStats, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	visibility := policy.DocumentScope(actor, false)
	key := cachePrefixStats + visibilityKey(visibility)

	var cached models.DocumentStats
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	stats, err := s.repo.Stats(ctx, visibility)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document stats")
	}
	s.cache.Set(ctx, key, stats, statsCacheTTL)
	return stats, nil
}

func (s *DocumentService) readUpload(file *FileUpload) ([]byte, error) {
	tooLarge := appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("File exceeds the %d byte limit", s.cfg.MaxFileSize))
	if file.Size > s.cfg.MaxFileSize {
		return nil, tooLarge
	}
	content, err := io.ReadAll(io.LimitReader(file.Content, s.cfg.MaxFileSize+1))
	if err != nil {
		wrapped := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
		wrapped.Details = []FieldError{{Field: "file", Message: "failed to read uploaded file"}}
		return nil, wrapped
	}
	if int64(len(content)) > s.cfg.MaxFileSize {
		return nil, tooLarge
	}
	if len(content) == 0 {
		return nil, fieldError("file", "file is empty")
	}
	return content, nil
}

func (s *DocumentService) mimeAllowed(detected *mimetype.MIME) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedMIMEs {
		if detected.Is(allowed) {
			return true
		}
	}
	return false
}

// persist writes the document and its bytes. With an external store the blob
// goes first and is removed again when the metadata insert fails.
func (s *DocumentService) persist(ctx context.Context, doc *models.Document, content []byte) error {
	if doc.StorageBackend == config.StorageBackendDatabase {
		doc.StorageKey = doc.ID
		if err := s.repo.Create(ctx, doc, content); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
		}
		return nil
	}

	if s.blobs == nil {
		return appErrors.Clone(appErrors.ErrInternal, "document storage is not configured")
	}
	doc.StorageKey = blobKey(doc, s.now())
	if err := s.blobs.Put(ctx, doc.StorageKey, bytes.NewReader(content), int64(len(content)), doc.MimeType); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document file")
	}
	if err := s.repo.Create(ctx, doc, nil); err != nil {
		if delErr := s.blobs.Delete(ctx, doc.StorageKey); delErr != nil {
			s.logger.Warn("failed to remove blob after metadata failure", zap.String("key", doc.StorageKey), zap.Error(delErr))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}
	return nil
}

func (s *DocumentService) open(ctx context.Context, doc *models.Document) (*DocumentContent, error) {
	if doc.StorageBackend == config.StorageBackendDatabase {
		content, err := s.repo.Content(ctx, doc.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "Document file not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document file")
		}
		return &DocumentContent{Document: doc, Reader: io.NopCloser(bytes.NewReader(content)), Size: int64(len(content))}, nil
	}

	if s.blobs == nil || s.blobs.Name() != doc.StorageBackend {
		return nil, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("storage backend %q is not available", doc.StorageBackend))
	}
	reader, err := s.blobs.Open(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Document file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document file")
	}
	return &DocumentContent{Document: doc, Reader: reader, Size: doc.FileSize}, nil
}

func (s *DocumentService) countDownload(ctx context.Context, doc *models.Document, actorID, channel string, meta models.RequestMeta) {
	if err := s.repo.IncrementDownloads(ctx, doc.ID); err != nil {
		s.logger.Warn("failed to increment download count", zap.String("document_id", doc.ID), zap.Error(err))
	} else {
		doc.DownloadCount++
	}
	s.metrics.RecordDownload(channel)
	s.audit.record(ctx, actorID, models.AuditActionDocumentDownload, "documents", doc.ID, meta, nil, map[string]string{"channel": channel})
}

func (s *DocumentService) scheduleBlobDeletion(ctx context.Context, doc *models.Document) {
	job := jobs.Job{Type: JobBlobDelete, Payload: map[string]string{"key": doc.StorageKey, "document_id": doc.ID}}
	if s.queue != nil {
		err := s.queue.Enqueue(job)
		if err == nil {
			return
		}
		s.logger.Warn("failed to enqueue blob deletion, deleting inline", zap.String("key", doc.StorageKey), zap.Error(err))
	}
	if err := s.HandleBlobDeletion(ctx, job); err != nil {
		// The maintenance sweep picks up blobs that are left behind.
		s.logger.Warn("failed to delete blob", zap.String("key", doc.StorageKey), zap.Error(err))
	}
}

func (s *DocumentService) load(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errDocumentNotFound()
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

// loadModifiable returns 404 for documents outside the actor's view and 403
// for visible documents the actor may not change.
func (s *DocumentService) loadModifiable(ctx context.Context, actor *policy.Actor, id string) (*models.Document, error) {
	doc, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanModifyDocument(actor, doc) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "You do not have permission to modify this document")
	}
	return doc, nil
}

func (s *DocumentService) ensureBodyExists(ctx context.Context, id string) error {
	exists, err := s.bodies.Exists(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check university body")
	}
	if !exists {
		return fieldError("university_body_id", "University body not found")
	}
	return nil
}

func errDocumentNotFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "Document not found")
}

func blobKey(doc *models.Document, now time.Time) string {
	return path.Join("documents", now.Format("2006/01"), doc.ID+filepath.Ext(doc.FileName))
}

// cleanFileName strips directories from a client supplied name.
func cleanFileName(name, ext string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "" || name == "." || name == "/" {
		return "document" + ext
	}
	return name
}

func sameID(a, b *string) bool {
	a, b = emptyPtrToNil(a), emptyPtrToNil(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func visibilityKey(v models.DocumentVisibility) string {
	switch {
	case v.None:
		return "none"
	case v.All:
		return "all"
	case v.PublicOnly:
		return "public"
	}
	return fmt.Sprintf("u=%s,b=%s,a=%t", v.UploaderID, v.BodyID, v.ApprovedInBodyOnly)
}

func documentAuditView(doc *models.Document) map[string]interface{} {
	return map[string]interface{}{
		"title":              doc.Title,
		"description":        doc.Description,
		"is_public":          doc.IsPublic,
		"university_body_id": doc.UniversityBodyID,
		"approval_status":    doc.ApprovalStatus,
	}
}

func documentRow(doc *models.Document) []string {
	body := ""
	if doc.UniversityBodyName != nil {
		body = *doc.UniversityBodyName
	}
	public := "no"
	if doc.IsPublic {
		public = "yes"
	}
	return []string{
		doc.Title,
		body,
		doc.UploaderName,
		string(doc.ApprovalStatus),
		public,
		doc.FileName,
		strconv.FormatInt(doc.FileSize, 10),
		strconv.FormatInt(doc.DownloadCount, 10),
		doc.CreatedAt.Format(time.RFC3339),
	}
}
