package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/unidocs-api/internal/dto"
	"github.com/noah-isme/unidocs-api/internal/models"
	"github.com/noah-isme/unidocs-api/internal/policy"
	appErrors "github.com/noah-isme/unidocs-api/pkg/errors"
)

type reviewRepository interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error)
	Review(ctx context.Context, review models.DocumentReview) error
}

// ApprovalService moves documents from pending to approved or rejected.
// Both outcomes are final.
type ApprovalService struct {
	repo    reviewRepository
	cache   *CacheService
	metrics *MetricsService
	audit   auditor
	logger  *zap.Logger
	now     func() time.Time
}

// NewApprovalService constructs the service.
func NewApprovalService(repo reviewRepository, cache *CacheService, metrics *MetricsService, audit auditLogger, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		repo:    repo,
		cache:   cache,
		metrics: metrics,
		audit:   auditor{repo: audit, logger: logger},
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ListPending returns the review queue of the actor.
func (s *ApprovalService) ListPending(ctx context.Context, actor *policy.Actor, query dto.DocumentListQuery) ([]models.Document, *models.Pagination, error) {
	if err := requireReviewer(actor); err != nil {
		return nil, nil, err
	}
	filter := query.Filter()
	filter.Status = models.ApprovalPending
	filter.Visibility = policy.ReviewScope(actor)
	if filter.SortBy == "" {
		filter.SortBy, filter.SortOrder = "created_at", "asc"
	}
	p := models.NewPagination(filter.Page, filter.PageSize, 0)
	filter.Page, filter.PageSize = p.Page, p.PageSize

	docs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending documents")
	}
	return docs, models.NewPagination(p.Page, p.PageSize, total), nil
}

// Approve accepts a pending document.
func (s *ApprovalService) Approve(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) (*models.Document, error) {
	return s.review(ctx, actor, id, models.ApprovalApproved, nil, meta)
}

// Reject declines a pending document. The reason is mandatory.
func (s *ApprovalService) Reject(ctx context.Context, actor *policy.Actor, id string, cmd dto.ReviewDocumentCommand, meta models.RequestMeta) (*models.Document, error) {
	if err := requireReviewer(actor); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return nil, fieldError("reason", "Rejection reason is required")
	}
	return s.review(ctx, actor, id, models.ApprovalRejected, &reason, meta)
}

func (s *ApprovalService) review(ctx context.Context, actor *policy.Actor, id string, status models.ApprovalStatus, reason *string, meta models.RequestMeta) (*models.Document, error) {
	if err := requireReviewer(actor); err != nil {
		return nil, err
	}

	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errDocumentNotFound()
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if !policy.CanReviewDocument(actor, doc) {
		return nil, errDocumentNotFound()
	}
	if doc.ApprovalStatus != models.ApprovalPending {
		return nil, errAlreadyReviewed(doc.ApprovalStatus)
	}

	reviewedAt := s.now()
	if err := s.repo.Review(ctx, models.DocumentReview{
		DocumentID:      doc.ID,
		Status:          status,
		ReviewerID:      actor.UserID,
		ReviewedAt:      reviewedAt,
		RejectionReason: reason,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Another reviewer decided first.
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "Document has already been reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review document")
	}

	previous := doc.ApprovalStatus
	reviewer := actor.UserID
	doc.ApprovalStatus = status
	doc.ApprovedBy = &reviewer
	doc.ApprovedAt = &reviewedAt
	doc.RejectionReason = reason
	doc.UpdatedAt = reviewedAt

	action := models.AuditActionDocumentApprove
	if status == models.ApprovalRejected {
		action = models.AuditActionDocumentReject
	}
	s.metrics.RecordReview(string(status))
	s.cache.Invalidate(ctx, cachePatternDocuments)
	s.audit.record(ctx, actor.UserID, action, "documents", doc.ID, meta,
		map[string]interface{}{"approval_status": previous},
		map[string]interface{}{"approval_status": status, "rejection_reason": reason})
	s.logger.Info("document reviewed", zap.String("document_id", doc.ID), zap.String("status", string(status)), zap.String("reviewer_id", reviewer))
	return doc, nil
}

func errAlreadyReviewed(status models.ApprovalStatus) error {
	return appErrors.Clone(appErrors.ErrInvalidState, "Document has already been "+string(status))
}

func requireReviewer(actor *policy.Actor) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !policy.CanReview(actor) {
		return appErrors.Clone(appErrors.ErrForbidden, "Only admins can review documents")
	}
	return nil
}
