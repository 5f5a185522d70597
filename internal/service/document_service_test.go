package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/unidocs-api/internal/dto"
	"github.com/noah-isme/unidocs-api/internal/models"
	"github.com/noah-isme/unidocs-api/internal/policy"
	"github.com/noah-isme/unidocs-api/pkg/config"
	appErrors "github.com/noah-isme/unidocs-api/pkg/errors"
	"github.com/noah-isme/unidocs-api/pkg/storage"
)

const (
	bodyA = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	bodyB = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type documentFixture struct {
	svc     *DocumentService
	repo    *memDocRepo
	blobs   *memBlobStore
	queue   *recordingQueue
	cache   *memCacheRepo
	audit   *recordingAudit
	metrics *MetricsService
}

func newDocumentFixture(backend string, docs ...*models.Document) *documentFixture {
	f := &documentFixture{
		repo:    newMemDocRepo(docs...),
		blobs:   newMemBlobStore(backend),
		queue:   &recordingQueue{},
		cache:   newMemCacheRepo(),
		audit:   &recordingAudit{},
		metrics: NewMetricsService(),
	}
	bodies := newMemBodyRepo(
		&models.UniversityBody{ID: bodyA, Name: "Board A", Type: models.BodyTypeBoard, Active: true},
		&models.UniversityBody{ID: bodyB, Name: "Committee B", Type: models.BodyTypeCommittee, Active: true},
	)
	f.svc = NewDocumentService(DocumentServiceDeps{
		Repo:    f.repo,
		Bodies:  bodies,
		Blobs:   f.blobs,
		Signer:  storage.NewSignedURLSigner("share-secret", time.Hour),
		Queue:   f.queue,
		Cache:   NewCacheService(f.cache, f.metrics, time.Minute, nil, true),
		Metrics: f.metrics,
		Audit:   f.audit,
	}, DocumentStorageConfig{
		Backend:      backend,
		MaxFileSize:  1024,
		AllowedMIMEs: []string{"application/pdf", "text/plain"},
	})
	return f
}

func pdfUpload() *FileUpload {
	return &FileUpload{Name: "minutes.pdf", Size: int64(len(pdfBytes)), Content: bytes.NewReader(pdfBytes)}
}

func docIn(id, body, uploader string, status models.ApprovalStatus, public bool) *models.Document {
	d := &models.Document{
		ID:               id,
		Title:            "Doc " + id,
		FileName:         id + ".pdf",
		MimeType:         "application/pdf",
		StorageBackend:   config.StorageBackendDatabase,
		StorageKey:       id,
		UploadedBy:       uploader,
		UniversityBodyID: strPtr(body),
		IsPublic:         public,
		ApprovalStatus:   status,
	}
	if status != models.ApprovalPending {
		d.ApprovedBy = strPtr("reviewer")
		now := time.Now()
		d.ApprovedAt = &now
	}
	if status == models.ApprovalRejected {
		d.RejectionReason = strPtr("incomplete")
	}
	return d
}

func TestSubAdminUploadStartsPendingInOwnBody(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendDatabase)
	actor := subAdminOf(bodyA)

	doc, err := f.svc.Upload(context.Background(), actor, dto.UploadDocumentCommand{Title: "Minutes"}, pdfUpload(), models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, doc.ApprovalStatus)
	assert.Nil(t, doc.ApprovedBy)
	assert.Nil(t, doc.ApprovedAt)
	require.NotNil(t, doc.UniversityBodyID)
	assert.Equal(t, bodyA, *doc.UniversityBodyID)
	assert.True(t, doc.IsPublic)
	assert.Equal(t, "application/pdf", doc.MimeType)
	assert.False(t, doc.RequestedAt.IsZero())
	assert.Equal(t, pdfBytes, f.repo.blobs[doc.ID])
	assert.Equal(t, []string{models.AuditActionDocumentUpload}, f.audit.actions())
}

func TestAdminUploadIsAutoApproved(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendDatabase)
	actor := adminOf(bodyA)

	doc, err := f.svc.Upload(context.Background(), actor, dto.UploadDocumentCommand{Title: "Policy", IsPublic: boolPtr(false)}, pdfUpload(), models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, doc.ApprovalStatus)
	require.NotNil(t, doc.ApprovedBy)
	assert.Equal(t, actor.UserID, *doc.ApprovedBy)
	require.NotNil(t, doc.ApprovedAt)
	assert.Equal(t, doc.RequestedAt, *doc.ApprovedAt)
	assert.False(t, doc.IsPublic)
}

func TestUploadForAnotherBodyForbidden(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendDatabase)

	_, err := f.svc.Upload(context.Background(), subAdminOf(bodyA), dto.UploadDocumentCommand{Title: "X", UniversityBodyID: strPtr(bodyB)}, pdfUpload(), models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Empty(t, f.repo.docs)
}

func TestUploadForUnknownBodyIsValidationError(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendDatabase)
	unknown := "cccccccc-cccc-4ccc-8ccc-cccccccccccc"

	for _, actor := range []*policy.Actor{adminOf(bodyA), subAdminOf(bodyA), superAdmin()} {
		_, err := f.svc.Upload(context.Background(), actor, dto.UploadDocumentCommand{Title: "X", UniversityBodyID: strPtr(unknown)}, pdfUpload(), models.RequestMeta{})
		require.Error(t, err)
		assert.ErrorIs(t, err, appErrors.ErrValidation)
		assert.NotErrorIs(t, err, appErrors.ErrForbidden)
		assert.Equal(t, []FieldError{{Field: "university_body_id", Message: "University body not found"}}, appErrors.FromError(err).Details)
	}
	assert.Empty(t, f.repo.docs)
}

func TestUploadWithoutAffiliationRejected(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendDatabase)
	actor := &policy.Actor{UserID: "admin-x", Role: models.RoleAdmin}

	_, err := f.svc.Upload(context.Background(), actor, dto.UploadDocumentCommand{Title: "X"}, pdfUpload(), models.RequestMeta{})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "Validation failed", appErr.Message)
	assert.Equal(t, []FieldError{{Field: "university_body_id", Message: "You are not affiliated with any university body"}}, appErr.Details)
}

func TestSuperAdminUploadChoosesExistingBodyOrNone(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendDatabase)

	doc, err := f.svc.Upload(context.Background(), superAdmin(), dto.UploadDocumentCommand{Title: "Charter", UniversityBodyID: strPtr(bodyB)}, pdfUpload(), models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, bodyB, *doc.UniversityBodyID)

	doc, err = f.svc.Upload(context.Background(), superAdmin(), dto.UploadDocumentCommand{Title: "Unassigned"}, pdfUpload(), models.RequestMeta{})
	require.NoError(t, err)
	assert.Nil(t, doc.UniversityBodyID)

	_, err = f.svc.Upload(context.Background(), superAdmin(), dto.UploadDocumentCommand{Title: "Ghost", UniversityBodyID: strPtr("cccccccc-cccc-cccc-cccc-cccccccccccc")}, pdfUpload(), models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUploadValidation(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendDatabase)
	actor := adminOf(bodyA)

	_, err := f.svc.Upload(context.Background(), nil, dto.UploadDocumentCommand{Title: "X"}, pdfUpload(), models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = f.svc.Upload(context.Background(), actor, dto.UploadDocumentCommand{Title: "   "}, pdfUpload(), models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Upload(context.Background(), actor, dto.UploadDocumentCommand{Title: "X"}, nil, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	big := bytes.Repeat([]byte("a"), 2048)
	_, err = f.svc.Upload(context.Background(), actor, dto.UploadDocumentCommand{Title: "X"}, &FileUpload{Name: "big.txt", Content: bytes.NewReader(big)}, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, 413, appErrors.FromError(err).Status)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	_, err = f.svc.Upload(context.Background(), actor, dto.UploadDocumentCommand{Title: "X"}, &FileUpload{Name: "note.pdf", Content: bytes.NewReader(png)}, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, 415, appErrors.FromError(err).Status)

	assert.Empty(t, f.repo.docs)
}

func TestExternalUploadRemovesBlobWhenMetadataFails(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendLocal)
	f.repo.createErr = errors.New("insert failed")

	_, err := f.svc.Upload(context.Background(), adminOf(bodyA), dto.UploadDocumentCommand{Title: "X"}, pdfUpload(), models.RequestMeta{})
	require.Error(t, err)
	assert.Empty(t, f.blobs.objects)
	require.Len(t, f.blobs.deleted, 1)
	assert.True(t, strings.HasPrefix(f.blobs.deleted[0], "documents/"))
}

func TestExternalUploadStoresBlobUnderKey(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendMinio)

	doc, err := f.svc.Upload(context.Background(), adminOf(bodyA), dto.UploadDocumentCommand{Title: "X"}, pdfUpload(), models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, config.StorageBackendMinio, doc.StorageBackend)
	assert.True(t, strings.HasSuffix(doc.StorageKey, doc.ID+".pdf"))
	assert.Equal(t, pdfBytes, f.blobs.objects[doc.StorageKey])
	assert.Nil(t, f.repo.blobs[doc.ID])

	content, err := f.svc.Download(context.Background(), adminOf(bodyA), doc.ID, models.RequestMeta{})
	require.NoError(t, err)
	defer content.Reader.Close()
	data, err := io.ReadAll(content.Reader)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, data)
}

// Visibility of a pending sub_admin upload, end to end.
func TestPendingDocumentVisibilityScenario(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendDatabase)
	uploader := subAdminOf(bodyA)
	peer := &policy.Actor{UserID: "sub-a-2", Role: models.RoleSubAdmin, BodyID: strPtr(bodyA)}

	doc, err := f.svc.Upload(context.Background(), uploader, dto.UploadDocumentCommand{Title: "Draft"}, pdfUpload(), models.RequestMeta{})
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), uploader, doc.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(context.Background(), adminOf(bodyA), doc.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(context.Background(), peer, doc.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = f.svc.Get(context.Background(), adminOf(bodyB), doc.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = f.svc.Get(context.Background(), nil, doc.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	public, _, err := f.svc.List(context.Background(), nil, dto.DocumentListQuery{})
	require.NoError(t, err)
	assert.Empty(t, public)
}

func TestListAppliesVisibilityBeforeFilters(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendDatabase,
		docIn("d1", bodyA, "u1", models.ApprovalApproved, true),
		docIn("d2", bodyA, "u2", models.ApprovalPending, true),
		docIn("d3", bodyB, "u3", models.ApprovalApproved, true),
		docIn("d4", bodyB, "u3", models.ApprovalApproved, false),
	)

	docs, pagination, err := f.svc.List(context.Background(), nil, dto.DocumentListQuery{})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, 2, pagination.TotalCount)

	docs, _, err = f.svc.List(context.Background(), adminOf(bodyA), dto.DocumentListQuery{UniversityBodyID: bodyB})
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, _, err = f.svc.List(context.Background(), adminOf(bodyA), dto.DocumentListQuery{Status: "pending"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "d2", docs[0].ID)

	docs, _, err = f.svc.List(context.Background(), superAdmin(), dto.DocumentListQuery{PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, docs, 3)
	assert.True(t, f.repo.lastList.Visibility.All)
}

func TestListMineScopesToUploader(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendDatabase,
		docIn("d1", bodyA, "admin-"+bodyA, models.ApprovalApproved, true),
		docIn("d2", bodyA, "u2", models.ApprovalApproved, true),
	)

	docs, _, err := f.svc.List(context.Background(), adminOf(bodyA), dto.DocumentListQuery{Mine: true})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "d1", docs[0].ID)
}

func TestUpdateDocumentPermissions(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendDatabase,
		docIn("d1", bodyA, "u1", models.ApprovalApproved, true),
	)
	peer := subAdminOf(bodyA)

	_, err := f.svc.Update(context.Background(), peer, "d1", dto.UpdateDocumentCommand{Title: strPtr("Hijack")}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Update(context.Background(), adminOf(bodyB), "d1", dto.UpdateDocumentCommand{Title: strPtr("Hijack")}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.svc.Update(context.Background(), adminOf(bodyA), "d1", dto.UpdateDocumentCommand{UniversityBodyID: strPtr(bodyB)}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	doc, err := f.svc.Update(context.Background(), adminOf(bodyA), "d1", dto.UpdateDocumentCommand{Title: strPtr("Renamed"), IsPublic: boolPtr(false)}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", doc.Title)
	assert.False(t, f.repo.get("d1").IsPublic)

	doc, err = f.svc.Update(context.Background(), superAdmin(), "d1", dto.UpdateDocumentCommand{UniversityBodyID: strPtr(bodyB)}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, bodyB, *doc.UniversityBodyID)
}

func TestDeleteExternalDocumentQueuesBlobRemoval(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendLocal)
	doc, err := f.svc.Upload(context.Background(), subAdminOf(bodyA), dto.UploadDocumentCommand{Title: "X"}, pdfUpload(), models.RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), subAdminOf(bodyA), doc.ID, models.RequestMeta{}))
	assert.Nil(t, f.repo.get(doc.ID))
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, JobBlobDelete, f.queue.jobs[0].Type)
	assert.Equal(t, doc.StorageKey, f.queue.jobs[0].Payload["key"])

	require.NoError(t, f.svc.HandleBlobDeletion(context.Background(), f.queue.jobs[0]))
	assert.Empty(t, f.blobs.objects)
	// Deleting twice is harmless.
	assert.NoError(t, f.svc.HandleBlobDeletion(context.Background(), f.queue.jobs[0]))
}

func TestDeleteFallsBackToInlineBlobRemoval(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendLocal)
	f.queue.err = errors.New("queue full")
	doc, err := f.svc.Upload(context.Background(), adminOf(bodyA), dto.UploadDocumentCommand{Title: "X"}, pdfUpload(), models.RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), adminOf(bodyA), doc.ID, models.RequestMeta{}))
	assert.Empty(t, f.blobs.objects)
}

func TestDownloadIncrementsCounter(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendDatabase)
	doc, err := f.svc.Upload(context.Background(), adminOf(bodyA), dto.UploadDocumentCommand{Title: "X"}, pdfUpload(), models.RequestMeta{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		content, err := f.svc.Download(context.Background(), nil, doc.ID, models.RequestMeta{})
		require.NoError(t, err)
		assert.Equal(t, int64(len(pdfBytes)), content.Size)
		content.Reader.Close()
	}
	assert.Equal(t, int64(3), f.repo.get(doc.ID).DownloadCount)
	assert.Contains(t, f.audit.actions(), models.AuditActionDocumentDownload)
}

func TestShareLinkRoundTrip(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendDatabase)
	doc, err := f.svc.Upload(context.Background(), adminOf(bodyA), dto.UploadDocumentCommand{Title: "X", IsPublic: boolPtr(false)}, pdfUpload(), models.RequestMeta{})
	require.NoError(t, err)

	token, expiresAt, err := f.svc.ShareLink(context.Background(), adminOf(bodyA), doc.ID)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	content, err := f.svc.OpenShared(context.Background(), token, models.RequestMeta{})
	require.NoError(t, err)
	content.Reader.Close()
	assert.Equal(t, doc.ID, content.Document.ID)

	_, err = f.svc.OpenShared(context.Background(), token+"x", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestShareLinkRequiresApproval(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendDatabase)
	doc, err := f.svc.Upload(context.Background(), subAdminOf(bodyA), dto.UploadDocumentCommand{Title: "X"}, pdfUpload(), models.RequestMeta{})
	require.NoError(t, err)

	_, _, err = f.svc.ShareLink(context.Background(), subAdminOf(bodyA), doc.ID)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestExportRespectsVisibility(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendDatabase,
		docIn("d1", bodyA, "u1", models.ApprovalApproved, true),
		docIn("d2", bodyB, "u2", models.ApprovalApproved, true),
	)

	payload, format, err := f.svc.Export(context.Background(), adminOf(bodyA), dto.DocumentListQuery{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "csv", string(format))
	assert.Contains(t, string(payload), "Doc d1")
	assert.NotContains(t, string(payload), "Doc d2")

	_, _, err = f.svc.Export(context.Background(), adminOf(bodyA), dto.DocumentListQuery{}, "docx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestStatsCachedPerScope(t *testing.T) {
	f := newDocumentFixture(config.StorageBackendDatabase,
		docIn("d1", bodyA, "u1", models.ApprovalApproved, true),
		docIn("d2", bodyA, "u2", models.ApprovalPending, true),
		docIn("d3", bodyB, "u3", models.ApprovalRejected, true),
	)

	stats, err := f.svc.Stats(context.Background(), adminOf(bodyA))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Pending)

	all, err := f.svc.Stats(context.Background(), superAdmin())
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	assert.Equal(t, 1, all.Rejected)
	assert.Len(t, f.cache.values, 2)
}
