package handler

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/unidocs-api/internal/dto"
	"github.com/noah-isme/unidocs-api/internal/models"
	"github.com/noah-isme/unidocs-api/internal/policy"
	"github.com/noah-isme/unidocs-api/internal/service"
	appErrors "github.com/noah-isme/unidocs-api/pkg/errors"
	"github.com/noah-isme/unidocs-api/pkg/export"
	"github.com/noah-isme/unidocs-api/pkg/response"
)

type documentService interface {
	Upload(ctx context.Context, actor *policy.Actor, cmd dto.UploadDocumentCommand, file *service.FileUpload, meta models.RequestMeta) (*models.Document, error)
	Get(ctx context.Context, actor *policy.Actor, id string) (*models.Document, error)
	List(ctx context.Context, actor *policy.Actor, query dto.DocumentListQuery) ([]models.Document, *models.Pagination, error)
	Update(ctx context.Context, actor *policy.Actor, id string, cmd dto.UpdateDocumentCommand, meta models.RequestMeta) (*models.Document, error)
	Delete(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) error
	Download(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) (*service.DocumentContent, error)
	ShareLink(ctx context.Context, actor *policy.Actor, id string) (string, time.Time, error)
	OpenShared(ctx context.Context, token string, meta models.RequestMeta) (*service.DocumentContent, error)
	Export(ctx context.Context, actor *policy.Actor, query dto.DocumentListQuery, rawFormat string) ([]byte, export.Format, error)
	Stats(ctx context.Context, actor *policy.Actor) (*models.DocumentStats, error)
}

type approvalService interface {
	ListPending(ctx context.Context, actor *policy.Actor, query dto.DocumentListQuery) ([]models.Document, *models.Pagination, error)
	Approve(ctx context.Context, actor *policy.Actor, id string, meta models.RequestMeta) (*models.Document, error)
	Reject(ctx context.Context, actor *policy.Actor, id string, cmd dto.ReviewDocumentCommand, meta models.RequestMeta) (*models.Document, error)
}

// DocumentHandler serves the document endpoints for every role.
type DocumentHandler struct {
	documents  documentService
	approvals  approvalService
	sharedPath string
	now        func() time.Time
}

// NewDocumentHandler builds the handler. apiPrefix is used to compose share URLs.
func NewDocumentHandler(documents documentService, approvals approvalService, apiPrefix string) *DocumentHandler {
	return &DocumentHandler{
		documents:  documents,
		approvals:  approvals,
		sharedPath: strings.TrimRight(apiPrefix, "/") + "/documents/shared/",
		now:        time.Now,
	}
}

// List godoc
// @Summary List documents
// @Description Documents visible to the caller; anonymous callers see approved public documents
// @Tags Documents
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Param search query string false "Title or description search"
// @Param status query string false "pending, approved or rejected"
// @Param university_body_id query string false "Body filter"
// @Param mine query bool false "Only my uploads"
// @Param sort_by query string false "Sort column"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	var query dto.DocumentListQuery
	if err := bindQuery(c, &query); err != nil {
		response.Error(c, err)
		return
	}
	docs, pagination, err := h.documents.List(c.Request.Context(), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination)
}

// Get godoc
// @Summary Get document metadata
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Upload godoc
// @Summary Upload document
// @Description Admin uploads are approved immediately; sub-admin uploads wait for review
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param university_body_id formData string false "Body (super admin only)"
// @Param is_public formData bool false "Public once approved"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var cmd dto.UploadDocumentCommand
	if err := c.ShouldBind(&cmd); err != nil {
		response.Error(c, invalidInput(err, "form", "invalid upload form"))
		return
	}
	cmd.Description = blankToNil(cmd.Description)
	cmd.UniversityBodyID = blankToNil(cmd.UniversityBodyID)

	var upload *service.FileUpload
	if fileHeader, err := c.FormFile("file"); err == nil {
		src, err := fileHeader.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
			return
		}
		defer src.Close()
		upload = &service.FileUpload{Name: fileHeader.Filename, Size: fileHeader.Size, Content: src}
	}

	doc, err := h.documents.Upload(c.Request.Context(), actor, cmd, upload, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Update godoc
// @Summary Update document metadata
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.UpdateDocumentCommand true "Changes"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	var cmd dto.UpdateDocumentCommand
	if err := bindJSON(c, &cmd, "invalid document payload"); err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.documents.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), cmd, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Delete godoc
// @Summary Delete document
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), actorFromContext(c), c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Download godoc
// @Summary Download document file
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Success 200 {file} binary
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	content, err := h.documents.Download(c.Request.Context(), actorFromContext(c), c.Param("id"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	streamDocument(c, content)
}

// DownloadURL godoc
// @Summary Issue a signed share link
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/download-url [get]
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	token, expiresAt, err := h.documents.ShareLink(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ShareLinkResponse{
		URL:       h.sharedPath + url.PathEscape(token),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil)
}

// Shared godoc
// @Summary Download through a share link
// @Tags Documents
// @Produce octet-stream
// @Param token path string true "Share token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/shared/{token} [get]
func (h *DocumentHandler) Shared(c *gin.Context) {
	content, err := h.documents.OpenShared(c.Request.Context(), c.Param("token"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	streamDocument(c, content)
}

// Pending godoc
// @Summary Review queue
// @Description Pending documents the caller may review, oldest first
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /documents/pending [get]
func (h *DocumentHandler) Pending(c *gin.Context) {
	var query dto.DocumentListQuery
	if err := bindQuery(c, &query); err != nil {
		response.Error(c, err)
		return
	}
	docs, pagination, err := h.approvals.ListPending(c.Request.Context(), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination)
}

// Approve godoc
// @Summary Approve pending document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents/{id}/approve [post]
func (h *DocumentHandler) Approve(c *gin.Context) {
	doc, err := h.approvals.Approve(c.Request.Context(), actorFromContext(c), c.Param("id"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Document approved", doc)
}

// Reject godoc
// @Summary Reject pending document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.ReviewDocumentCommand true "Reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents/{id}/reject [post]
func (h *DocumentHandler) Reject(c *gin.Context) {
	var cmd dto.ReviewDocumentCommand
	if err := bindOptionalJSON(c, &cmd, "invalid rejection payload"); err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.approvals.Reject(c.Request.Context(), actorFromContext(c), c.Param("id"), cmd, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Document rejected", doc)
}

// Export godoc
// @Summary Export document register
// @Tags Documents
// @Produce octet-stream
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} binary
// @Router /documents/export [get]
func (h *DocumentHandler) Export(c *gin.Context) {
	var query dto.DocumentListQuery
	if err := bindQuery(c, &query); err != nil {
		response.Error(c, err)
		return
	}
	payload, format, err := h.documents.Export(c.Request.Context(), actorFromContext(c), query, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("documents-%s.%s", h.now().UTC().Format("20060102"), format.Extension())
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, format.ContentType(), payload)
}

// Stats godoc
// @Summary Document counts by status
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /documents/stats [get]
func (h *DocumentHandler) Stats(c *gin.Context) {
	stats, err := h.documents.Stats(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

func streamDocument(c *gin.Context, content *service.DocumentContent) {
	defer content.Reader.Close() //nolint:errcheck
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": content.Document.FileName})
	if disposition == "" {
		disposition = "attachment"
	}
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, content.Size, content.Document.MimeType, content.Reader, map[string]string{
		"Content-Disposition": disposition,
		"X-Document-Id":       content.Document.ID,
		"X-Download-Count":    strconv.FormatInt(content.Document.DownloadCount, 10),
	})
}
