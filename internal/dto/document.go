package dto

import (
	"time"

	"github.com/noah-isme/unidocs-api/internal/models"
)

// UploadDocumentCommand carries the multipart form fields sent with a file.
type UploadDocumentCommand struct {
	Title            string  `form:"title" json:"title" validate:"required,max=255"`
	Description      *string `form:"description" json:"description" validate:"omitempty,max=5000"`
	UniversityBodyID *string `form:"university_body_id" json:"university_body_id" validate:"omitempty,uuid"`
	IsPublic         *bool   `form:"is_public" json:"is_public"`
}

// UpdateDocumentCommand changes document metadata. Nil fields are left as is.
type UpdateDocumentCommand struct {
	Title            *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description      *string `json:"description" validate:"omitempty,max=5000"`
	IsPublic         *bool   `json:"is_public"`
	UniversityBodyID *string `json:"university_body_id" validate:"omitempty,uuid"`
}

// ReviewDocumentCommand is the payload of a reject decision.
type ReviewDocumentCommand struct {
	Reason string `json:"reason"`
}

// DocumentListQuery captures the query string of document listings.
type DocumentListQuery struct {
	Page             int    `form:"page"`
	PageSize         int    `form:"page_size"`
	Search           string `form:"search"`
	Status           string `form:"status" validate:"omitempty,oneof=pending approved rejected"`
	UniversityBodyID string `form:"university_body_id" validate:"omitempty,uuid"`
	Mine             bool   `form:"mine"`
	SortBy           string `form:"sort_by"`
	SortOrder        string `form:"sort_order"`
}

// Filter converts the query into a repository filter without visibility.
func (q DocumentListQuery) Filter() models.DocumentFilter {
	return models.DocumentFilter{
		Status:           models.ApprovalStatus(q.Status),
		UniversityBodyID: q.UniversityBodyID,
		Search:           q.Search,
		Page:             q.Page,
		PageSize:         q.PageSize,
		SortBy:           q.SortBy,
		SortOrder:        q.SortOrder,
	}
}

// ShareLinkResponse is returned for signed download link requests.
type ShareLinkResponse struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
