package models

import "time"

// ApprovalStatus is the review state of a document.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Valid reports whether s is a known approval status.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// Document is the metadata row for an uploaded file.
type Document struct {
	ID               string         `db:"id" json:"id"`
	Title            string         `db:"title" json:"title"`
	Description      *string        `db:"description" json:"description,omitempty"`
	FileName         string         `db:"file_name" json:"file_name"`
	MimeType         string         `db:"mime_type" json:"mime_type"`
	FileSize         int64          `db:"file_size" json:"file_size"`
	StorageBackend   string         `db:"storage_backend" json:"-"`
	StorageKey       string         `db:"storage_key" json:"-"`
	UploadedBy       string         `db:"uploaded_by" json:"uploaded_by"`
	UniversityBodyID *string        `db:"university_body_id" json:"university_body_id,omitempty"`
	IsPublic         bool           `db:"is_public" json:"is_public"`
	ApprovalStatus   ApprovalStatus `db:"approval_status" json:"approval_status"`
	ApprovedBy       *string        `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt       *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason  *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	RequestedAt      time.Time      `db:"requested_at" json:"requested_at"`
	DownloadCount    int64          `db:"download_count" json:"download_count"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`

	UploaderName       string  `db:"uploader_name" json:"uploader_name,omitempty"`
	UniversityBodyName *string `db:"university_body_name" json:"university_body_name,omitempty"`
}

// DocumentVisibility is the row-level predicate derived from the caller.
// Exactly one of the modes applies.
type DocumentVisibility struct {
	// All grants unrestricted reads (super_admin).
	All bool
	// PublicOnly restricts to approved public documents (anonymous callers).
	PublicOnly bool
	// BodyID restricts to documents of a body.
	BodyID string
	// ApprovedInBodyOnly limits BodyID matches to approved documents, while
	// UploaderID documents are always visible (sub_admin).
	ApprovedInBodyOnly bool
	// UploaderID grants visibility to the caller's own uploads.
	UploaderID string
	// Nothing matches (an actor without any scope).
	None bool
}

// DocumentFilter carries caller filters applied after visibility.
type DocumentFilter struct {
	Visibility       DocumentVisibility
	Status           ApprovalStatus
	UniversityBodyID string
	UploadedBy       string
	Search           string
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}

// DocumentReview is the target state written by an approval transition.
type DocumentReview struct {
	DocumentID      string
	Status          ApprovalStatus
	ReviewerID      string
	ReviewedAt      time.Time
	RejectionReason *string
}

// DocumentStats aggregates document counts per approval status.
type DocumentStats struct {
	Total          int   `json:"total"`
	Pending        int   `json:"pending"`
	Approved       int   `json:"approved"`
	Rejected       int   `json:"rejected"`
	TotalDownloads int64 `json:"total_downloads"`
}

// Matches evaluates the visibility predicate against a loaded document. It
// mirrors the SQL predicate built by the document repository.
func (v DocumentVisibility) Matches(doc *Document) bool {
	if doc == nil || v.None {
		return false
	}
	if v.All {
		return true
	}
	if v.PublicOnly {
		return doc.ApprovalStatus == ApprovalApproved && doc.IsPublic
	}
	if v.UploaderID != "" && doc.UploadedBy == v.UploaderID {
		return true
	}
	if v.BodyID != "" && doc.UniversityBodyID != nil && *doc.UniversityBodyID == v.BodyID {
		return !v.ApprovedInBodyOnly || doc.ApprovalStatus == ApprovalApproved
	}
	return false
}
