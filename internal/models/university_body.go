package models

import "time"

// UniversityBodyType classifies a university body.
type UniversityBodyType string

const (
	BodyTypeBoard      UniversityBodyType = "Board"
	BodyTypeCommittee  UniversityBodyType = "Committee"
	BodyTypeCouncil    UniversityBodyType = "Council"
	BodyTypeDepartment UniversityBodyType = "Department"
	BodyTypeOffice     UniversityBodyType = "Office"
	BodyTypeOther      UniversityBodyType = "Other"
)

// UniversityBody is an organisational unit that owns documents and users.
type UniversityBody struct {
	ID          string             `db:"id" json:"id"`
	Name        string             `db:"name" json:"name"`
	Type        UniversityBodyType `db:"type" json:"type"`
	Description *string            `db:"description" json:"description,omitempty"`
	AdminID     *string            `db:"admin_id" json:"admin_id,omitempty"`
	Active      bool               `db:"is_active" json:"is_active"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

// PublicUniversityBody is the listing shape exposed to anonymous callers.
type PublicUniversityBody struct {
	ID          string             `db:"id" json:"id"`
	Name        string             `db:"name" json:"name"`
	Type        UniversityBodyType `db:"type" json:"type"`
	Description *string            `db:"description" json:"description,omitempty"`
}

// UniversityBodyFilter narrows body listings.
type UniversityBodyFilter struct {
	Type      string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Public projects the body onto its anonymous listing shape.
func (b *UniversityBody) Public() PublicUniversityBody {
	return PublicUniversityBody{ID: b.ID, Name: b.Name, Type: b.Type, Description: b.Description}
}
