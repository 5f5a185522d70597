package dto

import "github.com/noah-isme/unidocs-api/internal/models"

// CreateUniversityBodyRequest registers a new body.
type CreateUniversityBodyRequest struct {
	Name        string                    `json:"name" validate:"required,max=200"`
	Type        models.UniversityBodyType `json:"type" validate:"required,oneof=Board Committee Council Department Office Other"`
	Description *string                   `json:"description" validate:"omitempty,max=2000"`
	AdminID     *string                   `json:"admin_id" validate:"omitempty,uuid"`
	IsActive    *bool                     `json:"is_active"`
}

// UpdateUniversityBodyRequest changes body attributes. Nil fields are left as is.
type UpdateUniversityBodyRequest struct {
	Name        *string                    `json:"name" validate:"omitempty,min=1,max=200"`
	Type        *models.UniversityBodyType `json:"type" validate:"omitempty,oneof=Board Committee Council Department Office Other"`
	Description *string                    `json:"description" validate:"omitempty,max=2000"`
	AdminID     *string                    `json:"admin_id" validate:"omitempty,uuid"`
	ClearAdmin  bool                       `json:"clear_admin"`
	IsActive    *bool                      `json:"is_active"`
}

// UniversityBodyListQuery captures listing parameters.
type UniversityBodyListQuery struct {
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	Type      string `form:"type" validate:"omitempty,oneof=Board Committee Council Department Office Other"`
	Search    string `form:"search"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}
