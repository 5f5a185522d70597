package dto

// CreateUserRequest represents payload for creating users. Role accepts the
// canonical names and the legacy director aliases.
type CreateUserRequest struct {
	Email            string  `json:"email" validate:"required,email,max=255"`
	Password         string  `json:"password" validate:"required,min=6"`
	FirstName        string  `json:"first_name" validate:"required,max=100"`
	LastName         string  `json:"last_name" validate:"required,max=100"`
	Designation      *string `json:"designation" validate:"omitempty,max=150"`
	Phone            *string `json:"phone" validate:"omitempty,max=50"`
	Role             string  `json:"role" validate:"required"`
	UniversityBodyID *string `json:"university_body_id" validate:"omitempty,uuid"`
	IsActive         *bool   `json:"is_active"`
}

// UpdateUserRequest payload for updating users. Nil fields are left as is.
type UpdateUserRequest struct {
	Email            *string `json:"email" validate:"omitempty,email,max=255"`
	Password         *string `json:"password" validate:"omitempty,min=6"`
	FirstName        *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName         *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Designation      *string `json:"designation" validate:"omitempty,max=150"`
	Phone            *string `json:"phone" validate:"omitempty,max=50"`
	Role             *string `json:"role"`
	UniversityBodyID *string `json:"university_body_id" validate:"omitempty,uuid"`
	ClearBody        bool    `json:"clear_university_body"`
	IsActive         *bool   `json:"is_active"`
}

// UpdateProfileRequest lets any user edit their own display fields.
type UpdateProfileRequest struct {
	FirstName   *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName    *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Designation *string `json:"designation" validate:"omitempty,max=150"`
	Phone       *string `json:"phone" validate:"omitempty,max=50"`
}

// UserListQuery captures listing parameters for users.
type UserListQuery struct {
	Page             int    `form:"page"`
	PageSize         int    `form:"page_size"`
	Role             string `form:"role"`
	Active           *bool  `form:"is_active"`
	UniversityBodyID string `form:"university_body_id" validate:"omitempty,uuid"`
	Search           string `form:"search"`
	SortBy           string `form:"sort_by"`
	SortOrder        string `form:"sort_order"`
}
