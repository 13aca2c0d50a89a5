package dto

import "github.com/noah-isme/classroom-attendance-api/internal/models"

// SignupRequest registers a new account.
type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=teacher student"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	Token string `json:"token"`
}

// UserResponse describes an account without its credential.
type UserResponse struct {
	ID    string          `json:"_id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Role  models.UserRole `json:"role"`
}

// NewUserResponse projects a stored user.
func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID.Hex(), Name: u.Name, Email: u.Email, Role: u.Role}
}

// StudentListItem is one entry of the student directory.
type StudentListItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
