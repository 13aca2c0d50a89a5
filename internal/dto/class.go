package dto

import "github.com/noah-isme/classroom-attendance-api/internal/models"

// CreateClassRequest creates a class owned by the caller.
type CreateClassRequest struct {
	ClassName string `json:"className" validate:"required"`
}

// AddStudentRequest enrols a student into a class.
type AddStudentRequest struct {
	StudentID string `json:"studentId" validate:"required,mongodb"`
}

// ClassResponse is the roster-by-id view of a class.
type ClassResponse struct {
	ID         string   `json:"_id"`
	ClassName  string   `json:"className"`
	TeacherID  string   `json:"teacherId"`
	StudentIDs []string `json:"studentIds"`
}

// NewClassResponse projects a stored class; StudentIDs is never null.
func NewClassResponse(c *models.Class) ClassResponse {
	ids := c.StudentIDs
	if ids == nil {
		ids = []string{}
	}
	return ClassResponse{ID: c.ID.Hex(), ClassName: c.ClassName, TeacherID: c.TeacherID, StudentIDs: ids}
}

// ClassStudent is a roster entry with contact details.
type ClassStudent struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ClassDetailResponse is a class with its resolved roster.
type ClassDetailResponse struct {
	ID        string         `json:"_id"`
	ClassName string         `json:"className"`
	TeacherID string         `json:"teacherId"`
	Students  []ClassStudent `json:"students"`
}
