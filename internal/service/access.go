package service

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/noah-isme/classroom-attendance-api/internal/models"
	appErrors "github.com/noah-isme/classroom-attendance-api/pkg/errors"
)

// AccessLevel is the relationship a caller needs with a class.
type AccessLevel int

const (
	// AccessMember admits the owning teacher and enrolled students.
	AccessMember AccessLevel = iota
	// AccessOwner admits only the owning teacher.
	AccessOwner
)

type classFinder interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// ClassAccess is the ownership check shared by every class-scoped operation.
type ClassAccess struct {
	classes classFinder
}

// NewClassAccess constructs the access checker.
func NewClassAccess(classes classFinder) *ClassAccess {
	return &ClassAccess{classes: classes}
}

// Authorize loads the class and checks the caller's relationship to it.
// A missing class is reported before any permission failure.
func (a *ClassAccess) Authorize(ctx context.Context, classID string, claims *models.JWTClaims, level AccessLevel) (*models.Class, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	class, err := a.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch class")
	}

	switch level {
	case AccessOwner:
		if !class.IsTeacher(claims.UserID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "Forbidden, not class teacher")
		}
	default:
		if !class.IsTeacher(claims.UserID) && !class.HasStudent(claims.UserID) {
			return nil, appErrors.ErrForbidden
		}
	}
	return class, nil
}
