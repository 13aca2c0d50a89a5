package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-attendance-api/internal/dto"
	"github.com/noah-isme/classroom-attendance-api/internal/models"
	appErrors "github.com/noah-isme/classroom-attendance-api/pkg/errors"
)

type classRepository interface {
	Create(ctx context.Context, class *models.Class) error
	FindByID(ctx context.Context, id string) (*models.Class, error)
	AddStudent(ctx context.Context, classID, studentID string) (*models.Class, error)
}

type classUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

// ClassService manages classes and their rosters.
type ClassService struct {
	classes     classRepository
	users       classUserRepository
	access      *ClassAccess
	cache       *CacheService
	audit       *AuditService
	validator   *validator.Validate
	logger      *zap.Logger
	studentsTTL time.Duration
}

// NewClassService constructs a ClassService.
func NewClassService(classes classRepository, users classUserRepository, access *ClassAccess, cache *CacheService, audit *AuditService, validate *validator.Validate, logger *zap.Logger, studentsTTL time.Duration) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ClassService{
		classes:     classes,
		users:       users,
		access:      access,
		cache:       cache,
		audit:       audit,
		validator:   validate,
		logger:      logger,
		studentsTTL: studentsTTL,
	}
}

// Create stores a class owned by the calling teacher.
func (s *ClassService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateClassRequest) (*dto.ClassResponse, error) {
	req.ClassName = strings.TrimSpace(req.ClassName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	class := &models.Class{ClassName: req.ClassName, TeacherID: claims.UserID}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}

	s.audit.Record(ctx, AuditEntry{
		UserID:     claims.UserID,
		Action:     models.AuditActionClassCreate,
		Resource:   "class",
		ResourceID: class.ID.Hex(),
		Payload:    req,
	})

	res := dto.NewClassResponse(class)
	return &res, nil
}

// AddStudent enrols a student into a class owned by the caller. Enrolling twice is a no-op.
func (s *ClassService) AddStudent(ctx context.Context, claims *models.JWTClaims, classID string, req dto.AddStudentRequest) (*dto.ClassResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}
	owned, err := s.access.Authorize(ctx, classID, claims, AccessOwner)
	if err != nil {
		return nil, err
	}
	classID = owned.ID.Hex()

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	if err != nil || student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not found")
	}

	class, err := s.classes.AddStudent(ctx, classID, req.StudentID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add student")
	}

	s.audit.Record(ctx, AuditEntry{
		UserID:     claims.UserID,
		Action:     models.AuditActionStudentEnroll,
		Resource:   "class",
		ResourceID: classID,
		Payload:    req,
	})

	res := dto.NewClassResponse(class)
	return &res, nil
}

// Get returns a class with its resolved roster to its teacher or enrolled students.
func (s *ClassService) Get(ctx context.Context, claims *models.JWTClaims, classID string) (*dto.ClassDetailResponse, error) {
	class, err := s.access.Authorize(ctx, classID, claims, AccessMember)
	if err != nil {
		return nil, err
	}

	students, err := s.users.FindByIDs(ctx, class.StudentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch students")
	}

	roster := make([]dto.ClassStudent, 0, len(students))
	for _, st := range students {
		roster = append(roster, dto.ClassStudent{ID: st.ID.Hex(), Name: st.Name, Email: st.Email})
	}
	return &dto.ClassDetailResponse{
		ID:        class.ID.Hex(),
		ClassName: class.ClassName,
		TeacherID: class.TeacherID,
		Students:  roster,
	}, nil
}

// ListStudents returns every student account, served from cache when enabled.
func (s *ClassService) ListStudents(ctx context.Context) ([]dto.StudentListItem, error) {
	var cached []dto.StudentListItem
	if s.cache.Get(ctx, StudentsCacheKey, &cached) {
		return cached, nil
	}

	users, err := s.users.ListByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	items := make([]dto.StudentListItem, 0, len(users))
	for _, u := range users {
		items = append(items, dto.StudentListItem{ID: u.ID.Hex(), Name: u.Name, Email: u.Email})
	}
	s.cache.Set(ctx, StudentsCacheKey, items, s.studentsTTL)
	return items, nil
}
