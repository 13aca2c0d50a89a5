package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-attendance-api/internal/dto"
	"github.com/noah-isme/classroom-attendance-api/internal/models"
	appErrors "github.com/noah-isme/classroom-attendance-api/pkg/errors"
	"github.com/noah-isme/classroom-attendance-api/pkg/export"
)

type sessionStore interface {
	Create(ctx context.Context, session *models.AttendanceSession, ttl time.Duration) error
	Get(ctx context.Context, classID string) (*models.AttendanceSession, error)
	Mark(ctx context.Context, classID, studentID string, status models.AttendanceStatus) error
	Take(ctx context.Context, classID string) (*models.AttendanceSession, error)
	Restore(ctx context.Context, session *models.AttendanceSession, ttl time.Duration) error
}

type attendanceRepository interface {
	InsertMany(ctx context.Context, records []models.Attendance) error
	FindLatest(ctx context.Context, classID, studentID string) (*models.Attendance, error)
	ListByClass(ctx context.Context, classID string) ([]models.Attendance, error)
}

type attendanceUserRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

var exportHeaders = []string{"Session", "Marked At", "Student ID", "Name", "Email", "Status"}

// AttendanceService runs live roll calls and persists their outcome.
type AttendanceService struct {
	sessions     sessionStore
	records      attendanceRepository
	users        attendanceUserRepository
	access       *ClassAccess
	exporters    *export.Registry
	metrics      *MetricsService
	audit        *AuditService
	validator    *validator.Validate
	logger       *zap.Logger
	sessionTTL   time.Duration
	now          func() time.Time
	newSessionID func() string
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(
	sessions sessionStore,
	records attendanceRepository,
	users attendanceUserRepository,
	access *ClassAccess,
	exporters *export.Registry,
	metrics *MetricsService,
	audit *AuditService,
	validate *validator.Validate,
	logger *zap.Logger,
	sessionTTL time.Duration,
) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if exporters == nil {
		exporters = export.NewRegistry()
	}
	if sessionTTL <= 0 {
		sessionTTL = 2 * time.Hour
	}
	return &AttendanceService{
		sessions:     sessions,
		records:      records,
		users:        users,
		access:       access,
		exporters:    exporters,
		metrics:      metrics,
		audit:        audit,
		validator:    validate,
		logger:       logger,
		sessionTTL:   sessionTTL,
		now:          time.Now,
		newSessionID: uuid.NewString,
	}
}

// Start opens a roll call for a class owned by the caller.
func (s *AttendanceService) Start(ctx context.Context, claims *models.JWTClaims, req dto.AttendanceClassRequest) (*dto.AttendanceSessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}
	class, err := s.access.Authorize(ctx, req.ClassID, claims, AccessOwner)
	if err != nil {
		return nil, err
	}
	req.ClassID = class.ID.Hex()

	session := &models.AttendanceSession{
		ClassID:   req.ClassID,
		SessionID: s.newSessionID(),
		TeacherID: claims.UserID,
		StartedAt: s.now().UTC(),
		Marks:     map[string]models.AttendanceStatus{},
	}
	if err := s.sessions.Create(ctx, session, s.sessionTTL); err != nil {
		if errors.Is(err, models.ErrSessionExists) {
			return nil, appErrors.Clone(appErrors.ErrSessionActive, "Attendance session already active")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start session")
	}

	s.metrics.SessionStarted()
	s.audit.Record(ctx, AuditEntry{
		UserID:     claims.UserID,
		Action:     models.AuditActionAttendanceStart,
		Resource:   "class",
		ResourceID: req.ClassID,
		Payload:    map[string]string{"sessionId": session.SessionID},
	})
	s.logger.Info("attendance session started", zap.String("class_id", req.ClassID), zap.String("session_id", session.SessionID))

	return sessionView(session, class), nil
}

// Mark records a student's status in the active session. Re-marking overwrites.
func (s *AttendanceService) Mark(ctx context.Context, claims *models.JWTClaims, req dto.MarkAttendanceRequest) (*dto.AttendanceSessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}
	class, err := s.access.Authorize(ctx, req.ClassID, claims, AccessOwner)
	if err != nil {
		return nil, err
	}
	req.ClassID = class.ID.Hex()
	if !class.HasStudent(req.StudentID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Student not enrolled in class")
	}

	status := models.AttendanceStatus(req.Status)
	if err := s.sessions.Mark(ctx, req.ClassID, req.StudentID, status); err != nil {
		return nil, s.sessionError(err, "failed to mark attendance")
	}
	s.metrics.AttendanceMarked(status)

	session, err := s.sessions.Get(ctx, req.ClassID)
	if err != nil {
		return nil, s.sessionError(err, "failed to load session")
	}
	return sessionView(session, class), nil
}

// Session returns the live state of the class's roll call.
func (s *AttendanceService) Session(ctx context.Context, claims *models.JWTClaims, classID string) (*dto.AttendanceSessionResponse, error) {
	class, err := s.access.Authorize(ctx, classID, claims, AccessOwner)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.Get(ctx, class.ID.Hex())
	if err != nil {
		return nil, s.sessionError(err, "failed to load session")
	}
	return sessionView(session, class), nil
}

// Done closes the active session and stores one record per enrolled student.
// Students without a mark are recorded absent.
func (s *AttendanceService) Done(ctx context.Context, claims *models.JWTClaims, req dto.AttendanceClassRequest) (*dto.AttendanceSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}
	class, err := s.access.Authorize(ctx, req.ClassID, claims, AccessOwner)
	if err != nil {
		return nil, err
	}
	req.ClassID = class.ID.Hex()

	session, err := s.sessions.Take(ctx, req.ClassID)
	if err != nil {
		return nil, s.sessionError(err, "failed to close session")
	}

	markedAt := s.now().UTC()
	records := make([]models.Attendance, 0, len(class.StudentIDs))
	summary := &dto.AttendanceSummary{ClassID: req.ClassID, SessionID: session.SessionID}
	for _, studentID := range class.StudentIDs {
		status, ok := session.Marks[studentID]
		if !ok || !status.Valid() {
			status = models.AttendanceAbsent
		}
		if status == models.AttendancePresent {
			summary.Present++
		} else {
			summary.Absent++
		}
		records = append(records, models.Attendance{
			ClassID:   req.ClassID,
			StudentID: studentID,
			SessionID: session.SessionID,
			Status:    status,
			MarkedAt:  markedAt,
		})
	}
	summary.Total = len(records)

	if err := s.records.InsertMany(ctx, records); err != nil {
		if restoreErr := s.sessions.Restore(ctx, session, s.sessionTTL); restoreErr != nil {
			s.logger.Error("failed to restore attendance session", zap.String("class_id", req.ClassID), zap.Error(restoreErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist attendance")
	}

	s.metrics.SessionFinished()
	s.audit.Record(ctx, AuditEntry{
		UserID:     claims.UserID,
		Action:     models.AuditActionAttendanceDone,
		Resource:   "class",
		ResourceID: req.ClassID,
		Payload:    summary,
	})
	s.logger.Info("attendance session finished",
		zap.String("class_id", req.ClassID),
		zap.String("session_id", session.SessionID),
		zap.Int("present", summary.Present),
		zap.Int("absent", summary.Absent),
	)

	return summary, nil
}

// MyAttendance reports the caller's most recent status in an enrolled class.
func (s *AttendanceService) MyAttendance(ctx context.Context, claims *models.JWTClaims, classID string) (*dto.MyAttendanceResponse, error) {
	class, err := s.access.Authorize(ctx, classID, claims, AccessMember)
	if err != nil {
		return nil, err
	}
	classID = class.ID.Hex()

	res := &dto.MyAttendanceResponse{ClassID: classID}
	record, err := s.records.FindLatest(ctx, classID, claims.UserID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return res, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch attendance")
	}
	status := record.Status
	res.Status = &status
	return res, nil
}

// Export renders every stored record of a class in the requested format.
func (s *AttendanceService) Export(ctx context.Context, claims *models.JWTClaims, classID, rawFormat string) (*dto.AttendanceExport, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	class, err := s.access.Authorize(ctx, classID, claims, AccessOwner)
	if err != nil {
		return nil, err
	}
	classID = class.ID.Hex()

	records, err := s.records.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}

	ids := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, ok := seen[r.StudentID]; !ok {
			seen[r.StudentID] = struct{}{}
			ids = append(ids, r.StudentID)
		}
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch students")
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID.Hex()] = u
	}

	data := export.Dataset{Headers: exportHeaders, Rows: make([]map[string]string, 0, len(records))}
	for _, r := range records {
		u := byID[r.StudentID]
		data.Rows = append(data.Rows, map[string]string{
			"Session":    r.SessionID,
			"Marked At":  r.MarkedAt.UTC().Format(time.RFC3339),
			"Student ID": r.StudentID,
			"Name":       u.Name,
			"Email":      u.Email,
			"Status":     string(r.Status),
		})
	}

	title := fmt.Sprintf("Attendance - %s", class.ClassName)
	payload, err := s.exporters.Render(format, data, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &dto.AttendanceExport{
		Filename:    fmt.Sprintf("attendance-%s.%s", classID, format),
		ContentType: format.ContentType(),
		Payload:     payload,
	}, nil
}

func (s *AttendanceService) sessionError(err error, message string) error {
	if errors.Is(err, models.ErrNoActiveSession) {
		return appErrors.Clone(appErrors.ErrNotFound, "No active attendance session")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func sessionView(session *models.AttendanceSession, class *models.Class) *dto.AttendanceSessionResponse {
	view := &dto.AttendanceSessionResponse{
		ClassID:   session.ClassID,
		SessionID: session.SessionID,
		StartedAt: session.StartedAt,
		Marks:     make(map[string]models.AttendanceStatus, len(session.Marks)),
		Total:     len(class.StudentIDs),
	}
	for studentID, status := range session.Marks {
		view.Marks[studentID] = status
		switch status {
		case models.AttendancePresent:
			view.Present++
		case models.AttendanceAbsent:
			view.Absent++
		}
	}
	return view
}
