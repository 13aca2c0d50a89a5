package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-attendance-api/internal/models"
	"github.com/noah-isme/classroom-attendance-api/pkg/jobs"
)

const auditTaskName = "audit.write"

type taskQueue interface {
	Enqueue(task jobs.Task) error
}

// AuditRepository persists audit records.
type AuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type requestMetaKey struct{}

type requestMeta struct {
	ip        string
	userAgent string
}

// WithRequestMeta stores the caller's address and user agent for audit attribution.
func WithRequestMeta(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, requestMeta{ip: ip, userAgent: userAgent})
}

// AuditEntry describes one auditable action.
type AuditEntry struct {
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	Payload    interface{}
	IPAddress  string
	UserAgent  string
}

// AuditService records audit entries. Without a repository entries go to the logger only.
type AuditService struct {
	repo   AuditRepository
	queue  taskQueue
	logger *zap.Logger
}

// NewAuditService constructs an audit service. repo may be nil.
func NewAuditService(repo AuditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// UseQueue moves repository writes off the request path. Entries that cannot be
// enqueued are written inline.
func (s *AuditService) UseQueue(queue taskQueue) {
	if s == nil {
		return
	}
	s.queue = queue
}

// HandleTask is the jobs.Handler that persists queued entries.
func (s *AuditService) HandleTask(ctx context.Context, task jobs.Task) error {
	log, ok := task.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", task.Payload)
	}
	if s == nil || s.repo == nil {
		return nil
	}
	return s.repo.CreateAuditLog(ctx, log)
}

// Record writes entry. Failures are logged and never surface to the caller.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	if s == nil {
		return
	}
	fields := []zap.Field{
		zap.String("action", entry.Action),
		zap.String("resource", entry.Resource),
		zap.String("resource_id", entry.ResourceID),
		zap.String("user_id", entry.UserID),
	}
	if meta, ok := ctx.Value(requestMetaKey{}).(requestMeta); ok {
		if entry.IPAddress == "" {
			entry.IPAddress = meta.ip
		}
		if entry.UserAgent == "" {
			entry.UserAgent = meta.userAgent
		}
	}
	if s.repo == nil {
		s.logger.Info("audit", append(fields, zap.String("ip", entry.IPAddress))...)
		return
	}

	log := &models.AuditLog{
		Action:    entry.Action,
		Resource:  entry.Resource,
		IPAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
	}
	if entry.UserID != "" {
		log.UserID = &entry.UserID
	}
	if entry.ResourceID != "" {
		log.ResourceID = &entry.ResourceID
	}
	if entry.Payload != nil {
		payload, err := json.Marshal(entry.Payload)
		if err != nil {
			s.logger.Warn("failed to encode audit payload", append(fields, zap.Error(err))...)
		} else {
			log.Payload = payload
		}
	}

	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Task{Name: auditTaskName, Payload: log})
		if err == nil {
			return
		}
		s.logger.Warn("audit queue unavailable, writing inline", append(fields, zap.Error(err))...)
	}

	if err := s.repo.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", append(fields, zap.Error(err))...)
	}
}
