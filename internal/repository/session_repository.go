package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/classroom-attendance-api/internal/models"
)

const (
	sessionKeyPrefix = "attendance:session:"
	sessionMetaField = "meta"
	sessionMarkField = "mark:"
)

var (
	createSessionScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
redis.call('HSET', KEYS[1], 'meta', ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1`)

	markSessionScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1`)

	takeSessionScript = redis.NewScript(`
local data = redis.call('HGETALL', KEYS[1])
if #data == 0 then return false end
redis.call('DEL', KEYS[1])
return data`)
)

type sessionMeta struct {
	SessionID string    `json:"sessionId"`
	TeacherID string    `json:"teacherId"`
	StartedAt time.Time `json:"startedAt"`
}

// SessionRepository keeps live attendance sessions in a Redis hash per class.
type SessionRepository struct {
	client *redis.Client
}

// NewSessionRepository constructs a session repository.
func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

func sessionKey(classID string) string {
	return sessionKeyPrefix + classID
}

// Create opens a session for the class unless one is already active.
func (r *SessionRepository) Create(ctx context.Context, session *models.AttendanceSession, ttl time.Duration) error {
	meta, err := json.Marshal(sessionMeta{SessionID: session.SessionID, TeacherID: session.TeacherID, StartedAt: session.StartedAt})
	if err != nil {
		return fmt.Errorf("marshal session meta: %w", err)
	}
	created, err := createSessionScript.Run(ctx, r.client, []string{sessionKey(session.ClassID)}, meta, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis create session %s: %w", session.ClassID, err)
	}
	if created == 0 {
		return models.ErrSessionExists
	}
	return nil
}

// Get returns the active session for the class.
func (r *SessionRepository) Get(ctx context.Context, classID string) (*models.AttendanceSession, error) {
	fields, err := r.client.HGetAll(ctx, sessionKey(classID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get session %s: %w", classID, err)
	}
	if len(fields) == 0 {
		return nil, models.ErrNoActiveSession
	}
	return decodeSession(classID, fields)
}

// Mark records status for studentID, overwriting any previous mark.
func (r *SessionRepository) Mark(ctx context.Context, classID, studentID string, status models.AttendanceStatus) error {
	ok, err := markSessionScript.Run(ctx, r.client, []string{sessionKey(classID)}, sessionMarkField+studentID, string(status)).Int()
	if err != nil {
		return fmt.Errorf("redis mark session %s: %w", classID, err)
	}
	if ok == 0 {
		return models.ErrNoActiveSession
	}
	return nil
}

// Take atomically reads and removes the active session so it can be finalised exactly once.
func (r *SessionRepository) Take(ctx context.Context, classID string) (*models.AttendanceSession, error) {
	raw, err := takeSessionScript.Run(ctx, r.client, []string{sessionKey(classID)}).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrNoActiveSession
		}
		return nil, fmt.Errorf("redis take session %s: %w", classID, err)
	}
	fields := make(map[string]string, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		fields[raw[i]] = raw[i+1]
	}
	return decodeSession(classID, fields)
}

// Restore writes a previously taken session back, used when finalisation fails.
func (r *SessionRepository) Restore(ctx context.Context, session *models.AttendanceSession, ttl time.Duration) error {
	meta, err := json.Marshal(sessionMeta{SessionID: session.SessionID, TeacherID: session.TeacherID, StartedAt: session.StartedAt})
	if err != nil {
		return fmt.Errorf("marshal session meta: %w", err)
	}
	values := []interface{}{sessionMetaField, meta}
	for studentID, status := range session.Marks {
		values = append(values, sessionMarkField+studentID, string(status))
	}
	key := sessionKey(session.ClassID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values...)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis restore session %s: %w", session.ClassID, err)
	}
	return nil
}

func decodeSession(classID string, fields map[string]string) (*models.AttendanceSession, error) {
	var meta sessionMeta
	if err := json.Unmarshal([]byte(fields[sessionMetaField]), &meta); err != nil {
		return nil, fmt.Errorf("decode session meta %s: %w", classID, err)
	}
	session := &models.AttendanceSession{
		ClassID:   classID,
		SessionID: meta.SessionID,
		TeacherID: meta.TeacherID,
		StartedAt: meta.StartedAt,
		Marks:     make(map[string]models.AttendanceStatus),
	}
	for field, value := range fields {
		if studentID, ok := strings.CutPrefix(field, sessionMarkField); ok {
			session.Marks[studentID] = models.AttendanceStatus(value)
		}
	}
	return session, nil
}
