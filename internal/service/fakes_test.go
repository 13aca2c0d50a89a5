package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/noah-isme/classroom-attendance-api/internal/models"
	appErrors "github.com/noah-isme/classroom-attendance-api/pkg/errors"
)

type fakeUserRepo struct {
	mu        sync.Mutex
	byID      map[string]*models.User
	createErr error
	findErr   error
	listCalls int
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{byID: map[string]*models.User{}}
	for _, u := range users {
		if u.ID.IsZero() {
			u.ID = primitive.NewObjectID()
		}
		r.byID[u.ID.Hex()] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, u := range r.byID {
		if u.Email == user.Email {
			return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "duplicate key"}}}
		}
	}
	user.ID = primitive.NewObjectID()
	r.byID[user.ID.Hex()] = user
	return nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	if u, ok := r.byID[id]; ok {
		return u, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakeUserRepo) FindByIDs(_ context.Context, ids []string) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := []models.User{}
	for _, id := range ids {
		if u, ok := r.byID[id]; ok {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (r *fakeUserRepo) ListByRole(_ context.Context, role models.UserRole) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	users := []models.User{}
	for _, u := range r.byID {
		if u.Role == role {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

type fakeClassRepo struct {
	mu      sync.Mutex
	classes map[string]*models.Class
}

func newFakeClassRepo(classes ...*models.Class) *fakeClassRepo {
	r := &fakeClassRepo{classes: map[string]*models.Class{}}
	for _, c := range classes {
		if c.ID.IsZero() {
			c.ID = primitive.NewObjectID()
		}
		if c.StudentIDs == nil {
			c.StudentIDs = []string{}
		}
		r.classes[c.ID.Hex()] = c
	}
	return r
}

func (r *fakeClassRepo) Create(_ context.Context, class *models.Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	class.ID = primitive.NewObjectID()
	if class.StudentIDs == nil {
		class.StudentIDs = []string{}
	}
	r.classes[class.ID.Hex()] = class
	return nil
}

// classKey decodes ids the way the Mongo repository does, so hex case does not matter.
func classKey(id string) string {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return id
	}
	return oid.Hex()
}

func (r *fakeClassRepo) FindByID(_ context.Context, id string) (*models.Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.classes[classKey(id)]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *c
	cp.StudentIDs = append([]string{}, c.StudentIDs...)
	return &cp, nil
}

func (r *fakeClassRepo) AddStudent(ctx context.Context, classID, studentID string) (*models.Class, error) {
	r.mu.Lock()
	c, ok := r.classes[classKey(classID)]
	if !ok {
		r.mu.Unlock()
		return nil, mongo.ErrNoDocuments
	}
	if !c.HasStudent(studentID) {
		c.StudentIDs = append(c.StudentIDs, studentID)
	}
	r.mu.Unlock()
	return r.FindByID(ctx, classID)
}

type fakeAttendanceRepo struct {
	mu        sync.Mutex
	records   []models.Attendance
	insertErr error
}

func (r *fakeAttendanceRepo) InsertMany(_ context.Context, records []models.Attendance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	for i := range records {
		records[i].ID = primitive.NewObjectID()
	}
	r.records = append(r.records, records...)
	return nil
}

func (r *fakeAttendanceRepo) FindLatest(_ context.Context, classID, studentID string) (*models.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if rec.ClassID == classID && rec.StudentID == studentID {
			return &rec, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakeAttendanceRepo) ListByClass(_ context.Context, classID string) ([]models.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Attendance{}
	for _, rec := range r.records {
		if rec.ClassID == classID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.AttendanceSession
	restored int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*models.AttendanceSession{}}
}

func (s *fakeSessionStore) Create(_ context.Context, session *models.AttendanceSession, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ClassID]; ok {
		return models.ErrSessionExists
	}
	cp := *session
	cp.Marks = map[string]models.AttendanceStatus{}
	s.sessions[session.ClassID] = &cp
	return nil
}

func (s *fakeSessionStore) Get(_ context.Context, classID string) (*models.AttendanceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[classID]
	if !ok {
		return nil, models.ErrNoActiveSession
	}
	cp := *session
	cp.Marks = make(map[string]models.AttendanceStatus, len(session.Marks))
	for k, v := range session.Marks {
		cp.Marks[k] = v
	}
	return &cp, nil
}

func (s *fakeSessionStore) Mark(_ context.Context, classID, studentID string, status models.AttendanceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[classID]
	if !ok {
		return models.ErrNoActiveSession
	}
	session.Marks[studentID] = status
	return nil
}

func (s *fakeSessionStore) Take(ctx context.Context, classID string) (*models.AttendanceSession, error) {
	session, err := s.Get(ctx, classID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	delete(s.sessions, classID)
	s.mu.Unlock()
	return session, nil
}

func (s *fakeSessionStore) Restore(_ context.Context, session *models.AttendanceSession, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restored++
	s.sessions[session.ClassID] = session
	return nil
}

type fakeCacheRepo struct {
	mu      sync.Mutex
	values  map[string][]byte
	deleted []string
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{values: map[string][]byte{}}
}

func (r *fakeCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *fakeCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = raw
	return nil
}

func (r *fakeCacheRepo) Delete(_ context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.values, k)
		r.deleted = append(r.deleted, k)
	}
	return nil
}

type fakeAuditRepo struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (r *fakeAuditRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}
