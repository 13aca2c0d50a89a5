package router

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/noah-isme/classroom-attendance-api/internal/models"
)

// memStore is an in-memory stand-in for the users, classes and attendances collections.
type memStore struct {
	mu          sync.Mutex
	users       map[string]models.User
	classes     map[string]models.Class
	attendances []models.Attendance
}

func newMemStore() *memStore {
	return &memStore{users: map[string]models.User{}, classes: map[string]models.Class{}}
}

type memUsers struct{ *memStore }

func (s memUsers) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
		}
	}
	user.ID = primitive.NewObjectID()
	s.users[user.ID.Hex()] = *user
	return nil
}

func (s memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (s memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &u, nil
}

func (s memUsers) FindByIDs(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s memUsers) ListByRole(_ context.Context, role models.UserRole) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.User{}
	for _, u := range s.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memClasses struct{ *memStore }

func (s memClasses) Create(_ context.Context, class *models.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	class.ID = primitive.NewObjectID()
	class.StudentIDs = []string{}
	s.classes[class.ID.Hex()] = *class
	return nil
}

func (s memClasses) FindByID(_ context.Context, id string) (*models.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.classes[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	c.StudentIDs = append([]string{}, c.StudentIDs...)
	return &c, nil
}

func (s memClasses) AddStudent(ctx context.Context, classID, studentID string) (*models.Class, error) {
	s.mu.Lock()
	c, ok := s.classes[classID]
	if ok && !c.HasStudent(studentID) {
		c.StudentIDs = append(c.StudentIDs, studentID)
		s.classes[classID] = c
	}
	s.mu.Unlock()
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return s.FindByID(ctx, classID)
}

type memAttendances struct{ *memStore }

func (s memAttendances) InsertMany(_ context.Context, records []models.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendances = append(s.attendances, records...)
	return nil
}

func (s memAttendances) FindLatest(_ context.Context, classID, studentID string) (*models.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.attendances) - 1; i >= 0; i-- {
		if a := s.attendances[i]; a.ClassID == classID && a.StudentID == studentID {
			return &a, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (s memAttendances) ListByClass(_ context.Context, classID string) ([]models.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Attendance{}
	for _, a := range s.attendances {
		if a.ClassID == classID {
			out = append(out, a)
		}
	}
	return out, nil
}
