package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/classroom-attendance-api/internal/models"
)

// ClassRepository persists class rosters.
type ClassRepository struct {
	collection
}

// NewClassRepository constructs a class repository.
func NewClassRepository(db *mongo.Database, metrics queryObserver) *ClassRepository {
	return &ClassRepository{collection: newCollection(db, ClassesCollection, metrics)}
}

// EnsureIndexes indexes classes by owner and enrolled students.
func (r *ClassRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "teacherId", Value: 1}}, Options: options.Index().SetName("idx_teacher")},
		{Keys: bson.D{{Key: "studentIds", Value: 1}}, Options: options.Index().SetName("idx_students")},
	})
	if err != nil {
		return fmt.Errorf("create classes indexes: %w", err)
	}
	return nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	defer r.observe("insert", time.Now())
	now := time.Now().UTC()
	if class.ID.IsZero() {
		class.ID = primitive.NewObjectID()
	}
	if class.StudentIDs == nil {
		class.StudentIDs = []string{}
	}
	class.CreatedAt = now
	class.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, class); err != nil {
		return fmt.Errorf("insert class: %w", err)
	}
	return nil
}

// FindByID returns a class by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	defer r.observe("find_by_id", time.Now())
	var class models.Class
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&class); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		return nil, fmt.Errorf("find class by id: %w", err)
	}
	return &class, nil
}

// AddStudent enrols studentID with set semantics and returns the updated class.
func (r *ClassRepository) AddStudent(ctx context.Context, classID, studentID string) (*models.Class, error) {
	oid, err := objectID(classID)
	if err != nil {
		return nil, err
	}
	defer r.observe("add_student", time.Now())
	update := bson.M{
		"$addToSet": bson.M{"studentIds": studentID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var class models.Class
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&class); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		return nil, fmt.Errorf("add student to class: %w", err)
	}
	return &class, nil
}
