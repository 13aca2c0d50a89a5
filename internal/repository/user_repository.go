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

// UserRepository provides document store access for accounts.
type UserRepository struct {
	collection
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *mongo.Database, metrics queryObserver) *UserRepository {
	return &UserRepository{collection: newCollection(db, UsersCollection, metrics)}
}

// EnsureIndexes creates the unique email index.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_email"),
	})
	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}
	return nil
}

// Create inserts a user, assigning its identifier and timestamps.
// A duplicate email surfaces as a mongo duplicate key error.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	defer r.observe("insert", time.Now())
	now := time.Now().UTC()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	defer r.observe("find_by_email", time.Now())
	var user models.User
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	defer r.observe("find_by_id", time.Now())
	var user models.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindByIDs returns the users matching ids ordered by name. Malformed ids are skipped.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := objectID(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []models.User{}, nil
	}
	return r.find(ctx, "find_by_ids", bson.M{"_id": bson.M{"$in": oids}})
}

// ListByRole returns every user holding role ordered by name.
func (r *UserRepository) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	return r.find(ctx, "list_by_role", bson.M{"role": role})
}

func (r *UserRepository) find(ctx context.Context, label string, filter bson.M) ([]models.User, error) {
	defer r.observe(label, time.Now())
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}
