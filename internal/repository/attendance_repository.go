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

// AttendanceRepository persists finished attendance marks.
type AttendanceRepository struct {
	collection
}

// NewAttendanceRepository constructs an attendance repository.
func NewAttendanceRepository(db *mongo.Database, metrics queryObserver) *AttendanceRepository {
	return &AttendanceRepository{collection: newCollection(db, AttendancesCollection, metrics)}
}

// duplicateKeyCode is the server error code for unique index violations.
const duplicateKeyCode = 11000

// EnsureIndexes creates the class/student lookup index and the one-mark-per-session constraint.
func (r *AttendanceRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "classId", Value: 1}, {Key: "studentId", Value: 1}, {Key: "markedAt", Value: -1}},
			Options: options.Index().SetName("idx_class_student_marked"),
		},
		{
			Keys:    bson.D{{Key: "classId", Value: 1}, {Key: "sessionId", Value: 1}, {Key: "studentId", Value: 1}},
			Options: options.Index().SetName("uniq_class_session_student").SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("create attendances index: %w", err)
	}
	return nil
}

// InsertMany stores a batch of marks. The insert is unordered, and marks already stored for
// the same session and student are skipped, so a partially written batch can be retried.
func (r *AttendanceRepository) InsertMany(ctx context.Context, records []models.Attendance) error {
	if len(records) == 0 {
		return nil
	}
	defer r.observe("insert_many", time.Now())
	docs := make([]interface{}, len(records))
	for i := range records {
		if records[i].ID.IsZero() {
			records[i].ID = primitive.NewObjectID()
		}
		docs[i] = records[i]
	}
	_, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !onlyDuplicateKeys(err) {
		return fmt.Errorf("insert attendances: %w", err)
	}
	return nil
}

func onlyDuplicateKeys(err error) bool {
	var bulk mongo.BulkWriteException
	if !errors.As(err, &bulk) || bulk.WriteConcernError != nil || len(bulk.WriteErrors) == 0 {
		return false
	}
	for _, we := range bulk.WriteErrors {
		if we.Code != duplicateKeyCode {
			return false
		}
	}
	return true
}

// FindLatest returns the newest mark of studentID in classID.
func (r *AttendanceRepository) FindLatest(ctx context.Context, classID, studentID string) (*models.Attendance, error) {
	defer r.observe("find_latest", time.Now())
	opts := options.FindOne().SetSort(bson.D{{Key: "markedAt", Value: -1}})
	var record models.Attendance
	err := r.coll.FindOne(ctx, bson.M{"classId": classID, "studentId": studentID}, opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		return nil, fmt.Errorf("find latest attendance: %w", err)
	}
	return &record, nil
}

// ListByClass returns every mark recorded for classID, oldest first.
func (r *AttendanceRepository) ListByClass(ctx context.Context, classID string) ([]models.Attendance, error) {
	defer r.observe("list_by_class", time.Now())
	opts := options.Find().SetSort(bson.D{{Key: "markedAt", Value: 1}, {Key: "studentId", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"classId": classID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list attendances: %w", err)
	}
	records := []models.Attendance{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode attendances: %w", err)
	}
	return records, nil
}
