package repository

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collection names in the document store.
const (
	UsersCollection       = "users"
	ClassesCollection     = "classes"
	AttendancesCollection = "attendances"
)

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

type collection struct {
	coll    *mongo.Collection
	metrics queryObserver
}

func newCollection(db *mongo.Database, name string, metrics queryObserver) collection {
	return collection{coll: db.Collection(name), metrics: metrics}
}

func (c collection) observe(label string, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveDBQuery(c.coll.Name()+"."+label, time.Since(start))
	}
}

// objectID parses a hex id. Malformed ids are reported as missing documents.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, mongo.ErrNoDocuments
	}
	return oid, nil
}
