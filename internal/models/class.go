package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Class is a teacher-owned roster stored in the classes collection.
// TeacherID and StudentIDs hold hex ObjectIDs of users.
type Class struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	ClassName  string             `bson:"className" json:"className"`
	TeacherID  string             `bson:"teacherId" json:"teacherId"`
	StudentIDs []string           `bson:"studentIds" json:"studentIds"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsTeacher reports whether userID owns the class.
func (c *Class) IsTeacher(userID string) bool {
	return c != nil && userID != "" && c.TeacherID == userID
}

// HasStudent reports whether userID is enrolled.
func (c *Class) HasStudent(userID string) bool {
	if c == nil || userID == "" {
		return false
	}
	for _, id := range c.StudentIDs {
		if id == userID {
			return true
		}
	}
	return false
}
