package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AttendanceStatus is the mark recorded for a student in a session.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	return s == AttendancePresent || s == AttendanceAbsent
}

// Attendance is one persisted mark for one student in one class session.
type Attendance struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	ClassID   string             `bson:"classId" json:"classId"`
	StudentID string             `bson:"studentId" json:"studentId"`
	SessionID string             `bson:"sessionId" json:"sessionId"`
	Status    AttendanceStatus   `bson:"status" json:"status"`
	MarkedAt  time.Time          `bson:"markedAt" json:"markedAt"`
}

// AttendanceSession is the live, not yet persisted state of a roll call.
type AttendanceSession struct {
	ClassID   string                      `json:"classId"`
	SessionID string                      `json:"sessionId"`
	TeacherID string                      `json:"teacherId"`
	StartedAt time.Time                   `json:"startedAt"`
	Marks     map[string]AttendanceStatus `json:"marks"`
}

// Session store errors.
var (
	ErrNoActiveSession = errors.New("no active attendance session")
	ErrSessionExists   = errors.New("attendance session already active")
)
