package dto

import (
	"time"

	"github.com/noah-isme/classroom-attendance-api/internal/models"
)

// AttendanceClassRequest targets a class for session lifecycle calls.
type AttendanceClassRequest struct {
	ClassID string `json:"classId" validate:"required,mongodb"`
}

// MarkAttendanceRequest records a single mark in the active session.
type MarkAttendanceRequest struct {
	ClassID   string `json:"classId" validate:"required,mongodb"`
	StudentID string `json:"studentId" validate:"required,mongodb"`
	Status    string `json:"status" validate:"required,oneof=present absent"`
}

// AttendanceSessionResponse is the live view of a roll call.
type AttendanceSessionResponse struct {
	ClassID   string                             `json:"classId"`
	SessionID string                             `json:"sessionId"`
	StartedAt time.Time                          `json:"startedAt"`
	Marks     map[string]models.AttendanceStatus `json:"marks"`
	Present   int                                `json:"present"`
	Absent    int                                `json:"absent"`
	Total     int                                `json:"total"`
}

// AttendanceSummary reports the outcome of a finished session.
type AttendanceSummary struct {
	ClassID   string `json:"classId"`
	SessionID string `json:"sessionId"`
	Present   int    `json:"present"`
	Absent    int    `json:"absent"`
	Total     int    `json:"total"`
}

// MyAttendanceResponse reports the caller's latest mark in a class. Status is null when none exists.
type MyAttendanceResponse struct {
	ClassID string                   `json:"classId"`
	Status  *models.AttendanceStatus `json:"status"`
}

// AttendanceExport is a rendered attendance report.
type AttendanceExport struct {
	Filename    string
	ContentType string
	Payload     []byte
}
