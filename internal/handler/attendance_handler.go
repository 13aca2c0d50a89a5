package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-attendance-api/internal/dto"
	"github.com/noah-isme/classroom-attendance-api/internal/service"
	"github.com/noah-isme/classroom-attendance-api/pkg/response"
)

// AttendanceHandler exposes roll-call endpoints.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Start godoc
// @Summary Start attendance session
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AttendanceClassRequest true "Class"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/start [post]
func (h *AttendanceHandler) Start(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		return
	}
	var req dto.AttendanceClassRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.Start(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Mark godoc
// @Summary Mark attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.MarkAttendanceRequest true "Mark"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/mark [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		return
	}
	var req dto.MarkAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.Mark(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Session godoc
// @Summary Live attendance session
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/{classId}/session [get]
func (h *AttendanceHandler) Session(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		return
	}

	res, err := h.service.Session(c.Request.Context(), claims, c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Done godoc
// @Summary Finish attendance session
// @Description Persist one record per enrolled student; unmarked students are absent
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AttendanceClassRequest true "Class"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/done [post]
func (h *AttendanceHandler) Done(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		return
	}
	var req dto.AttendanceClassRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.Done(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// MyAttendance godoc
// @Summary Caller's attendance in a class
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /class/{id}/my-attendance [get]
func (h *AttendanceHandler) MyAttendance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		return
	}

	res, err := h.service.MyAttendance(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Export godoc
// @Summary Export attendance
// @Tags Attendance
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /class/{id}/attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		return
	}

	res, err := h.service.Export(c.Request.Context(), claims, c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, res.Filename, res.ContentType, res.Payload)
}
