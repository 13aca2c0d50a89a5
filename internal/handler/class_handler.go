package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-attendance-api/internal/dto"
	"github.com/noah-isme/classroom-attendance-api/internal/service"
	"github.com/noah-isme/classroom-attendance-api/pkg/response"
)

// ClassHandler exposes class and roster endpoints.
type ClassHandler struct {
	service *service.ClassService
}

// NewClassHandler constructs a class handler.
func NewClassHandler(svc *service.ClassService) *ClassHandler {
	return &ClassHandler{service: svc}
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /class [post]
func (h *ClassHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		return
	}
	var req dto.CreateClassRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// AddStudent godoc
// @Summary Enrol student
// @Tags Classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param payload body dto.AddStudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /class/{id}/add-student [post]
func (h *ClassHandler) AddStudent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		return
	}
	var req dto.AddStudentRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.AddStudent(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Get godoc
// @Summary Get class
// @Description Class with roster, visible to its teacher and enrolled students
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /class/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		return
	}

	res, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// ListStudents godoc
// @Summary List students
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students [get]
func (h *ClassHandler) ListStudents(c *gin.Context) {
	res, err := h.service.ListStudents(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}
