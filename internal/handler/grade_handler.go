package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-api/internal/models"
	"github.com/noah-isme/uni-api/internal/service"
	"github.com/noah-isme/uni-api/pkg/response"
)

type gradeService interface {
	Upsert(ctx context.Context, actor *models.JWTClaims, req models.UpsertGradeRequest) (*models.Grade, error)
	LectureGrades(ctx context.Context, actor *models.JWTClaims, studentID, lectureID string) ([]models.Grade, error)
	FinalGrade(ctx context.Context, actor *models.JWTClaims, studentID, lectureID string) (*models.FinalGrade, error)
	GPA(ctx context.Context, actor *models.JWTClaims, studentID string) (*models.GPAResponse, error)
	Records(ctx context.Context, actor *models.JWTClaims, studentID string) ([]models.GradeRecordDetail, error)
}

type assignmentService interface {
	List(ctx context.Context, lectureID string) ([]models.Assignment, error)
	Create(ctx context.Context, actor *models.JWTClaims, req models.UpsertAssignmentRequest) (*models.Assignment, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, req models.UpsertAssignmentRequest) (*models.Assignment, error)
}

type exportService interface {
	GradeSheet(ctx context.Context, actor *models.JWTClaims, lectureID, format string) (*service.ExportFile, error)
}

// GradeHandler exposes assignments, grades and grade sheets.
type GradeHandler struct {
	grades      gradeService
	assignments assignmentService
	exports     exportService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades gradeService, assignments assignmentService, exports exportService) *GradeHandler {
	return &GradeHandler{grades: grades, assignments: assignments, exports: exports}
}

// Upsert godoc
// @Summary Upsert grade entry
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body models.UpsertGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Upsert(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	var req models.UpsertGradeRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	grade, err := h.grades.Upsert(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// LectureGrades godoc
// @Summary Assignment grades of a student in a lecture
// @Tags Grades
// @Produce json
// @Param id path string true "Student ID"
// @Param lectureId path string true "Lecture ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/lectures/{lectureId}/grades [get]
func (h *GradeHandler) LectureGrades(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	grades, err := h.grades.LectureGrades(c.Request.Context(), claims, c.Param("id"), c.Param("lectureId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// FinalGrade godoc
// @Summary Final grade of a student in a lecture
// @Tags Grades
// @Produce json
// @Param id path string true "Student ID"
// @Param lectureId path string true "Lecture ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/lectures/{lectureId}/final [get]
func (h *GradeHandler) FinalGrade(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	final, err := h.grades.FinalGrade(c.Request.Context(), claims, c.Param("id"), c.Param("lectureId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, final, nil)
}

// GPA godoc
// @Summary Credit-weighted GPA
// @Tags Grades
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/gpa [get]
func (h *GradeHandler) GPA(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	gpa, err := h.grades.GPA(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gpa, nil)
}

// Records godoc
// @Summary Grade records of a student
// @Tags Grades
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/records [get]
func (h *GradeHandler) Records(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	records, err := h.grades.Records(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Assignments godoc
// @Summary Assignments of a lecture
// @Tags Assignments
// @Produce json
// @Param id path string true "Lecture ID"
// @Success 200 {object} response.Envelope
// @Router /lectures/{id}/assignments [get]
func (h *GradeHandler) Assignments(c *gin.Context) {
	assignments, err := h.assignments.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// CreateAssignment godoc
// @Summary Create assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body models.UpsertAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /assignments [post]
func (h *GradeHandler) CreateAssignment(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	var req models.UpsertAssignmentRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	assignment, err := h.assignments.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// UpdateAssignment godoc
// @Summary Update assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body models.UpsertAssignmentRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [put]
func (h *GradeHandler) UpdateAssignment(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	var req models.UpsertAssignmentRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	assignment, err := h.assignments.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// GradeSheet godoc
// @Summary Download the grade sheet of a lecture
// @Tags Grades
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Lecture ID"
// @Param format query string false "csv or xlsx"
// @Success 200 {file} file
// @Router /lectures/{id}/grade-sheet [get]
func (h *GradeHandler) GradeSheet(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	file, err := h.exports.GradeSheet(c.Request.Context(), claims, c.Param("id"), c.DefaultQuery("format", service.FormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
