package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-api/internal/models"
	"github.com/noah-isme/uni-api/pkg/response"
)

type semesterService interface {
	Current(ctx context.Context, now time.Time) (*models.Semester, error)
	Get(ctx context.Context, id string) (*models.Semester, error)
	List(ctx context.Context) ([]models.Semester, error)
	Create(ctx context.Context, req models.CreateSemesterRequest) (*models.Semester, error)
}

// SemesterHandler exposes semester endpoints.
type SemesterHandler struct {
	semesters semesterService
	now       func() time.Time
}

// NewSemesterHandler constructs handler.
func NewSemesterHandler(semesters semesterService) *SemesterHandler {
	return &SemesterHandler{semesters: semesters, now: time.Now}
}

// Current godoc
// @Summary Semester in progress
// @Tags Semesters
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/current [get]
func (h *SemesterHandler) Current(c *gin.Context) {
	semester, err := h.semesters.Current(c.Request.Context(), h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semester, nil)
}

// List godoc
// @Summary List semesters
// @Tags Semesters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /semesters [get]
func (h *SemesterHandler) List(c *gin.Context) {
	semesters, err := h.semesters.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semesters, nil)
}

// Get godoc
// @Summary Semester detail
// @Tags Semesters
// @Produce json
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /semesters/{id} [get]
func (h *SemesterHandler) Get(c *gin.Context) {
	semester, err := h.semesters.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semester, nil)
}

// Create godoc
// @Summary Create semester
// @Tags Semesters
// @Accept json
// @Produce json
// @Param payload body models.CreateSemesterRequest true "Semester payload"
// @Success 201 {object} response.Envelope
// @Router /semesters [post]
func (h *SemesterHandler) Create(c *gin.Context) {
	var req models.CreateSemesterRequest
	if !bindJSON(c, &req, "invalid semester payload") {
		return
	}
	semester, err := h.semesters.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, semester)
}

type courseService interface {
	List(ctx context.Context, actor *models.JWTClaims, filter models.CourseFilter) ([]models.Course, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.CourseDetail, error)
	Create(ctx context.Context, req models.CreateCourseRequest) (*models.Course, error)
	SetPrerequisites(ctx context.Context, courseID string, req models.SetPrerequisitesRequest) (*models.CourseDetail, error)
}

type lectureService interface {
	Get(ctx context.Context, id string) (*models.LectureDetail, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Lecture, error)
	Mine(ctx context.Context, actor *models.JWTClaims) ([]models.LectureDetail, error)
	Create(ctx context.Context, req models.CreateLectureRequest) (*models.Lecture, error)
}

// CourseHandler exposes the course and lecture catalog.
type CourseHandler struct {
	courses  courseService
	lectures lectureService
}

// NewCourseHandler constructs handler.
func NewCourseHandler(courses courseService, lectures lectureService) *CourseHandler {
	return &CourseHandler{courses: courses, lectures: lectures}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param department_id query string false "Department"
// @Param q query string false "Name search"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	filter := models.CourseFilter{
		DepartmentID: c.Query("department_id"),
		ProfessorID:  c.Query("professor_id"),
		StudentID:    c.Query("student_id"),
		Search:       c.Query("q"),
		Page:         intQuery(c, "page", 1),
		PageSize:     intQuery(c, "page_size", 20),
	}
	courses, pagination, err := h.courses.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Course with prerequisites
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body models.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req models.CreateCourseRequest
	if !bindJSON(c, &req, "invalid course payload") {
		return
	}
	course, err := h.courses.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// SetPrerequisites godoc
// @Summary Replace course prerequisites
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body models.SetPrerequisitesRequest true "Prerequisite IDs"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/prerequisites [put]
func (h *CourseHandler) SetPrerequisites(c *gin.Context) {
	var req models.SetPrerequisitesRequest
	if !bindJSON(c, &req, "invalid prerequisites payload") {
		return
	}
	course, err := h.courses.SetPrerequisites(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Lectures godoc
// @Summary Lectures of a course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/lectures [get]
func (h *CourseHandler) Lectures(c *gin.Context) {
	lectures, err := h.lectures.ListByCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lectures, nil)
}

// Lecture godoc
// @Summary Lecture detail
// @Tags Lectures
// @Produce json
// @Param id path string true "Lecture ID"
// @Success 200 {object} response.Envelope
// @Router /lectures/{id} [get]
func (h *CourseHandler) Lecture(c *gin.Context) {
	lecture, err := h.lectures.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecture, nil)
}

// MyLectures godoc
// @Summary Current timetable of the caller
// @Tags Lectures
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /lectures/mine [get]
func (h *CourseHandler) MyLectures(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	lectures, err := h.lectures.Mine(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lectures, nil)
}

// CreateLecture godoc
// @Summary Create lecture
// @Tags Lectures
// @Accept json
// @Produce json
// @Param payload body models.CreateLectureRequest true "Lecture payload"
// @Success 201 {object} response.Envelope
// @Router /lectures [post]
func (h *CourseHandler) CreateLecture(c *gin.Context) {
	var req models.CreateLectureRequest
	if !bindJSON(c, &req, "invalid lecture payload") {
		return
	}
	lecture, err := h.lectures.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lecture)
}
