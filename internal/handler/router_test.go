package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-api/internal/models"
	"github.com/noah-isme/uni-api/internal/service"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
)

type stubTokens map[string]*models.JWTClaims

func (s stubTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type stubAuth struct{}

func (stubAuth) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if req.Password != "secret" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "student"}, nil
}

func (stubAuth) Me(ctx context.Context, userID string) (*models.User, error) {
	return &models.User{ID: userID}, nil
}

func (stubAuth) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	return nil
}

type stubRegistrations struct {
	student, target string
	err             error
}

func (s *stubRegistrations) ToggleCourse(ctx context.Context, studentID, courseID string) (*models.RegistrationResult, error) {
	s.student, s.target = studentID, courseID
	return &models.RegistrationResult{Action: models.ActionRegistered, CourseID: courseID}, s.err
}

func (s *stubRegistrations) ToggleLecture(ctx context.Context, studentID, lectureID string) (*models.RegistrationResult, error) {
	s.student, s.target = studentID, lectureID
	if s.err != nil {
		return nil, s.err
	}
	capacity := 9
	return &models.RegistrationResult{Action: models.ActionRegistered, LectureID: lectureID, Capacity: &capacity}, nil
}

type stubCourses struct {
	lastFilter models.CourseFilter
}

func (s *stubCourses) List(ctx context.Context, actor *models.JWTClaims, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	s.lastFilter = filter
	return []models.Course{{ID: "course-db"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (s *stubCourses) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
}

func (s *stubCourses) Create(ctx context.Context, req models.CreateCourseRequest) (*models.Course, error) {
	return &models.Course{ID: "new"}, nil
}

func (s *stubCourses) SetPrerequisites(ctx context.Context, courseID string, req models.SetPrerequisitesRequest) (*models.CourseDetail, error) {
	return &models.CourseDetail{}, nil
}

type stubExports struct{}

func (stubExports) GradeSheet(ctx context.Context, actor *models.JWTClaims, lectureID, format string) (*service.ExportFile, error) {
	return &service.ExportFile{Filename: "grades-" + lectureID + "." + format, ContentType: "text/csv", Data: []byte("Student\n")}, nil
}

type stubSyllabi struct{}

func (stubSyllabi) Generate(ctx context.Context, actor *models.JWTClaims, lectureID string, req models.GenerateSyllabusRequest) (*models.SyllabusDocument, error) {
	return &models.SyllabusDocument{LectureID: lectureID}, nil
}

func (stubSyllabi) Link(ctx context.Context, lectureID string) (*models.SyllabusDocument, error) {
	return &models.SyllabusDocument{LectureID: lectureID, Token: "t"}, nil
}

func (stubSyllabi) Download(ctx context.Context, token string) (io.ReadCloser, string, error) {
	if token == "expired" {
		return nil, "", appErrors.ErrDocumentExpired
	}
	return io.NopCloser(strings.NewReader("%PDF-1.3")), "syllabus-lec-db.pdf", nil
}

type routerFixture struct {
	engine        *gin.Engine
	registrations *stubRegistrations
	courses       *stubCourses
}

func newRouterFixture() *routerFixture {
	gin.SetMode(gin.TestMode)
	f := &routerFixture{registrations: &stubRegistrations{}, courses: &stubCourses{}}
	f.engine = gin.New()
	tokens := stubTokens{
		"student":   {UserID: "stu-1", Role: models.RoleStudent},
		"professor": {UserID: "prof-1", Role: models.RoleProfessor},
	}
	RegisterRoutes(f.engine.Group("/api/v1"), Handlers{
		Auth:         NewAuthHandler(stubAuth{}),
		Semesters:    NewSemesterHandler(nil),
		Courses:      NewCourseHandler(f.courses, nil),
		Registration: NewRegistrationHandler(f.registrations),
		Grades:       NewGradeHandler(nil, nil, stubExports{}),
		Payments:     NewPaymentHandler(nil),
		Attendance:   NewAttendanceHandler(nil),
		Documents:    NewDocumentHandler(nil, stubSyllabi{}),
	}, tokens, nil)
	return f
}

func (f *routerFixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestLoginIsPublic(t *testing.T) {
	f := newRouterFixture()

	w := f.do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"ana@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/api/v1/auth/login", "", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, w).Error.Code)

	w = f.do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"ana@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestToggleLectureUsesCaller(t *testing.T) {
	f := newRouterFixture()

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/v1/lectures/lec-db/registration", "", "").Code)

	w := f.do(http.MethodPost, "/api/v1/lectures/lec-db/registration", "student", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-1", f.registrations.student)
	assert.Equal(t, "lec-db", f.registrations.target)
	assert.JSONEq(t, `{"action":"registered","lecture_id":"lec-db","capacity":9}`, string(decode(t, w).Data))
}

func TestToggleLectureMapsDomainErrors(t *testing.T) {
	f := newRouterFixture()
	f.registrations.err = appErrors.ErrLectureFull

	w := f.do(http.MethodPost, "/api/v1/lectures/lec-db/registration", "student", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "LECTURE_FULL", decode(t, w).Error.Code)

	f.registrations.err = appErrors.ErrCapacityInsufficient
	w = f.do(http.MethodPost, "/api/v1/lectures/lec-db/registration", "student", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCatalogRoutes(t *testing.T) {
	f := newRouterFixture()

	w := f.do(http.MethodGet, "/api/v1/courses?page=2&page_size=5&q=data", "student", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.CourseFilter{Search: "data", Page: 2, PageSize: 5}, f.courses.lastFilter)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/v1/courses", "student", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/courses/nope", "student", "").Code)
}

func TestGradeSheetDownload(t *testing.T) {
	f := newRouterFixture()

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/v1/lectures/lec-db/grade-sheet", "student", "").Code)

	w := f.do(http.MethodGet, "/api/v1/lectures/lec-db/grade-sheet", "professor", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="grades-lec-db.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Student\n", w.Body.String())
}

func TestSyllabusDownload(t *testing.T) {
	f := newRouterFixture()

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/syllabus/download", "", "").Code)
	assert.Equal(t, http.StatusGone, f.do(http.MethodGet, "/api/v1/syllabus/download?token=expired", "", "").Code)

	w := f.do(http.MethodGet, "/api/v1/syllabus/download?token=ok", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.3", w.Body.String())

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/v1/lectures/lec-db/syllabus", "student", `{"purpose":"x"}`).Code)
	assert.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/v1/lectures/lec-db/syllabus", "professor", `{"purpose":"x"}`).Code)
}

func TestMeListsRoleCapabilities(t *testing.T) {
	f := newRouterFixture()

	w := f.do(http.MethodGet, "/api/v1/auth/me", "student", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body meResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &body))
	assert.Equal(t, "stu-1", body.User.ID)
	assert.Contains(t, body.Capabilities, models.CapRegisterSelf)
	assert.NotContains(t, body.Capabilities, models.CapGradesWrite)
}
