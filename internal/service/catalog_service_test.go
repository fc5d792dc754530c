package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-api/internal/models"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
)

type mockCatalog struct {
	courses       map[string]models.Course
	prerequisites map[string][]string
	lastFilter    models.CourseFilter
}

func newMockCatalog(courses ...models.Course) *mockCatalog {
	m := &mockCatalog{courses: make(map[string]models.Course), prerequisites: make(map[string][]string)}
	for _, c := range courses {
		m.courses[c.ID] = c
	}
	return m
}

func (m *mockCatalog) FindByID(ctx context.Context, id string) (*models.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (m *mockCatalog) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	m.lastFilter = filter
	var out []models.Course
	for _, c := range m.courses {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *mockCatalog) ListPrerequisites(ctx context.Context, courseID string) ([]models.Course, error) {
	var out []models.Course
	for _, id := range m.prerequisites[courseID] {
		out = append(out, m.courses[id])
	}
	return out, nil
}

func (m *mockCatalog) Create(ctx context.Context, course *models.Course, prerequisiteIDs []string) error {
	course.ID = "course-" + course.Code
	m.courses[course.ID] = *course
	m.prerequisites[course.ID] = prerequisiteIDs
	return nil
}

func (m *mockCatalog) ReplacePrerequisites(ctx context.Context, courseID string, prerequisiteIDs []string) error {
	m.prerequisites[courseID] = prerequisiteIDs
	return nil
}

func (m *mockCatalog) CountExisting(ctx context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		if _, ok := m.courses[id]; ok {
			n++
		}
	}
	return n, nil
}

func TestCourseCreateDeduplicatesPrerequisites(t *testing.T) {
	catalog := newMockCatalog(calculus, physics)
	svc := NewCourseService(catalog, &mockUsers{}, nil, nil)

	course, err := svc.Create(context.Background(), models.CreateCourseRequest{
		Code:            "PHY201",
		Name:            "Mechanics",
		Credits:         6,
		PrerequisiteIDs: []string{"calc", "phys", "calc"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"calc", "phys"}, catalog.prerequisites[course.ID])
}

func TestCourseCreateUnknownPrerequisite(t *testing.T) {
	svc := NewCourseService(newMockCatalog(calculus), &mockUsers{}, nil, nil)

	_, err := svc.Create(context.Background(), models.CreateCourseRequest{
		Code: "PHY201", Name: "Mechanics", Credits: 6, PrerequisiteIDs: []string{"calc", "ghost"},
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSetPrerequisitesRejectsSelf(t *testing.T) {
	catalog := newMockCatalog(calculus, physics)
	svc := NewCourseService(catalog, &mockUsers{}, nil, nil)

	_, err := svc.SetPrerequisites(context.Background(), "phys", models.SetPrerequisitesRequest{PrerequisiteIDs: []string{"calc", "phys"}})
	assert.True(t, errors.Is(err, appErrors.ErrSelfPrerequisite))
	assert.Empty(t, catalog.prerequisites["phys"])

	detail, err := svc.SetPrerequisites(context.Background(), "phys", models.SetPrerequisitesRequest{PrerequisiteIDs: []string{"calc"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Calculus I"}, models.CourseNames(detail.Prerequisites))
}

func TestCourseListScopesByRole(t *testing.T) {
	catalog := newMockCatalog(calculus)
	users := &mockUsers{users: map[string]models.User{
		"stu-1": {ID: "stu-1", Role: models.RoleStudent, DepartmentID: strPtr("dep-math")},
		"stu-9": {ID: "stu-9", Role: models.RoleStudent},
	}}
	svc := NewCourseService(catalog, users, nil, nil)

	_, page, err := svc.List(context.Background(), student, models.CourseFilter{DepartmentID: "dep-other", PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, "dep-math", catalog.lastFilter.DepartmentID)
	assert.Equal(t, 20, page.PageSize)

	_, _, err = svc.List(context.Background(), professor, models.CourseFilter{})
	require.NoError(t, err)
	assert.Equal(t, "prof-1", catalog.lastFilter.ProfessorID)
	assert.Empty(t, catalog.lastFilter.DepartmentID)

	_, _, err = svc.List(context.Background(), &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}, models.CourseFilter{DepartmentID: "dep-x"})
	require.NoError(t, err)
	assert.Equal(t, "dep-x", catalog.lastFilter.DepartmentID)

	courses, _, err := svc.List(context.Background(), &models.JWTClaims{UserID: "stu-9", Role: models.RoleStudent}, models.CourseFilter{})
	require.NoError(t, err)
	assert.Empty(t, courses)
}

type mockLectureStore struct {
	mockLectureReader
	sameDay     []models.Lecture
	auditoriums map[string]models.Auditorium
	created     []models.Lecture
}

func (m *mockLectureStore) FindDetailByID(ctx context.Context, id string) (*models.LectureDetail, error) {
	l, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.LectureDetail{Lecture: *l}, nil
}

func (m *mockLectureStore) ListByStudentInSemester(ctx context.Context, studentID, semesterID string) ([]models.LectureDetail, error) {
	return []models.LectureDetail{{Lecture: models.Lecture{ID: "enrolled"}}}, nil
}

func (m *mockLectureStore) ListByProfessorInSemester(ctx context.Context, professorID, semesterID string) ([]models.LectureDetail, error) {
	return []models.LectureDetail{{Lecture: models.Lecture{ID: "taught"}}}, nil
}

func (m *mockLectureStore) ListByCourse(ctx context.Context, courseID string) ([]models.Lecture, error) {
	return nil, nil
}

func (m *mockLectureStore) ListSameDay(ctx context.Context, semesterID string, day time.Weekday, auditoriumID, professorID string) ([]models.Lecture, error) {
	return m.sameDay, nil
}

func (m *mockLectureStore) Create(ctx context.Context, lecture *models.Lecture) error {
	lecture.ID = "lec-new"
	m.created = append(m.created, *lecture)
	return nil
}

func (m *mockLectureStore) FindAuditorium(ctx context.Context, id string) (*models.Auditorium, error) {
	a, ok := m.auditoriums[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func newLectureFixture() (*LectureService, *mockLectureStore) {
	store := &mockLectureStore{auditoriums: map[string]models.Auditorium{
		"aud-1": {ID: "aud-1", Name: "101", Capacity: 30},
	}}
	users := &mockUsers{users: map[string]models.User{
		"prof-1": {ID: "prof-1", Role: models.RoleProfessor},
		"stu-1":  {ID: "stu-1", Role: models.RoleStudent},
	}}
	svc := NewLectureService(store, newMockCatalog(calculus), fakeSemesters{semester: fall}, fakeSemesters{semester: fall}, users, nil, nil, fixedClock(fallStart))
	return svc, store
}

func lectureRequest() models.CreateLectureRequest {
	return models.CreateLectureRequest{
		CourseID:     "calc",
		SemesterID:   fall.ID,
		ProfessorID:  "prof-1",
		AuditoriumID: strPtr("aud-1"),
		Name:         "Calculus I A",
		Day:          time.Thursday,
		StartTime:    models.NewClockTime(12, 0),
		EndTime:      models.NewClockTime(13, 30),
		UniYear:      1,
		Capacity:     25,
	}
}

func TestLectureCreate(t *testing.T) {
	svc, store := newLectureFixture()

	lecture, err := svc.Create(context.Background(), lectureRequest())
	require.NoError(t, err)
	assert.Equal(t, "lec-new", lecture.ID)
	require.Len(t, store.created, 1)
	assert.Equal(t, "prof-1", *store.created[0].ProfessorID)
}

func TestLectureCreateConflicts(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(req *models.CreateLectureRequest, store *mockLectureStore)
		wantErr *appErrors.Error
	}{
		{"reversed times", func(req *models.CreateLectureRequest, _ *mockLectureStore) {
			req.StartTime, req.EndTime = req.EndTime, req.StartTime
		}, appErrors.ErrInvalidTimeRange},
		{"lecturer is a student", func(req *models.CreateLectureRequest, _ *mockLectureStore) {
			req.ProfessorID = "stu-1"
		}, appErrors.ErrNotProfessor},
		{"auditorium too small", func(req *models.CreateLectureRequest, _ *mockLectureStore) {
			req.Capacity = 31
		}, appErrors.ErrAuditoriumTooSmall},
		{"auditorium booked", func(_ *models.CreateLectureRequest, store *mockLectureStore) {
			store.sameDay = []models.Lecture{{ID: "x", AuditoriumID: strPtr("aud-1"), ProfessorID: strPtr("prof-9"), Day: time.Thursday,
				StartTime: models.NewClockTime(13, 0), EndTime: models.NewClockTime(14, 0)}}
		}, appErrors.ErrAuditoriumBooked},
		{"professor busy", func(_ *models.CreateLectureRequest, store *mockLectureStore) {
			store.sameDay = []models.Lecture{{ID: "x", AuditoriumID: strPtr("aud-2"), ProfessorID: strPtr("prof-1"), Day: time.Thursday,
				StartTime: models.NewClockTime(11, 0), EndTime: models.NewClockTime(12, 30)}}
		}, appErrors.ErrProfessorBusy},
		{"unknown course", func(req *models.CreateLectureRequest, _ *mockLectureStore) {
			req.CourseID = "ghost"
		}, appErrors.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store := newLectureFixture()
			req := lectureRequest()
			tc.mutate(&req, store)

			_, err := svc.Create(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			assert.Empty(t, store.created)
		})
	}
}

func TestLectureCreateBackToBackIsFree(t *testing.T) {
	svc, store := newLectureFixture()
	store.sameDay = []models.Lecture{{ID: "x", AuditoriumID: strPtr("aud-1"), ProfessorID: strPtr("prof-1"), Day: time.Thursday,
		StartTime: models.NewClockTime(10, 30), EndTime: models.NewClockTime(12, 0)}}

	_, err := svc.Create(context.Background(), lectureRequest())
	assert.NoError(t, err)
}

func TestLectureMineByRole(t *testing.T) {
	svc, _ := newLectureFixture()

	taught, err := svc.Mine(context.Background(), professor)
	require.NoError(t, err)
	assert.Equal(t, "taught", taught[0].ID)

	enrolled, err := svc.Mine(context.Background(), student)
	require.NoError(t, err)
	assert.Equal(t, "enrolled", enrolled[0].ID)

	none, err := svc.Mine(context.Background(), manager)
	require.NoError(t, err)
	assert.Empty(t, none)
}

type mockAssignmentRepo struct {
	byID    map[string]models.Assignment
	created []models.Assignment
}

func (m *mockAssignmentRepo) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (m *mockAssignmentRepo) ListByLecture(ctx context.Context, lectureID string) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range m.byID {
		if a.LectureID == lectureID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAssignmentRepo) SumMaxPoints(ctx context.Context, lectureID, excludeID string) (float64, error) {
	var sum float64
	for _, a := range m.byID {
		if a.LectureID == lectureID && a.ID != excludeID {
			sum += a.MaxPoints
		}
	}
	return sum, nil
}

func (m *mockAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	assignment.ID = "asg-new"
	m.created = append(m.created, *assignment)
	return nil
}

func (m *mockAssignmentRepo) Update(ctx context.Context, assignment *models.Assignment) error {
	m.byID[assignment.ID] = *assignment
	return nil
}

func newAssignmentFixture() (*AssignmentService, *mockAssignmentRepo) {
	repo := &mockAssignmentRepo{byID: map[string]models.Assignment{
		"midterm": {ID: "midterm", LectureID: "lec-db", Name: "Midterm", MaxPoints: 30},
		"final":   {ID: "final", LectureID: "lec-db", Name: "Final Exam", MaxPoints: 40},
	}}
	lectures := &mockLectureReader{lectures: map[string]models.Lecture{
		"lec-db": {ID: "lec-db", ProfessorID: strPtr("prof-1")},
	}}
	return NewAssignmentService(repo, lectures, nil, nil), repo
}

func TestAssignmentMaxPointsCap(t *testing.T) {
	svc, repo := newAssignmentFixture()

	_, err := svc.Create(context.Background(), professor, models.UpsertAssignmentRequest{LectureID: "lec-db", Name: "Project", MaxPoints: 30})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)

	_, err = svc.Create(context.Background(), professor, models.UpsertAssignmentRequest{LectureID: "lec-db", Name: "Project", MaxPoints: 30.5})
	assert.True(t, errors.Is(err, appErrors.ErrMaxPointsExceeded))
}

func TestAssignmentUpdateExcludesItself(t *testing.T) {
	svc, repo := newAssignmentFixture()

	updated, err := svc.Update(context.Background(), professor, "final", models.UpsertAssignmentRequest{LectureID: "lec-db", Name: "Final Exam", MaxPoints: 70})
	require.NoError(t, err)
	assert.Equal(t, 70.0, updated.MaxPoints)
	assert.Equal(t, 70.0, repo.byID["final"].MaxPoints)

	_, err = svc.Update(context.Background(), professor, "final", models.UpsertAssignmentRequest{LectureID: "lec-db", Name: "Final Exam", MaxPoints: 71})
	assert.True(t, errors.Is(err, appErrors.ErrMaxPointsExceeded))
}

func TestAssignmentForeignLecture(t *testing.T) {
	svc, _ := newAssignmentFixture()

	_, err := svc.Create(context.Background(), stranger, models.UpsertAssignmentRequest{LectureID: "lec-db", Name: "Quiz", MaxPoints: 5})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}
