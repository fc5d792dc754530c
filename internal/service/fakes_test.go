package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/noah-isme/uni-api/internal/models"
	"github.com/noah-isme/uni-api/internal/repository"
)

var errStub = errors.New("stub failure")

// memRegistrar keeps courses, lectures and grade records in memory and honours the registration
// transaction contract, rolling back state when the callback fails.
type memRegistrar struct {
	users          map[string]*models.User
	courses        map[string]*models.Course
	courseStudents map[string]map[string]bool
	lectures       map[string]*models.Lecture
	lectureDetails map[string]models.LectureDetail
	enrolled       map[string]map[string]bool
	records        []*models.GradeRecord
}

func newMemRegistrar() *memRegistrar {
	return &memRegistrar{
		users:          make(map[string]*models.User),
		courses:        make(map[string]*models.Course),
		courseStudents: make(map[string]map[string]bool),
		lectures:       make(map[string]*models.Lecture),
		lectureDetails: make(map[string]models.LectureDetail),
		enrolled:       make(map[string]map[string]bool),
	}
}

func (m *memRegistrar) addUser(u *models.User) { m.users[u.ID] = u }

func (m *memRegistrar) addCourse(c *models.Course) {
	m.courses[c.ID] = c
	m.courseStudents[c.ID] = make(map[string]bool)
}

func (m *memRegistrar) addLecture(l *models.Lecture) {
	m.lectures[l.ID] = l
	m.enrolled[l.ID] = make(map[string]bool)
}

func (m *memRegistrar) enroll(lectureID, studentID string) { m.enrolled[lectureID][studentID] = true }

func (m *memRegistrar) registerCourse(courseID, studentID string) {
	m.courseStudents[courseID][studentID] = true
}

func (m *memRegistrar) addRecord(r *models.GradeRecord) { m.records = append(m.records, r) }

func (m *memRegistrar) record(id string) *models.GradeRecord {
	for _, r := range m.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (m *memRegistrar) activeRecordsInCourse(studentID, courseID string) int {
	n := 0
	for _, r := range m.records {
		if r.StudentID == studentID && r.IsActive && m.lectures[r.LectureID].CourseID == courseID {
			n++
		}
	}
	return n
}

// users

func (m *memRegistrar) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

type memCourses struct{ m *memRegistrar }

func (c memCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := c.m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *course
	return &clone, nil
}

func (c memCourses) IsStudentRegistered(ctx context.Context, courseID, studentID string) (bool, error) {
	return c.m.courseStudents[courseID][studentID], nil
}

func (c memCourses) AddStudent(ctx context.Context, courseID, studentID string) error {
	c.m.courseStudents[courseID][studentID] = true
	return nil
}

func (c memCourses) RemoveStudent(ctx context.Context, courseID, studentID string) error {
	delete(c.m.courseStudents[courseID], studentID)
	return nil
}

type memLectures struct{ m *memRegistrar }

func (l memLectures) FindByID(ctx context.Context, id string) (*models.Lecture, error) {
	lecture, ok := l.m.lectures[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *lecture
	return &clone, nil
}

func (l memLectures) IsEnrolled(ctx context.Context, lectureID, studentID string) (bool, error) {
	return l.m.enrolled[lectureID][studentID], nil
}

func (l memLectures) ListByStudentInSemester(ctx context.Context, studentID, semesterID string) ([]models.LectureDetail, error) {
	var out []models.LectureDetail
	for id, students := range l.m.enrolled {
		lecture := l.m.lectures[id]
		if students[studentID] && lecture.SemesterID == semesterID {
			out = append(out, models.LectureDetail{Lecture: *lecture})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRegistrar) WithinTx(ctx context.Context, fn func(repository.RegistrationTx) error) error {
	snapshot := m.snapshot()
	if err := fn(&memTx{m: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memSnapshot struct {
	capacities map[string]int
	enrolled   map[string]map[string]bool
	records    []models.GradeRecord
}

func (m *memRegistrar) snapshot() memSnapshot {
	s := memSnapshot{capacities: make(map[string]int), enrolled: make(map[string]map[string]bool)}
	for id, l := range m.lectures {
		s.capacities[id] = l.Capacity
	}
	for id, students := range m.enrolled {
		set := make(map[string]bool, len(students))
		for k, v := range students {
			set[k] = v
		}
		s.enrolled[id] = set
	}
	for _, r := range m.records {
		s.records = append(s.records, *r)
	}
	return s
}

func (m *memRegistrar) restore(s memSnapshot) {
	for id, c := range s.capacities {
		m.lectures[id].Capacity = c
	}
	m.enrolled = s.enrolled
	for i := range m.records {
		*m.records[i] = s.records[i]
	}
}

type memTx struct{ m *memRegistrar }

func (t *memTx) LockLecture(ctx context.Context, lectureID string) (*models.Lecture, error) {
	return memLectures{t.m}.FindByID(ctx, lectureID)
}

func (t *memTx) IsEnrolled(ctx context.Context, lectureID, studentID string) (bool, error) {
	return t.m.enrolled[lectureID][studentID], nil
}

func (t *memTx) AddEnrollment(ctx context.Context, lectureID, studentID string) error {
	t.m.enrolled[lectureID][studentID] = true
	return nil
}

func (t *memTx) RemoveEnrollment(ctx context.Context, lectureID, studentID string) (bool, error) {
	if !t.m.enrolled[lectureID][studentID] {
		return false, nil
	}
	delete(t.m.enrolled[lectureID], studentID)
	return true, nil
}

func (t *memTx) DecrementCapacity(ctx context.Context, lectureID string) (int, bool, error) {
	lecture := t.m.lectures[lectureID]
	if lecture.Capacity <= 0 {
		return 0, false, nil
	}
	lecture.Capacity--
	return lecture.Capacity, true, nil
}

func (t *memTx) IncrementCapacity(ctx context.Context, lectureID string) (int, error) {
	lecture := t.m.lectures[lectureID]
	lecture.Capacity++
	return lecture.Capacity, nil
}

func (t *memTx) OtherEnrolledLectures(ctx context.Context, studentID, courseID, excludeLectureID string) ([]models.Lecture, error) {
	var out []models.Lecture
	for id, students := range t.m.enrolled {
		lecture := t.m.lectures[id]
		if id != excludeLectureID && lecture.CourseID == courseID && students[studentID] {
			out = append(out, *lecture)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t *memTx) DeactivateLectureRecords(ctx context.Context, studentID, lectureID string) error {
	for _, r := range t.m.records {
		if r.StudentID == studentID && r.LectureID == lectureID {
			r.IsActive = false
		}
	}
	return nil
}

func (t *memTx) DeactivateCourseRecords(ctx context.Context, studentID, courseID string) error {
	for _, r := range t.m.records {
		if r.StudentID == studentID && t.m.lectures[r.LectureID].CourseID == courseID {
			r.IsActive = false
		}
	}
	return nil
}

func (t *memTx) LatestInactiveRecord(ctx context.Context, studentID, courseID, excludeLectureID string) (*models.GradeRecord, error) {
	var latest *models.GradeRecord
	for _, r := range t.m.records {
		if r.StudentID != studentID || r.IsActive || r.LectureID == excludeLectureID {
			continue
		}
		if t.m.lectures[r.LectureID].CourseID != courseID {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	clone := *latest
	return &clone, nil
}

func (t *memTx) ActivateRecord(ctx context.Context, recordID string) error {
	if r := t.m.record(recordID); r != nil {
		r.IsActive = true
	}
	return nil
}

type fakeSemesters struct {
	semester *models.Semester
	err      error
}

func (f fakeSemesters) Current(ctx context.Context, now time.Time) (*models.Semester, error) {
	if f.err != nil {
		return nil, f.err
	}
	clone := *f.semester
	return &clone, nil
}

func (f fakeSemesters) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	if f.semester == nil || f.semester.ID != id {
		return nil, sql.ErrNoRows
	}
	clone := *f.semester
	return &clone, nil
}

type fakePrereqs struct {
	missing    []models.Course
	applicable bool
	failed     models.FailedPrerequisites
}

func (f fakePrereqs) Missing(ctx context.Context, course models.Course, studentID string) ([]models.Course, bool, error) {
	return f.missing, f.applicable, nil
}

func (f fakePrereqs) Failed(ctx context.Context, course models.Course, studentID string) (models.FailedPrerequisites, error) {
	return f.failed, nil
}

type fakeFees struct {
	calls int
	fee   *models.Fee
	err   error
}

func (f *fakeFees) Reconcile(ctx context.Context, student *models.User, semester *models.Semester) (*models.Fee, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.fee, nil
}

// memCourseTotals reports graded totals only for courses the student is registered in.
type memCourseTotals struct {
	mem    *memRegistrar
	totals map[string]models.CourseGradeTotal
}

func (m memCourseTotals) RegisteredCourseTotals(ctx context.Context, studentID string) ([]models.CourseGradeTotal, error) {
	var out []models.CourseGradeTotal
	for courseID, total := range m.totals {
		if m.mem.courseStudents[courseID][studentID] {
			out = append(out, total)
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
