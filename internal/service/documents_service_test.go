package service

import (
	"context"
	"encoding/csv"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-api/internal/models"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
	"github.com/noah-isme/uni-api/pkg/export"
	"github.com/noah-isme/uni-api/pkg/storage"
)

func calendarLecture() models.LectureDetail {
	return models.LectureDetail{
		Lecture: models.Lecture{
			ID:        "lec-db",
			Name:      "Databases A",
			Day:       time.Wednesday,
			StartTime: models.NewClockTime(9, 30),
			EndTime:   models.NewClockTime(11, 0),
		},
		AuditoriumName: strPtr("Hall 3"),
	}
}

func TestLectureEventsBuildsTwoWeeklySeries(t *testing.T) {
	tbilisi := time.FixedZone("GET", 4*60*60)

	events := LectureEvents(calendarLecture(), *fall, "ana@example.com", tbilisi)
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, time.Date(2024, 9, 4, 9, 30, 0, 0, tbilisi), first.Start)
	assert.Equal(t, time.Date(2024, 9, 4, 11, 0, 0, 0, tbilisi), first.End)
	assert.Equal(t, []string{"RRULE:FREQ=WEEKLY;UNTIL=20241028T000000Z"}, first.Recurrence)
	assert.Equal(t, "Hall 3", first.Location)
	assert.Equal(t, []string{"ana@example.com"}, first.Attendees)
	assert.Equal(t, []models.CalendarReminder{{Method: "email", Minutes: 1440}, {Method: "popup", Minutes: 10}}, first.Reminders)

	second := events[1]
	assert.Equal(t, time.Date(2024, 11, 6, 9, 30, 0, 0, tbilisi), second.Start)
	assert.Equal(t, []string{"RRULE:FREQ=WEEKLY;UNTIL=20250106T000000Z"}, second.Recurrence)
}

func TestLectureEventsHonoursExplicitStartDays(t *testing.T) {
	lecture := calendarLecture()
	lecture.StartDay = timePtr(time.Date(2024, 9, 11, 0, 0, 0, 0, time.UTC))
	lecture.StartDaySecond = timePtr(time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC))

	events := LectureEvents(lecture, *fall, "ana@example.com", time.UTC)
	require.Len(t, events, 1)
	assert.Equal(t, time.Date(2024, 9, 11, 9, 30, 0, 0, time.UTC), events[0].Start)
}

func timePtr(t time.Time) *time.Time { return &t }

type staticLectureLister struct {
	lectures []models.LectureDetail
}

func (s staticLectureLister) InSemester(ctx context.Context, actor *models.JWTClaims, semester *models.Semester) ([]models.LectureDetail, error) {
	return s.lectures, nil
}

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, calendarID string, events []models.CalendarEvent) (int, error) {
	return 0, errors.New("calendar api unavailable")
}

func TestCalendarSyncPublishes(t *testing.T) {
	publisher := NewLogCalendarPublisher(nil)
	svc := NewCalendarService(fakeSemesters{semester: fall}, staticLectureLister{lectures: []models.LectureDetail{calendarLecture()}}, publisher, nil, CalendarConfig{
		Clock: fixedClock(fallStart),
	})

	actor := &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent, Email: "ana@example.com"}
	result, err := svc.Sync(context.Background(), actor)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Published)
	assert.Len(t, publisher.Events("ana@example.com"), 2)

	failing := NewCalendarService(fakeSemesters{semester: fall}, staticLectureLister{}, failingPublisher{}, nil, CalendarConfig{})
	_, err = failing.Sync(context.Background(), actor)
	assert.True(t, errors.Is(err, appErrors.ErrCalendarPublish))
}

type mockLectureRecords struct {
	records []models.GradeRecordDetail
}

func (m *mockLectureRecords) ListByLecture(ctx context.Context, lectureID string) ([]models.GradeRecordDetail, error) {
	return m.records, nil
}

func newExportFixture() *ExportService {
	lectures := &mockLectureReader{lectures: map[string]models.Lecture{
		"lec-db": {ID: "lec-db", ProfessorID: strPtr("prof-1")},
	}}
	records := &mockLectureRecords{records: []models.GradeRecordDetail{
		{
			GradeRecord: models.GradeRecord{StudentID: "stu-1", Grade: 91.5, IsActive: true},
			StudentName: "Ana Kapanadze",
			LectureName: "Databases A",
			CourseName:  "Databases",
			Credits:     6,
		},
		{
			GradeRecord: models.GradeRecord{StudentID: "stu-2", Grade: 42, Failed: true},
			StudentName: "Giorgi Lomidze",
			LectureName: "Databases A",
			CourseName:  "Databases",
			Credits:     6,
		},
	}}
	return NewExportService(lectures, records, nil, nil, nil)
}

func TestGradeSheetCSV(t *testing.T) {
	svc := newExportFixture()

	file, err := svc.GradeSheet(context.Background(), professor, "lec-db", "CSV")
	require.NoError(t, err)
	assert.Equal(t, "grades-lec-db.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	rows, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, gradeSheetHeaders, rows[0])
	assert.Equal(t, []string{"Ana Kapanadze", "stu-1", "Databases A", "Databases", "6", "91.50", "A", "false", "true"}, rows[1])
	assert.Equal(t, []string{"Giorgi Lomidze", "stu-2", "Databases A", "Databases", "6", "42.00", "F", "true", "false"}, rows[2])
}

func TestGradeSheetXLSX(t *testing.T) {
	svc := newExportFixture()

	file, err := svc.GradeSheet(context.Background(), manager, "lec-db", FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "grades-lec-db.xlsx", file.Filename)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("PK")))
}

func TestGradeSheetRejections(t *testing.T) {
	svc := newExportFixture()

	_, err := svc.GradeSheet(context.Background(), stranger, "lec-db", FormatCSV)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.GradeSheet(context.Background(), professor, "lec-db", "pdf")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.GradeSheet(context.Background(), professor, "nope", FormatCSV)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

type capturingRenderer struct {
	docs []export.Document
}

func (c *capturingRenderer) Render(doc export.Document) ([]byte, error) {
	c.docs = append(c.docs, doc)
	return []byte("%PDF-1.3 " + doc.Title), nil
}

type syllabusFixture struct {
	svc      *SyllabusService
	renderer *capturingRenderer
	store    *storage.LocalStorage
	now      time.Time
}

func newSyllabusFixture(t *testing.T) *syllabusFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	f := &syllabusFixture{renderer: &capturingRenderer{}, store: store, now: time.Date(2024, 9, 10, 8, 0, 0, 0, time.UTC)}
	signer := storage.NewSignedURLSigner("syllabus-secret", time.Hour).WithClock(func() time.Time { return f.now })
	lectures := &mockLectureStore{mockLectureReader: mockLectureReader{lectures: map[string]models.Lecture{
		"lec-db": {ID: "lec-db", SemesterID: fall.ID, Name: "Databases A", ProfessorID: strPtr("prof-1")},
	}}}
	users := &mockUsers{users: map[string]models.User{
		"prof-1": {ID: "prof-1", FirstName: "Levan", LastName: "Gelashvili", Email: "levan@example.com", Role: models.RoleProfessor},
	}}
	f.svc = NewSyllabusService(lectures, fakeSemesters{semester: fall}, users, f.renderer, store, signer, nil, nil)
	return f
}

func syllabusRequest() models.GenerateSyllabusRequest {
	return models.GenerateSyllabusRequest{
		Purpose:     "Relational modelling",
		Literature:  "Database System Concepts",
		Plan:        []models.SyllabusWeek{{Info: "Relational algebra"}, {Info: "SQL"}},
		Assessments: []models.SyllabusAssessment{{Info: "Midterm", Amount: "1", Grade: "30", Total: "30"}},
	}
}

func TestSyllabusGenerateAndDownload(t *testing.T) {
	f := newSyllabusFixture(t)

	doc, err := f.svc.Generate(context.Background(), professor, "lec-db", syllabusRequest())
	require.NoError(t, err)
	assert.Equal(t, "syllabus/lec-db.pdf", doc.Key)
	assert.Equal(t, f.now.Add(time.Hour).Unix(), doc.ExpiresAt.Unix())

	require.Len(t, f.renderer.docs, 1)
	rendered := f.renderer.docs[0]
	assert.Contains(t, rendered.Fields, export.Field{Label: "Lecturer", Value: "Levan Gelashvili"})
	assert.Contains(t, rendered.Fields, export.Field{Label: "Semester", Value: "2024-2025 / 1"})
	titles := make([]string, 0, len(rendered.Sections))
	for _, s := range rendered.Sections {
		titles = append(titles, s.Title)
	}
	assert.Contains(t, titles, "Week 2: SQL")
	require.NotNil(t, rendered.Table)
	assert.Len(t, rendered.Table.Rows, 1)

	reader, filename, err := f.svc.Download(context.Background(), doc.Token)
	require.NoError(t, err)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "syllabus-lec-db.pdf", filename)
	assert.True(t, strings.HasPrefix(string(body), "%PDF"))
}

func TestSyllabusLinkExpires(t *testing.T) {
	f := newSyllabusFixture(t)
	_, err := f.svc.Link(context.Background(), "lec-db")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.Generate(context.Background(), manager, "lec-db", syllabusRequest())
	require.NoError(t, err)
	link, err := f.svc.Link(context.Background(), "lec-db")
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)
	_, _, err = f.svc.Download(context.Background(), link.Token)
	assert.True(t, errors.Is(err, appErrors.ErrDocumentExpired))

	_, _, err = f.svc.Download(context.Background(), "lec-db.1.c3lsbGFidXM.bad")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestSyllabusGenerateForeignLecture(t *testing.T) {
	f := newSyllabusFixture(t)

	_, err := f.svc.Generate(context.Background(), stranger, "lec-db", syllabusRequest())
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.Generate(context.Background(), professor, "lec-db", models.GenerateSyllabusRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

type mockAttendanceRepo struct {
	rows       map[string]models.Attendance
	lastFilter models.AttendanceFilter
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	if m.rows == nil {
		m.rows = make(map[string]models.Attendance)
	}
	key := record.StudentID + "/" + record.LectureID + "/" + record.Date.Format("2006-01-02")
	m.rows[key] = *record
	out := *record
	return &out, nil
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error) {
	m.lastFilter = filter
	return nil, nil
}

func newAttendanceFixture() (*AttendanceService, *mockAttendanceRepo) {
	repo := &mockAttendanceRepo{}
	lectures := &mockLectureReader{
		lectures: map[string]models.Lecture{"lec-db": {ID: "lec-db", ProfessorID: strPtr("prof-1")}},
		enrolled: map[string]bool{"lec-db/stu-1": true},
	}
	return NewAttendanceService(repo, lectures, nil, nil, fixedClock(time.Date(2024, 9, 11, 14, 45, 0, 0, time.UTC))), repo
}

func TestAttendanceMarkOverwritesSameDay(t *testing.T) {
	svc, repo := newAttendanceFixture()

	first, err := svc.Mark(context.Background(), professor, models.MarkAttendanceRequest{StudentID: "stu-1", LectureID: "lec-db", FirstHour: true})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 9, 11, 0, 0, 0, 0, time.UTC), first.Date)

	_, err = svc.Mark(context.Background(), professor, models.MarkAttendanceRequest{StudentID: "stu-1", LectureID: "lec-db", FirstHour: true, SecondHour: true})
	require.NoError(t, err)
	require.Len(t, repo.rows, 1)
	for _, row := range repo.rows {
		assert.True(t, row.SecondHour)
	}
}

func TestAttendanceMarkRejections(t *testing.T) {
	svc, _ := newAttendanceFixture()

	_, err := svc.Mark(context.Background(), student, models.MarkAttendanceRequest{StudentID: "stu-1", LectureID: "lec-db"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Mark(context.Background(), stranger, models.MarkAttendanceRequest{StudentID: "stu-1", LectureID: "lec-db"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Mark(context.Background(), professor, models.MarkAttendanceRequest{StudentID: "stu-2", LectureID: "lec-db"})
	assert.True(t, errors.Is(err, appErrors.ErrStudentNotEnrolled))
}

func TestAttendanceListScopesStudents(t *testing.T) {
	svc, repo := newAttendanceFixture()

	_, err := svc.List(context.Background(), student, models.AttendanceFilter{StudentID: "stu-2"})
	require.NoError(t, err)
	assert.Equal(t, "stu-1", repo.lastFilter.StudentID)

	_, err = svc.List(context.Background(), professor, models.AttendanceFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.List(context.Background(), professor, models.AttendanceFilter{LectureID: "lec-db"})
	assert.NoError(t, err)
}
