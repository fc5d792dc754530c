package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-api/internal/models"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
	"github.com/noah-isme/uni-api/pkg/export"
	"github.com/noah-isme/uni-api/pkg/storage"
)

type documentRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

type lectureDetailFinder interface {
	FindDetailByID(ctx context.Context, id string) (*models.LectureDetail, error)
}

type downloadSigner interface {
	Generate(owner, key string) (string, time.Time, error)
	Parse(token string) (owner, key string, expiresAt time.Time, err error)
}

// SyllabusService renders lecture syllabi to PDF and hands out signed download tokens.
type SyllabusService struct {
	lectures  lectureDetailFinder
	semesters semesterFinder
	users     studentReader
	renderer  documentRenderer
	store     storage.Storage
	signer    downloadSigner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSyllabusService constructs the service.
func NewSyllabusService(
	lectures lectureDetailFinder,
	semesters semesterFinder,
	users studentReader,
	renderer documentRenderer,
	store storage.Storage,
	signer downloadSigner,
	validate *validator.Validate,
	logger *zap.Logger,
) *SyllabusService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyllabusService{
		lectures:  lectures,
		semesters: semesters,
		users:     users,
		renderer:  renderer,
		store:     store,
		signer:    signer,
		validator: validate,
		logger:    logger,
	}
}

func syllabusKey(lectureID string) string {
	return "syllabus/" + lectureID + ".pdf"
}

// Generate renders and stores the syllabus of a lecture, replacing any earlier version.
func (s *SyllabusService) Generate(ctx context.Context, actor *models.JWTClaims, lectureID string, req models.GenerateSyllabusRequest) (*models.SyllabusDocument, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid syllabus payload")
	}

	lecture, err := s.lectures.FindDetailByID(ctx, lectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Internal(err, "failed to load lecture")
	}
	if actor.Role == models.RoleProfessor && !teachesLecture(actor, lecture.Lecture) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "this is not your lecture")
	}

	semester, err := s.semesters.FindByID(ctx, lecture.SemesterID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load semester")
	}
	var professor *models.User
	if lecture.ProfessorID != nil {
		professor, err = s.users.FindByID(ctx, *lecture.ProfessorID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "failed to load professor")
		}
	}

	pdf, err := s.renderer.Render(SyllabusDocument(*lecture, *semester, professor, req))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render syllabus")
	}

	key := syllabusKey(lecture.ID)
	if err := s.store.Upload(ctx, key, bytes.NewReader(pdf)); err != nil {
		return nil, appErrors.Internal(err, "failed to store syllabus")
	}
	s.logger.Info("syllabus generated", zap.String("lecture_id", lecture.ID), zap.Int("bytes", len(pdf)))
	return s.link(lecture.ID, key)
}

// Link issues a fresh download token for an already generated syllabus.
func (s *SyllabusService) Link(ctx context.Context, lectureID string) (*models.SyllabusDocument, error) {
	key := syllabusKey(lectureID)
	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check syllabus")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "syllabus not generated")
	}
	return s.link(lectureID, key)
}

func (s *SyllabusService) link(lectureID, key string) (*models.SyllabusDocument, error) {
	token, expiresAt, err := s.signer.Generate(lectureID, key)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign syllabus link")
	}
	return &models.SyllabusDocument{LectureID: lectureID, Key: key, Token: token, ExpiresAt: expiresAt}, nil
}

// Download resolves a token to the stored PDF. The caller closes the reader.
func (s *SyllabusService) Download(ctx context.Context, token string) (io.ReadCloser, string, error) {
	lectureID, key, _, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.ErrDocumentExpired
		}
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	if key != syllabusKey(lectureID) {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	reader, err := s.store.Download(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "syllabus not found")
		}
		return nil, "", appErrors.Internal(err, "failed to read syllabus")
	}
	return reader, "syllabus-" + lectureID + ".pdf", nil
}

// SyllabusDocument lays out the printable syllabus of a lecture.
func SyllabusDocument(lecture models.LectureDetail, semester models.Semester, professor *models.User, req models.GenerateSyllabusRequest) export.Document {
	lecturer, email := "", ""
	if professor != nil {
		lecturer, email = professor.FullName(), professor.Email
	}

	doc := export.Document{
		Title: lecture.CourseName,
		Fields: []export.Field{
			{Label: "Course code", Value: lecture.CourseCode},
			{Label: "ECTS", Value: strconv.Itoa(lecture.Credits)},
			{Label: "Status", Value: req.Status},
			{Label: "Level", Value: req.Level},
			{Label: "Semester", Value: fmt.Sprintf("%s / %d", semester.Year, semester.Ordinal)},
			{Label: "Lecturer", Value: lecturer},
			{Label: "Email", Value: email},
			{Label: "Education", Value: req.LecturerEducation},
			{Label: "Work", Value: req.LecturerWork},
		},
		Sections: []export.Section{
			{Title: "Annotation", Body: req.Annotation},
			{Title: "Purpose", Body: req.Purpose},
			{Title: "Learning results", Body: req.Results},
			{Title: "Literature", Body: req.Literature},
		},
	}
	for i, week := range req.Plan {
		doc.Sections = append(doc.Sections, export.Section{Title: fmt.Sprintf("Week %d: %s", i+1, week.Info), Body: week.Detail})
	}
	if len(req.Assessments) > 0 {
		table := &export.Dataset{Headers: []string{"Assessment", "Amount", "Grade", "Total"}}
		for _, a := range req.Assessments {
			table.Rows = append(table.Rows, map[string]string{
				"Assessment": a.Info,
				"Amount":     a.Amount,
				"Grade":      a.Grade,
				"Total":      a.Total,
			})
		}
		doc.Table = table
	}
	return doc
}
