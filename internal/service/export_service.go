package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-api/internal/models"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
	"github.com/noah-isme/uni-api/pkg/export"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var gradeSheetHeaders = []string{"Student", "Student ID", "Lecture", "Course", "Credits", "Grade", "Letter", "Failed", "Active"}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

type lectureRecordReader interface {
	ListByLecture(ctx context.Context, lectureID string) ([]models.GradeRecordDetail, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders grade sheets.
type ExportService struct {
	lectures  enrollmentLectureReader
	records   lectureRecordReader
	renderers map[string]datasetRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the stock CSV and XLSX exporters.
func NewExportService(lectures enrollmentLectureReader, records lectureRecordReader, logger *zap.Logger, csv, xlsx datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter("Grades")
	}
	return &ExportService{
		lectures:  lectures,
		records:   records,
		renderers: map[string]datasetRenderer{FormatCSV: csv, FormatXLSX: xlsx},
		logger:    logger,
	}
}

// GradeSheet renders the grade records of a lecture in the requested format.
func (s *ExportService) GradeSheet(ctx context.Context, actor *models.JWTClaims, lectureID, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format "+format)
	}

	lecture, err := s.lectures.FindByID(ctx, lectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Internal(err, "failed to load lecture")
	}
	if !canManageLecture(actor, *lecture) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "this is not your lecture")
	}

	records, err := s.records.ListByLecture(ctx, lecture.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load grade records")
	}

	data, err := renderer.Render(GradeSheetDataset(records))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render grade sheet")
	}
	s.logger.Info("grade sheet exported", zap.String("lecture_id", lecture.ID), zap.String("format", format), zap.Int("rows", len(records)))
	return &ExportFile{
		Filename:    "grades-" + lecture.ID + "." + renderer.Extension(),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

// GradeSheetDataset maps grade records to export rows.
func GradeSheetDataset(records []models.GradeRecordDetail) export.Dataset {
	data := export.Dataset{Headers: gradeSheetHeaders, Rows: make([]map[string]string, 0, len(records))}
	for _, r := range records {
		data.Rows = append(data.Rows, map[string]string{
			"Student":    r.StudentName,
			"Student ID": r.StudentID,
			"Lecture":    r.LectureName,
			"Course":     r.CourseName,
			"Credits":    strconv.Itoa(r.Credits),
			"Grade":      strconv.FormatFloat(r.Grade, 'f', 2, 64),
			"Letter":     GradePoint(r.Grade).Letter,
			"Failed":     strconv.FormatBool(r.Failed),
			"Active":     strconv.FormatBool(r.IsActive),
		})
	}
	return data
}
