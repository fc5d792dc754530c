package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-api/internal/models"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
	"github.com/noah-isme/uni-api/pkg/response"
)

type calendarService interface {
	Sync(ctx context.Context, actor *models.JWTClaims) (*models.CalendarSyncResult, error)
}

type syllabusService interface {
	Generate(ctx context.Context, actor *models.JWTClaims, lectureID string, req models.GenerateSyllabusRequest) (*models.SyllabusDocument, error)
	Link(ctx context.Context, lectureID string) (*models.SyllabusDocument, error)
	Download(ctx context.Context, token string) (io.ReadCloser, string, error)
}

// DocumentHandler exposes calendar sync and syllabus documents.
type DocumentHandler struct {
	calendar calendarService
	syllabi  syllabusService
}

// NewDocumentHandler constructs handler.
func NewDocumentHandler(calendar calendarService, syllabi syllabusService) *DocumentHandler {
	return &DocumentHandler{calendar: calendar, syllabi: syllabi}
}

// SyncCalendar godoc
// @Summary Publish the caller's timetable to their calendar
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /calendar/sync [post]
func (h *DocumentHandler) SyncCalendar(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	result, err := h.calendar.Sync(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GenerateSyllabus godoc
// @Summary Render the syllabus PDF of a lecture
// @Tags Syllabus
// @Accept json
// @Produce json
// @Param id path string true "Lecture ID"
// @Param payload body models.GenerateSyllabusRequest true "Syllabus text"
// @Success 201 {object} response.Envelope
// @Router /lectures/{id}/syllabus [post]
func (h *DocumentHandler) GenerateSyllabus(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	var req models.GenerateSyllabusRequest
	if !bindJSON(c, &req, "invalid syllabus payload") {
		return
	}
	doc, err := h.syllabi.Generate(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// SyllabusLink godoc
// @Summary Fresh download link for a generated syllabus
// @Tags Syllabus
// @Produce json
// @Param id path string true "Lecture ID"
// @Success 200 {object} response.Envelope
// @Router /lectures/{id}/syllabus [get]
func (h *DocumentHandler) SyllabusLink(c *gin.Context) {
	doc, err := h.syllabi.Link(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// DownloadSyllabus godoc
// @Summary Download a syllabus with a signed token
// @Tags Syllabus
// @Produce application/pdf
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 410 {object} response.Envelope
// @Router /syllabus/download [get]
func (h *DocumentHandler) DownloadSyllabus(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	reader, filename, err := h.syllabi.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer reader.Close() //nolint:errcheck

	response.Inline(c, filename, "application/pdf", -1, reader)
}
