package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-api/internal/models"
	"github.com/noah-isme/uni-api/pkg/response"
)

type registrationService interface {
	ToggleCourse(ctx context.Context, studentID, courseID string) (*models.RegistrationResult, error)
	ToggleLecture(ctx context.Context, studentID, lectureID string) (*models.RegistrationResult, error)
}

// RegistrationHandler exposes the self-service registration toggles.
type RegistrationHandler struct {
	registrations registrationService
}

// NewRegistrationHandler constructs handler.
func NewRegistrationHandler(registrations registrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

// ToggleCourse godoc
// @Summary Register or unregister a course
// @Description Registers the caller when not yet registered, otherwise unregisters and drops the course's lectures.
// @Tags Registration
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/registration [post]
func (h *RegistrationHandler) ToggleCourse(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	result, err := h.registrations.ToggleCourse(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ToggleLecture godoc
// @Summary Enroll in or leave a lecture
// @Tags Registration
// @Produce json
// @Param id path string true "Lecture ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lectures/{id}/registration [post]
func (h *RegistrationHandler) ToggleLecture(c *gin.Context) {
	claims, ok := claimsOrAbort(c)
	if !ok {
		return
	}
	result, err := h.registrations.ToggleLecture(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
