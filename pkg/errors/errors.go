package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so cloned messages still compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Internal wraps an unexpected failure as a 500 with a client-safe message.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}

// Invalid wraps a binding or validator failure as a 400.
func Invalid(err error, message string) *Error {
	return Wrap(err, ErrValidation.Code, ErrValidation.Status, message)
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Semester resolution errors.
var (
	ErrNoActiveSemester = New("NO_ACTIVE_SEMESTER", http.StatusNotFound, "no active semester")
	ErrSemesterOverlap  = New("SEMESTER_OVERLAP", http.StatusInternalServerError, "overlapping semesters configured")
)

// Registration rejections. Each rule carries its own code so clients can branch without parsing messages.
var (
	ErrRegistrationClosed   = New("REGISTRATION_CLOSED", http.StatusForbidden, "registration is closed")
	ErrRoleNotAllowed       = New("ROLE_NOT_ALLOWED", http.StatusBadRequest, "only students are allowed to register")
	ErrLectureFull          = New("LECTURE_FULL", http.StatusBadRequest, "you can't register the lecture because it is full")
	ErrCapacityInsufficient = New("CAPACITY_INSUFFICIENT", http.StatusConflict, "capacity insufficient")
	ErrOutstandingLoan      = New("OUTSTANDING_LOAN", http.StatusBadRequest, "you can't register the lecture because you have not payed the fee")
	ErrCourseNotRegistered  = New("COURSE_NOT_REGISTERED", http.StatusBadRequest, "you can't register the lecture because you have not registered the course")
	ErrOverlappingLectures  = New("OVERLAPPING_LECTURES", http.StatusBadRequest, "overlapping lectures")
	ErrMissingPrerequisites = New("MISSING_PREREQUISITES", http.StatusBadRequest, "missing prerequisites")
	ErrFailedPrerequisites  = New("FAILED_PREREQUISITES", http.StatusBadRequest, "failed prerequisites")
	ErrLectureNotInSemester = New("LECTURE_NOT_IN_SEMESTER", http.StatusBadRequest, "lecture does not belong to the current semester")
)

// Catalog and scheduling errors.
var (
	ErrSelfPrerequisite   = New("SELF_PREREQUISITE", http.StatusBadRequest, "course cannot be its own prerequisite")
	ErrInvalidTimeRange   = New("INVALID_TIME_RANGE", http.StatusBadRequest, "start time must be before end time")
	ErrInvalidSemester    = New("INVALID_SEMESTER_DATES", http.StatusBadRequest, "semester dates are out of order")
	ErrAuditoriumBooked   = New("AUDITORIUM_BOOKED", http.StatusConflict, "auditorium is already booked")
	ErrAuditoriumTooSmall = New("AUDITORIUM_TOO_SMALL", http.StatusBadRequest, "auditorium capacity is less than lecture capacity")
	ErrProfessorBusy      = New("PROFESSOR_BUSY", http.StatusConflict, "professor already has a lecture at this time")
	ErrNotProfessor       = New("NOT_PROFESSOR", http.StatusBadRequest, "lecturer must have the professor role")
)

// Grading and payment errors.
var (
	ErrThesisGradeMissing = New("THESIS_GRADE_MISSING", http.StatusUnprocessableEntity, "thesis grade missing")
	ErrMaxPointsExceeded  = New("MAX_POINTS_EXCEEDED", http.StatusBadRequest, "total max points cannot be more than 100")
	ErrGradeExceedsMax    = New("GRADE_EXCEEDS_MAX", http.StatusBadRequest, "grade cannot be more than the assignment max points")
	ErrStudentNotEnrolled = New("STUDENT_NOT_ENROLLED", http.StatusBadRequest, "student is not enrolled in the lecture")
	ErrAlreadyPaid        = New("ALREADY_PAID", http.StatusBadRequest, "you have already paid the semester fee")
	ErrPaymentGateway     = New("PAYMENT_GATEWAY_ERROR", http.StatusBadGateway, "payment gateway error")
	ErrCalendarPublish    = New("CALENDAR_PUBLISH_FAILED", http.StatusBadGateway, "failed to publish calendar events")
	ErrDocumentExpired    = New("DOCUMENT_LINK_EXPIRED", http.StatusGone, "document link expired")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
