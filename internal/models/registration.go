package models

// RegistrationAction tells which way a toggle went.
type RegistrationAction string

const (
	ActionRegistered   RegistrationAction = "registered"
	ActionUnregistered RegistrationAction = "unregistered"
)

// RegistrationResult is returned by course and lecture toggles.
type RegistrationResult struct {
	Action    RegistrationAction `json:"action"`
	CourseID  string             `json:"course_id,omitempty"`
	LectureID string             `json:"lecture_id,omitempty"`
	Capacity  *int               `json:"capacity,omitempty"`
	Fee       *Fee               `json:"fee,omitempty"`
}

// FailedPrerequisites is the outcome of a failed-prerequisite check.
// Applicable is false when the course has no prerequisites. Ungraded means no grades exist
// for any prerequisite course, which counts as failing all of them.
type FailedPrerequisites struct {
	Applicable bool     `json:"applicable"`
	Ungraded   bool     `json:"ungraded"`
	Courses    []Course `json:"courses,omitempty"`
}

// Blocking reports whether the outcome prevents registration.
func (f FailedPrerequisites) Blocking() bool {
	return f.Applicable && (f.Ungraded || len(f.Courses) > 0)
}
