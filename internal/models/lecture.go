package models

import "time"

// Lecture is a scheduled section of a course in one semester. Capacity counts remaining seats.
type Lecture struct {
	ID             string       `db:"id" json:"id"`
	CourseID       string       `db:"course_id" json:"course_id"`
	SemesterID     string       `db:"semester_id" json:"semester_id"`
	ProfessorID    *string      `db:"professor_id" json:"professor_id,omitempty"`
	AuditoriumID   *string      `db:"auditorium_id" json:"auditorium_id,omitempty"`
	Name           string       `db:"name" json:"name"`
	Day            time.Weekday `db:"day" json:"day"`
	StartTime      ClockTime    `db:"start_time" json:"start_time"`
	EndTime        ClockTime    `db:"end_time" json:"end_time"`
	UniYear        int          `db:"uni_year" json:"uni_year"`
	Capacity       int          `db:"capacity" json:"capacity"`
	StartDay       *time.Time   `db:"start_day" json:"start_day,omitempty"`
	StartDaySecond *time.Time   `db:"start_day_second" json:"start_day_second,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether two lectures meet on the same day with intersecting half-open intervals.
// Back to back lectures do not overlap.
func (l Lecture) Overlaps(o Lecture) bool {
	return l.Day == o.Day && l.StartTime < o.EndTime && l.EndTime > o.StartTime
}

// IsThesis reports whether the lecture is a bachelor or master thesis.
func (l Lecture) IsThesis() bool {
	return IsThesisName(l.Name)
}

// LectureDetail joins display data used by calendar and export flows.
type LectureDetail struct {
	Lecture
	CourseName     string  `db:"course_name" json:"course_name"`
	CourseCode     string  `db:"course_code" json:"course_code"`
	Credits        int     `db:"credits" json:"credits"`
	AuditoriumName *string `db:"auditorium_name" json:"auditorium_name,omitempty"`
	ProfessorName  *string `db:"professor_name" json:"professor_name,omitempty"`
}

// Auditorium is a room lectures are held in.
type Auditorium struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Capacity     int    `db:"capacity" json:"capacity"`
	HasComputers bool   `db:"has_computers" json:"has_computers"`
}

// CreateLectureRequest is the payload for scheduling a lecture.
type CreateLectureRequest struct {
	CourseID       string       `json:"course_id" validate:"required"`
	SemesterID     string       `json:"semester_id" validate:"required"`
	ProfessorID    string       `json:"professor_id" validate:"required"`
	AuditoriumID   *string      `json:"auditorium_id"`
	Name           string       `json:"name" validate:"required,max=50"`
	Day            time.Weekday `json:"day" validate:"min=0,max=6"`
	StartTime      ClockTime    `json:"start_time"`
	EndTime        ClockTime    `json:"end_time"`
	UniYear        int          `json:"uni_year" validate:"required,min=1,max=6"`
	Capacity       int          `json:"capacity" validate:"min=0"`
	StartDay       *time.Time   `json:"start_day"`
	StartDaySecond *time.Time   `json:"start_day_second"`
}
