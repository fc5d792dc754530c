package models

import "time"

// Semester ordinals.
const (
	SemesterFall   = 1
	SemesterSpring = 2
)

// Semester is an academic term. Dates are calendar days; the range is inclusive on both ends.
type Semester struct {
	ID           string    `db:"id" json:"id"`
	Year         string    `db:"year" json:"year"`
	Ordinal      int       `db:"ordinal" json:"ordinal"`
	StartDate    time.Time `db:"start_date" json:"start_date"`
	EndDate      time.Time `db:"end_date" json:"end_date"`
	MidtermStart time.Time `db:"midterm_start" json:"midterm_start"`
	FinalStart   time.Time `db:"final_start" json:"final_start"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Contains reports whether t falls on a day inside the semester.
func (s Semester) Contains(t time.Time) bool {
	day := DateOf(t)
	return !day.Before(DateOf(s.StartDate)) && !day.After(DateOf(s.EndDate))
}

// Overlaps reports whether two semesters share at least one day.
func (s Semester) Overlaps(o Semester) bool {
	return !DateOf(s.StartDate).After(DateOf(o.EndDate)) && !DateOf(o.StartDate).After(DateOf(s.EndDate))
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CreateSemesterRequest is the payload for opening a semester.
type CreateSemesterRequest struct {
	Year         string    `json:"year" validate:"required,max=150"`
	Ordinal      int       `json:"ordinal" validate:"required,oneof=1 2"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	EndDate      time.Time `json:"end_date" validate:"required"`
	MidtermStart time.Time `json:"midterm_start" validate:"required"`
	FinalStart   time.Time `json:"final_start" validate:"required"`
}
