package models

import "time"

// Pass marks used when settling lecture outcomes.
const (
	LecturePassMark      = 51
	FinalExamPassMark    = 18
	PrerequisitePassMark = 41
)

// GradeRecord snapshots a student's outcome in one lecture. At most one record per (student, course) is active.
type GradeRecord struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	LectureID string    `db:"lecture_id" json:"lecture_id"`
	Grade     float64   `db:"grade" json:"grade"`
	Failed    bool      `db:"failed" json:"failed"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GradeRecordDetail joins lecture and course info onto a record.
type GradeRecordDetail struct {
	GradeRecord
	LectureName string `db:"lecture_name" json:"lecture_name"`
	CourseID    string `db:"course_id" json:"course_id"`
	CourseName  string `db:"course_name" json:"course_name"`
	Credits     int    `db:"credits" json:"credits"`
	UniYear     int    `db:"uni_year" json:"uni_year"`
	StudentName string `db:"student_name" json:"student_name"`
}

// GradeRecordJob asks the worker to settle (student, lecture).
type GradeRecordJob struct {
	StudentID string `json:"student_id"`
	LectureID string `json:"lecture_id"`
}
