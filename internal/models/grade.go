package models

import "time"

// Grade is one student's score on one assignment.
type Grade struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	Grade        float64   `db:"grade" json:"grade"`
	CreatedBy    *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CourseGradeTotal is the summed grade of a student in one course.
type CourseGradeTotal struct {
	CourseID   string   `db:"course_id" json:"course_id"`
	CourseName string   `db:"course_name" json:"course_name"`
	Credits    int      `db:"credits" json:"credits"`
	Total      float64  `db:"total" json:"total"`
	FinalExam  *float64 `db:"final_exam" json:"final_exam,omitempty"`
	Graded     int      `db:"graded" json:"graded"`
}

// FinalGrade is the aggregate outcome of a student in one lecture.
type FinalGrade struct {
	Subject    string  `json:"subject"`
	FinalGrade float64 `json:"final_grade"`
	FinalExam  float64 `json:"final_exam"`
}

// GradePoint is the banded value of a score.
type GradePoint struct {
	Point  float64 `json:"grade_point"`
	Letter string  `json:"letter"`
}

// GPAResponse wraps a cumulative GPA.
type GPAResponse struct {
	StudentID string  `json:"student_id"`
	GPA       float64 `json:"gpa"`
}

// UpsertGradeRequest is the payload for entering a grade.
type UpsertGradeRequest struct {
	StudentID    string  `json:"student_id" validate:"required"`
	AssignmentID string  `json:"assignment_id" validate:"required"`
	Grade        float64 `json:"grade" validate:"gte=0"`
}
