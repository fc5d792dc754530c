package models

import "time"

// Attendance records presence for the three hours of a lecture on one day.
type Attendance struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	LectureID  string    `db:"lecture_id" json:"lecture_id"`
	Date       time.Time `db:"date" json:"date"`
	FirstHour  bool      `db:"first_hour" json:"first_hour"`
	SecondHour bool      `db:"second_hour" json:"second_hour"`
	ThirdHour  bool      `db:"third_hour" json:"third_hour"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// MarkAttendanceRequest is the payload for recording attendance.
type MarkAttendanceRequest struct {
	StudentID  string    `json:"student_id" validate:"required"`
	LectureID  string    `json:"lecture_id" validate:"required"`
	Date       time.Time `json:"date"`
	FirstHour  bool      `json:"first_hour"`
	SecondHour bool      `json:"second_hour"`
	ThirdHour  bool      `json:"third_hour"`
}

// AttendanceFilter narrows attendance listings.
type AttendanceFilter struct {
	StudentID string
	LectureID string
	From      *time.Time
	To        *time.Time
}
