package models

import "time"

// SyllabusAssessment is one assessment line in a syllabus.
type SyllabusAssessment struct {
	Info   string `json:"info" validate:"required"`
	Amount string `json:"amount"`
	Grade  string `json:"grade"`
	Total  string `json:"total"`
}

// SyllabusWeek is one lecture plan entry.
type SyllabusWeek struct {
	Info   string `json:"info" validate:"required"`
	Detail string `json:"detail"`
}

// GenerateSyllabusRequest carries the free text parts of a syllabus; catalog fields come from the lecture.
type GenerateSyllabusRequest struct {
	Annotation        string               `json:"annotation"`
	Status            string               `json:"status"`
	Level             string               `json:"level"`
	LecturerEducation string               `json:"lecturer_education"`
	LecturerWork      string               `json:"lecturer_work"`
	Purpose           string               `json:"purpose" validate:"required"`
	Results           string               `json:"results"`
	Literature        string               `json:"literature"`
	Assessments       []SyllabusAssessment `json:"assessments" validate:"dive"`
	Plan              []SyllabusWeek       `json:"plan" validate:"dive"`
}

// SyllabusDocument points at a stored syllabus.
type SyllabusDocument struct {
	LectureID string    `json:"lecture_id"`
	Key       string    `json:"key"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
