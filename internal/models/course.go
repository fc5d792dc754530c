package models

import "time"

// Course is a catalog entry. Prerequisites are directed edges stored in course_prerequisites.
type Course struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	Credits      int       `db:"credits" json:"credits"`
	DepartmentID *string   `db:"department_id" json:"department_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail adds the prerequisite list to a course.
type CourseDetail struct {
	Course
	Prerequisites []Course `json:"prerequisites"`
}

// CourseFilter scopes catalog listings.
type CourseFilter struct {
	DepartmentID string
	ProfessorID  string
	StudentID    string
	Search       string
	Page         int
	PageSize     int
}

// CreateCourseRequest is the payload for adding a course to the catalog.
type CreateCourseRequest struct {
	Code            string   `json:"code" validate:"required,max=10"`
	Name            string   `json:"name" validate:"required,max=50"`
	Credits         int      `json:"credits" validate:"required,min=1,max=60"`
	DepartmentID    *string  `json:"department_id"`
	PrerequisiteIDs []string `json:"prerequisite_ids" validate:"dive,required"`
}

// CourseNames lists course names in order.
func CourseNames(courses []Course) []string {
	names := make([]string, len(courses))
	for i, c := range courses {
		names[i] = c.Name
	}
	return names
}

// SetPrerequisitesRequest replaces the prerequisites of a course.
type SetPrerequisitesRequest struct {
	PrerequisiteIDs []string `json:"prerequisite_ids" validate:"dive,required"`
}
