package models

import "time"

// MaxLecturePoints caps the summed max_points of a lecture's assignments.
const MaxLecturePoints = 100

var (
	finalExamNames = map[string]struct{}{
		"Final Exam":        {},
		"დასკვნითი გამოცდა": {},
	}
	masterThesisNames = map[string]struct{}{
		"Master Thesis":      {},
		"სამაგისტრო ნაშრომი": {},
	}
	bachelorThesisNames = map[string]struct{}{
		"Bachelor Thesis":      {},
		"საბაკალავრო ნაშრომი": {},
	}
)

// FinalExamNames returns the assignment names treated as a final exam.
func FinalExamNames() []string { return keys(finalExamNames) }

// MasterThesisNames returns the lecture names treated as a master thesis.
func MasterThesisNames() []string { return keys(masterThesisNames) }

// BachelorThesisNames returns the lecture names treated as a bachelor thesis.
func BachelorThesisNames() []string { return keys(bachelorThesisNames) }

func IsFinalExamName(name string) bool {
	_, ok := finalExamNames[name]
	return ok
}

func IsMasterThesisName(name string) bool {
	_, ok := masterThesisNames[name]
	return ok
}

func IsBachelorThesisName(name string) bool {
	_, ok := bachelorThesisNames[name]
	return ok
}

func IsThesisName(name string) bool {
	return IsMasterThesisName(name) || IsBachelorThesisName(name)
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// Assignment is a graded component of a lecture.
type Assignment struct {
	ID          string     `db:"id" json:"id"`
	LectureID   string     `db:"lecture_id" json:"lecture_id"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description,omitempty"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	MaxPoints   float64    `db:"max_points" json:"max_points"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether grading this assignment settles the lecture outcome.
func (a Assignment) Terminal(lecture Lecture) bool {
	return IsFinalExamName(a.Name) || IsThesisName(a.Name) || lecture.IsThesis()
}

// UpsertAssignmentRequest is the payload for creating or editing an assignment.
type UpsertAssignmentRequest struct {
	LectureID   string     `json:"lecture_id" validate:"required"`
	Name        string     `json:"name" validate:"required,max=50"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	MaxPoints   float64    `json:"max_points" validate:"gte=0,lte=100"`
}
