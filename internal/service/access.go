package service

import "github.com/noah-isme/uni-api/internal/models"

// teachesLecture reports whether the actor is the professor assigned to the lecture.
func teachesLecture(actor *models.JWTClaims, lecture models.Lecture) bool {
	return lecture.ProfessorID != nil && *lecture.ProfessorID == actor.UserID
}

// canManageLecture allows management roles on any lecture and grade writers on the lectures they teach.
func canManageLecture(actor *models.JWTClaims, lecture models.Lecture) bool {
	if actor == nil {
		return false
	}
	if actor.Role.Can(models.CapGradesReadAll) {
		return true
	}
	return actor.Role.Can(models.CapGradesWrite) && teachesLecture(actor, lecture)
}

// canViewStudent allows students to see their own standing and management to see anyone's.
func canViewStudent(actor *models.JWTClaims, studentID string) bool {
	if actor == nil {
		return false
	}
	return actor.UserID == studentID || actor.Role.Can(models.CapGradesReadAll)
}
