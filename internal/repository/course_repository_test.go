package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrerequisiteGradeTotals(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM course_prerequisites cp")).
		WithArgs("c2", "s1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "course_name", "credits", "total", "final_exam", "graded"}).
			AddRow("c1", "Calculus I", 6, 60.0, 25.0, 4))

	totals, err := repo.PrerequisiteGradeTotals(context.Background(), "c2", "s1")
	require.NoError(t, err)
	require.Len(t, totals, 1)
	require.NotNil(t, totals[0].FinalExam)
	assert.Equal(t, 25.0, *totals[0].FinalExam)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddStudentIgnoresDuplicates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_students")).
		WithArgs("c1", "s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.AddStudent(context.Background(), "c1", "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
