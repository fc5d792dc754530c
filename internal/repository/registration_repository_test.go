package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinTxDecrementFullLecture(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE lectures SET capacity = capacity - 1, updated_at = $2 WHERE id = $1 AND capacity > 0 RETURNING capacity")).
		WithArgs("l1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}))
	mock.ExpectCommit()

	var ok bool
	err := repo.WithinTx(context.Background(), func(tx RegistrationTx) error {
		var err error
		_, ok, err = tx.DecrementCapacity(context.Background(), "l1")
		return err
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxEnrollCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE lectures SET capacity = capacity - 1")).
		WithArgs("l1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lecture_students (lecture_id, student_id, created_at)")).
		WithArgs("l1", "s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	var remaining int
	err := repo.WithinTx(context.Background(), func(tx RegistrationTx) error {
		capacity, ok, err := tx.DecrementCapacity(context.Background(), "l1")
		if err != nil || !ok {
			return errors.New("expected a seat")
		}
		remaining = capacity
		return tx.AddEnrollment(context.Background(), "l1", "s1")
	})
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM lecture_students WHERE lecture_id = $1 AND student_id = $2")).
		WithArgs("l1", "s1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := repo.WithinTx(context.Background(), func(tx RegistrationTx) error {
		removed, err := tx.RemoveEnrollment(context.Background(), "l1", "s1")
		require.NoError(t, err)
		assert.False(t, removed)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockLectureUsesRowLock(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM lectures l WHERE l.id = $1 FOR UPDATE")).
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "semester_id", "name", "day", "start_time", "end_time", "uni_year", "capacity"}).
			AddRow("l1", "c1", "sem1", "Algebra I", 1, "10:00:00", "12:00:00", 1, 20))
	mock.ExpectCommit()

	err := repo.WithinTx(context.Background(), func(tx RegistrationTx) error {
		lecture, err := tx.LockLecture(context.Background(), "l1")
		if err != nil {
			return err
		}
		assert.Equal(t, 20, lecture.Capacity)
		assert.Equal(t, "10:00", lecture.StartTime.String())
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
