package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentRepositoryFindOpenByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "section_id", "start_date", "end_date", "created_at"}).
		AddRow("e1", "s1", "c1", "sec1", now, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE student_id = $1 AND end_date IS NULL")).
		WithArgs("s1").
		WillReturnRows(rows)

	enrollment, err := repo.FindOpenByStudent(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, "e1", enrollment.ID)
	require.Nil(t, enrollment.EndDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCloseWithoutOpenRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	endDate := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_class_history SET end_date = $2 WHERE student_id = $1 AND end_date IS NULL")).
		WithArgs("s1", endDate).
		WillReturnResult(sqlmock.NewResult(0, 0))

	closed, err := repo.Close(context.Background(), "s1", endDate)
	require.NoError(t, err)
	require.False(t, closed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryReplaceResetsDiscount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	date := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	lockRows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "section_id", "start_date", "end_date", "created_at"}).
		AddRow("e1", "s1", "c1", "sec1", now, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE student_id = $1 AND end_date IS NULL")).
		WithArgs("s1").
		WillReturnRows(lockRows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_class_history SET end_date = $2 WHERE id = $1")).
		WithArgs("e1", date).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_class_history")).
		WithArgs(sqlmock.AnyArg(), "s1", "c2", "sec2", date, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_discounts WHERE student_id = $1 AND class_id = $2")).
		WithArgs("s1", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	next, err := repo.Replace(context.Background(), "s1", "c2", "sec2", date, true)
	require.NoError(t, err)
	require.Equal(t, "c2", next.ClassID)
	require.Equal(t, date, next.StartDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryReplaceNoOpenEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE student_id = $1 AND end_date IS NULL")).
		WithArgs("s1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Replace(context.Background(), "s1", "c2", "sec2", time.Now().UTC(), false)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryRosterFiltersSection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"enrollment_id", "student_id", "student_name"}).
		AddRow("e1", "s1", "Alice").
		AddRow("e2", "s2", "Bilal")
	mock.ExpectQuery(regexp.QuoteMeta("s.active = true AND s.expelled = false AND e.section_id = $2")).
		WithArgs("c1", "sec1").
		WillReturnRows(rows)

	roster, err := repo.Roster(context.Background(), "c1", "sec1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}
