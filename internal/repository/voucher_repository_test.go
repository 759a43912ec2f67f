package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestVoucherRepositoryCreateWithItems(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewVoucherRepository(db)

	month := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	voucher := &models.FeeVoucher{EnrollmentID: "enr-1", Month: month, DueDate: month.AddDate(0, 0, 9)}
	items := []models.FeeVoucherItem{
		{ItemType: models.ItemMonthly, Amount: 1000},
		{ItemType: models.ItemDiscount, Amount: -100},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fee_vouchers")).
		WithArgs(sqlmock.AnyArg(), "enr-1", month, voucher.DueDate, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fee_voucher_items")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), models.ItemMonthly, 1000.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fee_voucher_items")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), models.ItemDiscount, -100.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CreateWithItems(context.Background(), voucher, items)
	require.NoError(t, err)
	require.NotEmpty(t, voucher.ID)
	require.Equal(t, voucher.ID, items[0].VoucherID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVoucherRepositoryCreateWithItemsDuplicateMonth(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewVoucherRepository(db)

	month := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fee_vouchers")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreateWithItems(context.Background(), &models.FeeVoucher{EnrollmentID: "enr-1", Month: month}, nil)
	require.ErrorIs(t, err, appErrors.ErrVoucherExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVoucherRepositoryExistsForMonth(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewVoucherRepository(db)

	month := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM fee_vouchers WHERE enrollment_id = $1 AND month = $2")).
		WithArgs("enr-1", month).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.ExistsForMonth(context.Background(), "enr-1", month)
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVoucherRepositoryDeleteBlockedByPayments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewVoucherRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM fee_vouchers WHERE id = $1 FOR UPDATE")).
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("v1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM fee_payments WHERE voucher_id = $1")).
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "v1")
	require.ErrorIs(t, err, appErrors.ErrVoucherHasPayments)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVoucherRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewVoucherRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM fee_vouchers WHERE id = $1 FOR UPDATE")).
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("v1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM fee_payments WHERE voucher_id = $1")).
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM fee_voucher_items WHERE voucher_id = $1")).
		WithArgs("v1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM fee_vouchers WHERE id = $1")).
		WithArgs("v1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), "v1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
