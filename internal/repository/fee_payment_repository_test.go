package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
)

func TestFeePaymentRepositoryRecord(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeePaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM fee_vouchers WHERE id = $1 FOR UPDATE")).
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("v1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE((SELECT SUM(amount) FROM fee_voucher_items WHERE voucher_id = $1), 0)")).
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"due"}).AddRow(600.0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fee_payments")).
		WithArgs(sqlmock.AnyArg(), "v1", 400.0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment := &models.FeePayment{VoucherID: "v1", Amount: 400}
	err := repo.Record(context.Background(), payment)
	require.NoError(t, err)
	require.NotEmpty(t, payment.ID)
	require.False(t, payment.PaymentDate.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeePaymentRepositoryRecordExceedsDue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeePaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM fee_vouchers WHERE id = $1 FOR UPDATE")).
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("v1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE((SELECT SUM(amount) FROM fee_voucher_items WHERE voucher_id = $1), 0)")).
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"due"}).AddRow(100.0))
	mock.ExpectRollback()

	err := repo.Record(context.Background(), &models.FeePayment{VoucherID: "v1", Amount: 150})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrExceedsDue.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeePaymentRepositoryRecordUnknownVoucher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeePaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM fee_vouchers WHERE id = $1 FOR UPDATE")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Record(context.Background(), &models.FeePayment{VoucherID: "missing", Amount: 100})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeePaymentRepositoryListByVoucher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeePaymentRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "voucher_id", "amount", "payment_date", "created_at"}).
		AddRow("p1", "v1", 400.0, now, now).
		AddRow("p2", "v1", 600.0, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM fee_payments WHERE voucher_id = $1 ORDER BY payment_date, created_at")).
		WithArgs("v1").
		WillReturnRows(rows)

	payments, err := repo.ListByVoucher(context.Background(), "v1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}
