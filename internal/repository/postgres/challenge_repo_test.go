package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/fwerner/plantguard/internal/errs"
)

func TestChallengeRepo_Issue(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChallengeRepo(db)

	mock.ExpectExec(`INSERT INTO unit_challenges \(unit_id, nonce, issued_at\)`).
		WithArgs(int64(7), "nonce-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Issue(context.Background(), 7, "nonce-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepo_Consume_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChallengeRepo(db)

	issued := time.Now().Add(-time.Minute)
	mock.ExpectQuery(`DELETE FROM unit_challenges WHERE unit_id=\$1 RETURNING nonce, issued_at`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"nonce", "issued_at"}).AddRow("nonce-1", issued))

	nonce, issuedAt, err := r.Consume(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "nonce-1", nonce)
	require.WithinDuration(t, issued, issuedAt, time.Second)
}

func TestChallengeRepo_Consume_Empty(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChallengeRepo(db)

	mock.ExpectQuery(`DELETE FROM unit_challenges WHERE unit_id=\$1 RETURNING nonce, issued_at`).
		WithArgs(int64(7)).
		WillReturnError(pgx.ErrNoRows)

	_, _, err := r.Consume(context.Background(), 7)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
