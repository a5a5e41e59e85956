package usage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*pgStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPGStore(db), mock
}

var windowColumns = []string{"plan", "usage_limit", "used", "resets_at"}

func TestPGStoreConsumeIncrements(t *testing.T) {
	store, mock := newMockStore(t)
	resets := time.Now().UTC().Add(48 * time.Hour)
	plan := Plan{Name: "free", Limit: 20}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT plan, usage_limit, used, resets_at FROM usage_windows").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(windowColumns).AddRow("free", 20, 4, resets))
	mock.ExpectExec("UPDATE usage_windows SET used").
		WithArgs(5, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := store.Consume(context.Background(), "user-1", plan, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, u.Used)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreConsumeAtLimitRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	resets := time.Now().UTC().Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT plan, usage_limit, used, resets_at FROM usage_windows").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(windowColumns).AddRow("free", 20, 20, resets))
	mock.ExpectRollback()

	_, err := store.Consume(context.Background(), "user-1", Plan{Name: "free", Limit: 20}, 1)
	assert.ErrorIs(t, err, ErrLimitReached)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreEnsurePeriodRollsExpiredWindow(t *testing.T) {
	store, mock := newMockStore(t)
	expired := time.Now().UTC().Add(-time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT plan, usage_limit, used, resets_at FROM usage_windows").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(windowColumns).AddRow("free", 20, 17, expired))
	mock.ExpectExec("UPDATE usage_windows SET plan").
		WithArgs("paid", 1000, 0, sqlmock.AnyArg(), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := store.EnsurePeriod(context.Background(), "user-1", Plan{Name: "paid", Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 0, u.Used)
	assert.Equal(t, "paid", u.Plan)
	assert.True(t, u.ResetsAt.After(time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreEnsurePeriodCreatesRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT plan, usage_limit, used, resets_at FROM usage_windows").
		WithArgs("user-2").
		WillReturnRows(sqlmock.NewRows(windowColumns))
	mock.ExpectExec("INSERT INTO usage_windows").
		WithArgs("user-2", "free", 20, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := store.EnsurePeriod(context.Background(), "user-2", Plan{Name: "free", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 20, u.Limit)
	assert.NoError(t, mock.ExpectationsWereMet())
}
