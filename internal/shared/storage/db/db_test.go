package db

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useMockDB routes openDB to fresh sqlmock connections that accept pings.
func useMockDB(t *testing.T) *int32 {
	t.Helper()
	var opened int32
	prev := openDB
	openDB = func(driverName, dsn string) (*sql.DB, error) {
		atomic.AddInt32(&opened, 1)
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			return nil, err
		}
		mock.ExpectPing()
		return db, nil
	}
	t.Cleanup(func() { openDB = prev })
	resetSingleton(t)
	return &opened
}

func resetSingleton(t *testing.T) {
	t.Helper()
	sharedMu.Lock()
	sharedDB = nil
	sharedMu.Unlock()
	t.Cleanup(func() {
		sharedMu.Lock()
		sharedDB = nil
		sharedMu.Unlock()
	})
}

func TestConnectRejectsEmptyURL(t *testing.T) {
	_, err := Connect(context.Background(), "  ", DefaultOptions(ProfileServer))
	assert.Error(t, err)
}

func TestConnectPingFailure(t *testing.T) {
	prev := openDB
	t.Cleanup(func() { openDB = prev })
	openDB = func(string, string) (*sql.DB, error) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			return nil, err
		}
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		return db, nil
	}

	_, err := Connect(context.Background(), "postgres://studyhub", DefaultOptions(ProfileServer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping database")
}

func TestSharedReusesConnection(t *testing.T) {
	opened := useMockDB(t)

	db1, err := Shared(context.Background(), "postgres://studyhub", DefaultOptions(ProfileLambda))
	require.NoError(t, err)
	db2, err := Shared(context.Background(), "postgres://studyhub", DefaultOptions(ProfileLambda))
	require.NoError(t, err)

	assert.Same(t, db1, db2)
	assert.Equal(t, int32(1), atomic.LoadInt32(opened))
	assert.Equal(t, 2, db1.Stats().MaxOpenConnections)
}

func TestSharedRetriesAfterFailure(t *testing.T) {
	resetSingleton(t)
	var calls int32
	prev := openDB
	t.Cleanup(func() { openDB = prev })
	openDB = func(string, string) (*sql.DB, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("dns lookup failed")
		}
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			return nil, err
		}
		mock.ExpectPing()
		return db, nil
	}

	_, err := Shared(context.Background(), "postgres://studyhub", DefaultOptions(ProfileLambda))
	require.Error(t, err)

	db, err := Shared(context.Background(), "postgres://studyhub", DefaultOptions(ProfileLambda))
	require.NoError(t, err)
	assert.NotNil(t, db)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_MAX_IDLE_CONNS", "not-a-number")
	t.Setenv("DB_CONN_MAX_LIFETIME", "20m")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45s")
	t.Setenv("DB_PING_TIMEOUT", "")

	defaults := DefaultOptions(ProfileServer)
	opts := OptionsFromEnv(defaults)

	assert.Equal(t, 7, opts.MaxOpenConns)
	assert.Equal(t, defaults.MaxIdleConns, opts.MaxIdleConns)
	assert.Equal(t, 20*time.Minute, opts.ConnMaxLifetime)
	assert.Equal(t, 45*time.Second, opts.ConnMaxIdleTime)
	assert.Equal(t, defaults.PingTimeout, opts.PingTimeout)
}

func TestConnectAppliesPoolOptions(t *testing.T) {
	useMockDB(t)

	db, err := Connect(context.Background(), "postgres://studyhub", Options{MaxOpenConns: 3})
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, 3, db.Stats().MaxOpenConnections)
}

func TestDetectProfile(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	assert.Equal(t, ProfileServer, DetectProfile())
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "studyhub-api")
	assert.Equal(t, ProfileLambda, DetectProfile())
}

func TestDefaultOptionsUnknownProfile(t *testing.T) {
	assert.Equal(t, DefaultOptions(ProfileServer), DefaultOptions(Profile("batch")))
	assert.Equal(t, 1, DefaultOptions(ProfileMigrate).MaxOpenConns)
}

func TestOpenLambdaProfileSharesPool(t *testing.T) {
	opened := useMockDB(t)
	t.Setenv("DB_MAX_OPEN_CONNS", "")

	a, err := Open(context.Background(), "postgres://studyhub", ProfileLambda)
	require.NoError(t, err)
	b, err := Open(context.Background(), "postgres://studyhub", ProfileLambda)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, int32(1), atomic.LoadInt32(opened))
}
