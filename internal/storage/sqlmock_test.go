package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/whereabouts/internal/model"
)

var errDiskIO = errors.New("disk I/O error")

func newMockStorage(t *testing.T) (*SQLiteStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store, err := newSQLiteStorageFromDB(db, "mock.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mock
}

func TestMock_CreateTaskPropagatesExecError(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectExec("INSERT INTO tasks").WillReturnError(errDiskIO)

	err := store.CreateTask(context.Background(), &model.Task{Title: "Call mum"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskIO)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_GetGeofenceConfigRollsBack(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT OR IGNORE INTO geofence_config").WillReturnError(errDiskIO)
	mock.ExpectRollback()

	_, err := store.GetGeofenceConfig(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskIO)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_RecordGeofenceCheckRollsBackOnUpdateFailure(t *testing.T) {
	store, mock := newMockStorage(t)
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	columns := []string{
		"id", "location_id", "custom_radius", "is_frequent", "usage_count", "last_used",
		"monthly_check_count", "monthly_hit_count", "last_statistics_reset_month",
		"created_at", "updated_at",
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM geofence_locations WHERE id = ?").
		WithArgs("gl-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("gl-1", "loc-1", nil, false, 0, nil, 3, 1, "2024-01", now, now))
	mock.ExpectExec("INSERT INTO geofence_location_statistics_history").
		WithArgs("gl-1", "2024-01", 3, 1, sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE geofence_locations SET").WillReturnError(errDiskIO)
	mock.ExpectRollback()

	_, err := store.RecordGeofenceCheck(context.Background(), "gl-1", true, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskIO)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_DeleteLocationNotFound(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectExec("DELETE FROM locations").
		WithArgs("loc-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteLocation(context.Background(), "loc-9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loc-9")
	assert.NoError(t, mock.ExpectationsWereMet())
}
