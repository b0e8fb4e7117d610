package etl

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLog_Start(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO etl_runs").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := NewRunLog(mock).Start(context.Background())
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err, "run ID should be a UUID")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLog_Complete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE etl_runs").
		WithArgs(int64(120), int64(4), 9.5, "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = NewRunLog(mock).Complete(context.Background(), "run-1", RunSummary{
		RecordsProcessed:  120,
		DuplicatesRemoved: 4,
		Elapsed:           9500 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLog_Fail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE etl_runs").
		WithArgs("auth: token endpoint returned 403", 1.5, "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = NewRunLog(mock).Fail(context.Background(), "run-1", "auth: token endpoint returned 403", 1500*time.Millisecond)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLog_ListAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	started := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	completed := started.Add(10 * time.Second)
	ok := true
	errMsg := "storage: connect refused"

	mock.ExpectQuery("SELECT (.+) FROM etl_runs").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "started_at", "completed_at", "records_processed",
			"duplicates_removed", "success", "execution_seconds", "error",
		}).
			AddRow("run-2", started.Add(time.Hour), (*time.Time)(nil), int64(0), int64(0), (*bool)(nil), 0.0, (*string)(nil)).
			AddRow("run-1", started, &completed, int64(120), int64(4), &ok, 10.0, &errMsg))

	entries, err := NewRunLog(mock).ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "run-2", entries[0].ID)
	assert.Nil(t, entries[0].Success)
	assert.Empty(t, entries[0].Error)

	assert.Equal(t, "run-1", entries[1].ID)
	require.NotNil(t, entries[1].Success)
	assert.True(t, *entries[1].Success)
	assert.Equal(t, int64(120), entries[1].RecordsProcessed)
	assert.Equal(t, "storage: connect refused", entries[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLog_StartError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO etl_runs").
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(fmt.Errorf("connection refused"))

	_, err = NewRunLog(mock).Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start run")
	assert.NoError(t, mock.ExpectationsWereMet())
}
