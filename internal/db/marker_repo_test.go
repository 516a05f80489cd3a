package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMarkerRepository_LastGlobalRefresh_AbsentBeforeFirstRun(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMarkerRepository(db)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, found, err := repo.LastGlobalRefresh(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMarkerRepository_RecordThenRead(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMarkerRepository(db)

	at := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)

	var recordedName string
	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sqlArgs := args.Get(2).([]any)
			recordedName = sqlArgs[0].(string)
		}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()

	require.NoError(t, repo.RecordGlobalRefresh(context.Background(), at))
	assert.Equal(t, markerLastRefresh, recordedName)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			setTime(dest[0], at)
			return nil
		}})

	got, found, err := repo.LastGlobalRefresh(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, at, got)
}
