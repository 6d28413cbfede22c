package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-06-02 is a Monday.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	place    *models.Place
	employee *models.Employee
	service  *models.Service
}

func seed(t *testing.T, db *DB) fixture {
	t.Helper()
	ctx := context.Background()

	place := &models.Place{
		Name: "Studio",
		WorkingHours: models.WorkingHours{
			time.Monday: {Available: true, Start: models.NewClock(9, 0), End: models.NewClock(17, 0)},
		},
		BookingEnabled: true,
		RewardsEnabled: true,
	}
	require.NoError(t, db.CreatePlace(ctx, place))

	emp := &models.Employee{PlaceID: place.ID, Name: "Anna", IsActive: true}
	require.NoError(t, db.CreateEmployee(ctx, emp))

	svc := &models.Service{Name: "Cut", DefaultPrice: 2500, DefaultDuration: 30}
	require.NoError(t, db.CreateService(ctx, svc))
	require.NoError(t, db.UpsertPlaceService(ctx, &models.PlaceService{PlaceID: place.ID, ServiceID: svc.ID, IsAvailable: true}))

	return fixture{place: place, employee: emp, service: svc}
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, dbPath, db.Path())
}

func TestNewDB_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(dbPath, &logger)
	require.NoError(t, err, "schema creation is idempotent")
	require.NoError(t, db.Close())
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestMemoryDatabasesAreIsolated(t *testing.T) {
	a := setupTestDB(t)
	b := setupTestDB(t)
	seed(t, a)

	_, err := b.GetPlace(context.Background(), 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTx(ctx, func(tx domain.BookingTx) error {
		b := &models.Booking{
			PlaceID: f.place.ID, EmployeeID: f.employee.ID, CustomerName: "C",
			Date: monday, Time: models.NewClock(10, 0), Status: models.StatusPending,
		}
		require.NoError(t, tx.InsertBooking(ctx, b))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	active, err := db.ListActiveBookings(ctx, f.place.ID, monday)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestMapWriteErrorPassesThrough(t *testing.T) {
	assert.NoError(t, mapWriteError(nil))
	plain := errors.New("plain")
	assert.Equal(t, plain, mapWriteError(plain))
}
