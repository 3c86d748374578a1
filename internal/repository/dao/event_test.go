package dao

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var testDB *gorm.DB

// TestMain starts a disposable Postgres container. Row-lock behaviour is the
// point of these tests, so they need the real database.
func TestMain(m *testing.M) {
	if os.Getenv("SKIP_DB_TESTS") != "" {
		os.Exit(m.Run())
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not construct docker pool: %v", err)
	}
	if err = pool.Client.Ping(); err != nil {
		log.Fatalf("could not connect to docker: %v", err)
	}

	resource, err := pool.Run("postgres", "16-alpine", []string{
		"POSTGRES_PASSWORD=secret",
		"POSTGRES_DB=events_test",
	})
	if err != nil {
		log.Fatalf("could not start postgres: %v", err)
	}

	dsn := fmt.Sprintf("host=localhost port=%v user=postgres password=secret dbname=events_test sslmode=disable",
		resource.GetPort("5432/tcp"))

	if err = pool.Retry(func() error {
		var openErr error
		testDB, openErr = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if openErr != nil {
			return openErr
		}
		sqlDB, openErr := testDB.DB()
		if openErr != nil {
			return openErr
		}
		return sqlDB.Ping()
	}); err != nil {
		log.Fatalf("could not connect to postgres: %v", err)
	}

	if err = InitTables(testDB); err != nil {
		log.Fatalf("could not migrate tables: %v", err)
	}

	code := m.Run()

	if err = pool.Purge(resource); err != nil {
		log.Fatalf("could not purge postgres: %v", err)
	}

	os.Exit(code)
}

func requireDB(t *testing.T) *EventDAO {
	t.Helper()
	if testDB == nil {
		t.Skip("database tests skipped")
	}

	return NewEventDAO(testDB)
}

func seedEvent(t *testing.T, d *EventDAO, capacity int, ownerID uint) Event {
	t.Helper()

	event, err := d.Insert(context.Background(), Event{
		Title:     "Neighborhood picnic",
		Location:  "Lakeside lawn",
		Date:      time.Now().AddDate(0, 1, 0),
		StartTime: "12:00",
		Capacity:  capacity,
		OwnerID:   ownerID,
	}, false)
	require.NoError(t, err)

	return event
}

func TestEventDAO_AddParticipant_Concurrent(t *testing.T) {
	d := requireDB(t)
	event := seedEvent(t, d, 2, 1)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		full     int
	)
	for _, userID := range []uint{10, 11, 12} {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()

			_, added, err := d.AddParticipant(context.Background(), event.ID, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && added:
				admitted++
			case errors.Is(err, ErrEventFull):
				full++
			default:
				t.Errorf("unexpected result: added=%v err=%v", added, err)
			}
		}(userID)
	}
	wg.Wait()

	assert.Equal(t, 2, admitted)
	assert.Equal(t, 1, full)

	final, err := d.GetByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, final.ParticipantCount)

	participants, err := d.ListParticipants(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 2)
}

func TestEventDAO_AddParticipant_Idempotent(t *testing.T) {
	d := requireDB(t)
	event := seedEvent(t, d, 5, 1)

	_, added, err := d.AddParticipant(context.Background(), event.ID, 10)
	require.NoError(t, err)
	assert.True(t, added)

	after, added, err := d.AddParticipant(context.Background(), event.ID, 10)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, after.ParticipantCount)

	participants, err := d.ListParticipants(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 1)
}

func TestEventDAO_AddParticipant_NotFound(t *testing.T) {
	d := requireDB(t)

	_, _, err := d.AddParticipant(context.Background(), 999999, 10)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestEventDAO_Update_CapacityFloor(t *testing.T) {
	d := requireDB(t)
	event := seedEvent(t, d, 3, 1)

	for _, userID := range []uint{20, 21, 22} {
		_, _, err := d.AddParticipant(context.Background(), event.ID, userID)
		require.NoError(t, err)
	}

	lower := 1
	_, err := d.Update(context.Background(), event.ID, EventPatch{Capacity: &lower})
	assert.ErrorIs(t, err, ErrCapacityBelowRoster)

	unchanged, err := d.GetByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, unchanged.Capacity)

	exact := 3
	updated, err := d.Update(context.Background(), event.ID, EventPatch{Capacity: &exact})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Capacity)
}

func TestEventDAO_Delete_Cascades(t *testing.T) {
	d := requireDB(t)
	event := seedEvent(t, d, 5, 1)

	_, _, err := d.AddParticipant(context.Background(), event.ID, 30)
	require.NoError(t, err)

	require.NoError(t, d.Delete(context.Background(), event.ID))

	_, err = d.GetByID(context.Background(), event.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)

	var orphaned int64
	require.NoError(t, testDB.Model(&Participation{}).Where("event_id = ?", event.ID).Count(&orphaned).Error)
	assert.Zero(t, orphaned)
}

func TestEventDAO_GetSnapshot(t *testing.T) {
	d := requireDB(t)
	event := seedEvent(t, d, 5, 1)

	_, _, err := d.AddParticipant(context.Background(), event.ID, 40)
	require.NoError(t, err)

	snapshot, joined, err := d.GetSnapshot(context.Background(), event.ID, 40)
	require.NoError(t, err)
	assert.True(t, joined)
	assert.Equal(t, 1, snapshot.ParticipantCount)

	_, joined, err = d.GetSnapshot(context.Background(), event.ID, 41)
	require.NoError(t, err)
	assert.False(t, joined)
}

func TestEventDAO_AddParticipant_CancelledLeavesNoPartialState(t *testing.T) {
	d := requireDB(t)
	event := seedEvent(t, d, 5, 1)

	// Hold the event row lock from a second transaction so the join blocks
	// inside its mutation scope until the context expires.
	blocker := testDB.Begin()
	require.NoError(t, blocker.Error)
	var locked Event
	require.NoError(t, blocker.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, event.ID).Error)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, _, err := d.AddParticipant(ctx, event.ID, 60)
	require.Error(t, err)

	require.NoError(t, blocker.Rollback().Error)

	// The aborted join must not leave a row or a counter increment behind.
	final, err := d.GetByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, final.ParticipantCount)

	var rows int64
	require.NoError(t, testDB.Model(&Participation{}).
		Where("event_id = ? AND user_id = ?", event.ID, 60).
		Count(&rows).Error)
	assert.Zero(t, rows)

	// Once the lock is gone the same user joins cleanly.
	after, added, err := d.AddParticipant(context.Background(), event.ID, 60)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 1, after.ParticipantCount)
}

func TestEventDAO_List_Pagination(t *testing.T) {
	d := requireDB(t)

	owner := uint(70)
	location := "Pagination hall"
	for day := 1; day <= 5; day++ {
		_, err := d.Insert(context.Background(), Event{
			Title:     fmt.Sprintf("Meetup %d", day),
			Location:  location,
			Date:      time.Date(2031, time.July, day, 0, 0, 0, 0, time.UTC),
			StartTime: "18:00",
			Capacity:  10,
			OwnerID:   owner,
		}, false)
		require.NoError(t, err)
	}

	page, err := d.List(context.Background(), EventFilter{Location: &location, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "Meetup 1", page[0].Title)
	assert.Equal(t, "Meetup 2", page[1].Title)

	page, err = d.List(context.Background(), EventFilter{Location: &location, Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Meetup 5", page[0].Title)
}

func TestTranslatePgError(t *testing.T) {
	t.Run("serialization failure maps to ErrConflict", func(t *testing.T) {
		err := translatePgError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("deadlock maps to ErrConflict", func(t *testing.T) {
		err := translatePgError(&pgconn.PgError{Code: pgerrcode.DeadlockDetected})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("wrapped serialization failure still maps", func(t *testing.T) {
		wrapped := fmt.Errorf("commit failed: %w", &pgconn.PgError{Code: pgerrcode.SerializationFailure})
		assert.ErrorIs(t, translatePgError(wrapped), ErrConflict)
	})

	t.Run("other postgres errors pass through", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: pgerrcode.UniqueViolation}
		assert.Equal(t, error(pgErr), translatePgError(pgErr))
	})

	t.Run("plain errors pass through", func(t *testing.T) {
		plain := errors.New("boom")
		assert.Equal(t, plain, translatePgError(plain))
	})
}

func TestIsUniqueViolation(t *testing.T) {
	match := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "idx_event_user"}
	assert.True(t, isUniqueViolation(match, "idx_event_user"))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", match), "idx_event_user"))

	otherConstraint := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "uni_users_email"}
	assert.False(t, isUniqueViolation(otherConstraint, "idx_event_user"))
	assert.False(t, isUniqueViolation(errors.New("boom"), "idx_event_user"))
}

func TestEventDAO_Insert_OwnerJoins(t *testing.T) {
	d := requireDB(t)

	event, err := d.Insert(context.Background(), Event{
		Title:     "Founders dinner",
		Location:  "Old town hall",
		Date:      time.Now().AddDate(0, 1, 0),
		StartTime: "19:00",
		Capacity:  4,
		OwnerID:   50,
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, event.ParticipantCount)

	_, joined, err := d.GetSnapshot(context.Background(), event.ID, 50)
	require.NoError(t, err)
	assert.True(t, joined)
}
