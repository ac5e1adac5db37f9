package sessions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbutils "coursebook/db"
	"coursebook/entity"
)

func newTestSession(maxParticipants int) entity.CourseSession {
	start := time.Now().Add(72 * time.Hour).UTC()
	return entity.CourseSession{
		SessionID:       uuid.NewString(),
		CourseID:        uuid.NewString(),
		CourseName:      "First Aid Basics",
		StartTime:       start,
		EndTime:         start.Add(8 * time.Hour),
		Venue:           "Training Center North",
		MaxParticipants: maxParticipants,
		PriceAmount:     15000,
		PriceCurrency:   "EUR",
		Status:          entity.SessionScheduled,
	}
}

func TestReserveCommitRelease(t *testing.T) {
	ctx := context.Background()
	db := dbutils.GetDb(t)
	repo := NewPostgresRepository(db)

	session := newTestSession(12)
	require.NoError(t, repo.Store(ctx, session))

	token, err := repo.Reserve(ctx, session.SessionID, 3)
	require.NoError(t, err)

	got, err := repo.Get(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.SeatsReserved)
	assert.Equal(t, 0, got.SeatsCommitted)
	assert.Equal(t, 9, got.SeatsAvailable())

	require.NoError(t, repo.Commit(ctx, token))

	got, err = repo.Get(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.SeatsReserved)
	assert.Equal(t, 3, got.SeatsCommitted)

	// provisional seats release immediately back to the pool
	token2, err := repo.Reserve(ctx, session.SessionID, 2)
	require.NoError(t, err)
	require.NoError(t, repo.Release(ctx, token2))

	got, err = repo.Get(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.SeatsReserved)
}

func TestReserveRejectsOverflow(t *testing.T) {
	ctx := context.Background()
	db := dbutils.GetDb(t)
	repo := NewPostgresRepository(db)

	session := newTestSession(2)
	require.NoError(t, repo.Store(ctx, session))

	_, err := repo.Reserve(ctx, session.SessionID, 2)
	require.NoError(t, err)

	_, err = repo.Reserve(ctx, session.SessionID, 1)
	assert.ErrorIs(t, err, entity.ErrSessionFull)
}

func TestReserveUnknownSession(t *testing.T) {
	ctx := context.Background()
	db := dbutils.GetDb(t)
	repo := NewPostgresRepository(db)

	_, err := repo.Reserve(ctx, uuid.NewString(), 1)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestReserveRaceAtLastSeat(t *testing.T) {
	ctx := context.Background()
	db := dbutils.GetDb(t)
	repo := NewPostgresRepository(db)

	session := newTestSession(1)
	require.NoError(t, repo.Store(ctx, session))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Reserve(ctx, session.SessionID, 1)
		}(i)
	}
	wg.Wait()

	won, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case assert.ErrorIs(t, err, entity.ErrSessionFull):
			full++
		}
	}
	assert.Equal(t, 1, won, "exactly one concurrent reservation may win the last seat")
	assert.Equal(t, 1, full)

	got, err := repo.Get(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SeatsReserved)
}

func TestReleaseNeverUndercutsCommitted(t *testing.T) {
	ctx := context.Background()
	db := dbutils.GetDb(t)
	repo := NewPostgresRepository(db)

	session := newTestSession(5)
	require.NoError(t, repo.Store(ctx, session))

	token, err := repo.Reserve(ctx, session.SessionID, 2)
	require.NoError(t, err)
	require.NoError(t, repo.Commit(ctx, token))

	// all reserved seats are committed, a provisional release must fail
	err = repo.Release(ctx, entity.ReservationToken{SessionID: session.SessionID, Seats: 1})
	assert.Error(t, err)

	// a committed release moves both counters
	require.NoError(t, ReleaseSeats(ctx, db, session.SessionID, 2, true))

	got, err := repo.Get(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.SeatsReserved)
	assert.Equal(t, 0, got.SeatsCommitted)
}
