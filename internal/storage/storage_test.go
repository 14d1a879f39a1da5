package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/fetris/internal/match"
)

func sampleResult() match.Result {
	start := time.Now().UTC().Truncate(time.Millisecond)
	return match.Result{
		PoolID:    uuid.NewString(),
		StartedAt: start,
		EndedAt:   start.Add(90 * time.Second),
		Winner:    "ada",
		Players: []match.PlayerResult{
			{ID: "a", Name: "ada", Placement: 1, LinesCleared: 12, GarbageSent: 7, PiecesPlaced: 40},
			{ID: "b", Name: "bob", Placement: 2, LinesCleared: 3, GarbageReceived: 7, PiecesPlaced: 31, Disconnected: true},
		},
	}
}

func TestRecordConversionKeepsPlacements(t *testing.T) {
	r := sampleResult()
	rec := toRecord(r)
	require.Len(t, rec.Players, 2)
	assert.Equal(t, "a", rec.Players[0].PlayerID)
	assert.True(t, rec.Players[1].Disconnected)
	assert.Equal(t, r, toResult(rec))
}

// Integration-style test: runs only if DATABASE_URL is set.
func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	r := sampleResult()
	require.NoError(t, s.Record(ctx, r))

	// same pool twice violates the unique index
	assert.Error(t, s.Record(ctx, r))

	recent, err := s.RecentMatches(ctx, 50)
	require.NoError(t, err)
	var found *match.Result
	for i := range recent {
		if recent[i].PoolID == r.PoolID {
			found = &recent[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, r.Winner, found.Winner)
	require.Len(t, found.Players, 2)
	assert.Equal(t, "ada", found.Players[0].Name)
	assert.Equal(t, 7, found.Players[1].GarbageReceived)
	assert.True(t, r.EndedAt.Equal(found.EndedAt))
}
