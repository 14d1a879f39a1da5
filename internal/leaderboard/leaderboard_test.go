package leaderboard

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/fetris/internal/match"
)

func TestNilLeaderboardIsEmpty(t *testing.T) {
	var l *Leaderboard
	require.NoError(t, l.Record(context.Background(), match.Result{Winner: "ada"}))
	top, err := l.Top(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, top)
	assert.NoError(t, l.Close())
}

// Integration-style test: runs only if REDIS_ADDR is set.
func TestLeaderboardIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	prefix := "test:" + uuid.NewString()
	l, err := Connect(ctx, addr, os.Getenv("REDIS_PASSWORD"), db, prefix)
	require.NoError(t, err)
	t.Cleanup(func() {
		l.rdb.Del(context.Background(), l.key("wins"), l.key("lines"), l.key("garbage"))
		l.Close()
	})

	game := func(winner, loser string, lines int) match.Result {
		return match.Result{
			PoolID: uuid.NewString(),
			Winner: winner,
			Players: []match.PlayerResult{
				{Name: winner, Placement: 1, LinesCleared: lines, GarbageSent: lines / 2},
				{Name: loser, Placement: 2, LinesCleared: 1},
			},
		}
	}
	require.NoError(t, l.Record(ctx, game("ada", "bob", 10)))
	require.NoError(t, l.Record(ctx, game("ada", "bob", 4)))
	require.NoError(t, l.Record(ctx, game("bob", "ada", 2)))

	top, err := l.Top(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "ada", Wins: 2, Lines: 15, Garbage: 7},
		{Name: "bob", Wins: 1, Lines: 4, Garbage: 1},
	}, top)

	top, err = l.Top(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "ada", top[0].Name)
}
