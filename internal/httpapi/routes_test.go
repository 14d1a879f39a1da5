package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/fetris/internal/hub"
	"github.com/DoyleJ11/fetris/internal/leaderboard"
	"github.com/DoyleJ11/fetris/internal/match"
)

type fakeBoard struct {
	entries []leaderboard.Entry
	asked   int
	err     error
}

func (f *fakeBoard) Top(_ context.Context, n int) ([]leaderboard.Entry, error) {
	f.asked = n
	return f.entries, f.err
}

type fakeHistory []match.Result

func (f fakeHistory) RecentMatches(_ context.Context, n int) ([]match.Result, error) {
	return f[:min(n, len(f))], nil
}

func newServer(t *testing.T, deps Deps) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx, hub.Config{PoolSize: 2, Tick: time.Hour, Resolution: 10 * time.Millisecond}, zaptest.NewLogger(t))

	deps.Log = zaptest.NewLogger(t)
	srv := httptest.NewServer(SetupRoutes(h, deps))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, v any) int {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(v))
	}
	return res.StatusCode
}

func TestHealthzAndMetrics(t *testing.T) {
	srv := newServer(t, Deps{})
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/healthz", nil))
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/metrics", nil))
	assert.Equal(t, http.StatusNotFound, get(t, srv.URL+"/lobbies", nil))
}

func TestPoolsSnapshot(t *testing.T) {
	srv := newServer(t, Deps{})
	var snap hub.Snapshot
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/pools", &snap))
	assert.Zero(t, snap.Connected)
	assert.Empty(t, snap.Pools)
}

func TestLeaderboard(t *testing.T) {
	lb := &fakeBoard{entries: []leaderboard.Entry{{Name: "ada", Wins: 3, Lines: 40}}}
	srv := newServer(t, Deps{Leaderboard: lb})

	var body struct {
		Leaderboard []leaderboard.Entry `json:"leaderboard"`
	}
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/leaderboard?limit=500", &body))
	assert.Equal(t, lb.entries, body.Leaderboard)
	assert.Equal(t, maxLimit, lb.asked)

	get(t, srv.URL+"/leaderboard?limit=nope", &body)
	assert.Equal(t, defaultLimit, lb.asked)

	lb.err = errors.New("redis down")
	assert.Equal(t, http.StatusInternalServerError, get(t, srv.URL+"/leaderboard", nil))
}

func TestLeaderboardWithoutRedis(t *testing.T) {
	srv := newServer(t, Deps{})
	var body struct {
		Leaderboard []leaderboard.Entry `json:"leaderboard"`
	}
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/leaderboard", &body))
	assert.NotNil(t, body.Leaderboard)
	assert.Empty(t, body.Leaderboard)
}

func TestRecentMatches(t *testing.T) {
	srv := newServer(t, Deps{})
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv.URL+"/matches", nil))

	hist := fakeHistory{{PoolID: "p1", Winner: "ada"}, {PoolID: "p2", Winner: "bob"}}
	srv = newServer(t, Deps{History: hist})
	var body struct {
		Matches []match.Result `json:"matches"`
	}
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/matches?limit=1", &body))
	require.Len(t, body.Matches, 1)
	assert.Equal(t, "p1", body.Matches[0].PoolID)
}
