package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/DoyleJ11/fetris/internal/match"
)

const DefaultPrefix = "fetris:lb"

type Entry struct {
	Name    string `json:"name"`
	Wins    int64  `json:"wins"`
	Lines   int64  `json:"lines"`
	Garbage int64  `json:"garbage"`
}

// Leaderboard keeps per-name totals in Redis sorted sets. A nil *Leaderboard
// records nothing and reports an empty board.
type Leaderboard struct {
	rdb    *redis.Client
	prefix string
}

func Connect(ctx context.Context, addr, password string, db int, prefix string) (*Leaderboard, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Leaderboard{rdb: rdb, prefix: prefix}, nil
}

func (l *Leaderboard) Close() error {
	if l == nil {
		return nil
	}
	return l.rdb.Close()
}

func (l *Leaderboard) key(stat string) string { return l.prefix + ":" + stat }

// Record implements match.Recorder.
func (l *Leaderboard) Record(ctx context.Context, r match.Result) error {
	if l == nil {
		return nil
	}
	_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, pr := range r.Players {
			win := 0.0
			if r.Winner != "" && pr.Placement == 1 {
				win = 1
			}
			// keep every player on the wins board, even at zero
			p.ZIncrBy(ctx, l.key("wins"), win, pr.Name)
			p.ZIncrBy(ctx, l.key("lines"), float64(pr.LinesCleared), pr.Name)
			p.ZIncrBy(ctx, l.key("garbage"), float64(pr.GarbageSent), pr.Name)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("leaderboard %s: %w", r.PoolID, err)
	}
	return nil
}

// Top returns the n names with the most wins.
func (l *Leaderboard) Top(ctx context.Context, n int) ([]Entry, error) {
	if l == nil || n <= 0 {
		return []Entry{}, nil
	}
	wins, err := l.rdb.ZRevRangeWithScores(ctx, l.key("wins"), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("top wins: %w", err)
	}

	entries := make([]Entry, len(wins))
	lines := make([]*redis.FloatCmd, len(wins))
	garbage := make([]*redis.FloatCmd, len(wins))
	_, err = l.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, z := range wins {
			name, _ := z.Member.(string)
			entries[i] = Entry{Name: name, Wins: int64(z.Score)}
			lines[i] = p.ZScore(ctx, l.key("lines"), name)
			garbage[i] = p.ZScore(ctx, l.key("garbage"), name)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("top stats: %w", err)
	}
	for i := range entries {
		entries[i].Lines = int64(lines[i].Val())
		entries[i].Garbage = int64(garbage[i].Val())
	}
	return entries, nil
}
