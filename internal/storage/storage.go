package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DoyleJ11/fetris/internal/match"
)

type MatchRecord struct {
	ID        uint   `gorm:"primaryKey"`
	PoolID    string `gorm:"uniqueIndex;size:36"`
	StartedAt time.Time
	EndedAt   time.Time `gorm:"index"`
	Winner    string
	Players   []PlayerRecord `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE"`
}

type PlayerRecord struct {
	ID              uint `gorm:"primaryKey"`
	MatchID         uint `gorm:"index"`
	PlayerID        string
	Name            string
	Placement       int
	LinesCleared    int
	GarbageSent     int
	GarbageReceived int
	PiecesPlaced    int
	Disconnected    bool
}

// Store keeps match history in Postgres.
type Store struct {
	pool *pgxpool.Pool
	sql  *sql.DB
	db   *gorm.DB
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		sqlDB.Close()
		pool.Close()
		return nil, fmt.Errorf("gorm open: %w", err)
	}

	s := &Store{pool: pool, sql: sqlDB, db: db}
	if err := db.WithContext(ctx).AutoMigrate(&MatchRecord{}, &PlayerRecord{}); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() {
	s.sql.Close()
	s.pool.Close()
}

// Record implements match.Recorder.
func (s *Store) Record(ctx context.Context, r match.Result) error {
	rec := toRecord(r)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert match %s: %w", r.PoolID, err)
	}
	return nil
}

// RecentMatches returns the last n finished matches, newest first.
func (s *Store) RecentMatches(ctx context.Context, n int) ([]match.Result, error) {
	var recs []MatchRecord
	err := s.db.WithContext(ctx).
		Preload("Players", func(db *gorm.DB) *gorm.DB { return db.Order("placement") }).
		Order("ended_at desc").
		Limit(n).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("recent matches: %w", err)
	}

	out := make([]match.Result, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toResult(rec))
	}
	return out, nil
}

func toRecord(r match.Result) MatchRecord {
	rec := MatchRecord{
		PoolID:    r.PoolID,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		Winner:    r.Winner,
		Players:   make([]PlayerRecord, 0, len(r.Players)),
	}
	for _, p := range r.Players {
		rec.Players = append(rec.Players, PlayerRecord{
			PlayerID:        p.ID,
			Name:            p.Name,
			Placement:       p.Placement,
			LinesCleared:    p.LinesCleared,
			GarbageSent:     p.GarbageSent,
			GarbageReceived: p.GarbageReceived,
			PiecesPlaced:    p.PiecesPlaced,
			Disconnected:    p.Disconnected,
		})
	}
	return rec
}

func toResult(rec MatchRecord) match.Result {
	r := match.Result{
		PoolID:    rec.PoolID,
		StartedAt: rec.StartedAt,
		EndedAt:   rec.EndedAt,
		Winner:    rec.Winner,
		Players:   make([]match.PlayerResult, 0, len(rec.Players)),
	}
	for _, p := range rec.Players {
		r.Players = append(r.Players, match.PlayerResult{
			ID:              p.PlayerID,
			Name:            p.Name,
			Placement:       p.Placement,
			LinesCleared:    p.LinesCleared,
			GarbageSent:     p.GarbageSent,
			GarbageReceived: p.GarbageReceived,
			PiecesPlaced:    p.PiecesPlaced,
			Disconnected:    p.Disconnected,
		})
	}
	return r
}
