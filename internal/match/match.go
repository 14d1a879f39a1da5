package match

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/fetris/internal/metrics"
)

type PlayerResult struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Placement       int    `json:"placement"`
	LinesCleared    int    `json:"lines_cleared"`
	GarbageSent     int    `json:"garbage_sent"`
	GarbageReceived int    `json:"garbage_received"`
	PiecesPlaced    int    `json:"pieces_placed"`
	Disconnected    bool   `json:"disconnected"`
}

// Result summarises a finished pool. Players are ordered by placement, winner
// first.
type Result struct {
	PoolID    string         `json:"pool_id"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
	Winner    string         `json:"winner,omitempty"`
	Players   []PlayerResult `json:"players"`
}

type Recorder interface {
	Record(ctx context.Context, r Result) error
}

type RecorderFunc func(ctx context.Context, r Result) error

func (f RecorderFunc) Record(ctx context.Context, r Result) error { return f(ctx, r) }

// Dispatcher hands finished matches to recorders off the simulation goroutine.
type Dispatcher struct {
	results   chan Result
	recorders []Recorder
	timeout   time.Duration
	log       *zap.Logger
}

func NewDispatcher(log *zap.Logger, timeout time.Duration, recorders ...Recorder) *Dispatcher {
	return &Dispatcher{
		results:   make(chan Result, 64),
		recorders: recorders,
		timeout:   timeout,
		log:       log.Named("match"),
	}
}

// Submit queues r without blocking. A full queue drops the result.
func (d *Dispatcher) Submit(r Result) {
	metrics.MatchesFinished.Inc()
	select {
	case d.results <- r:
	default:
		d.log.Warn("result queue full, dropping match", zap.String("pool", r.PoolID))
	}
}

// Run records results until ctx is cancelled, then flushes whatever is still queued.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case r := <-d.results:
					d.record(context.Background(), r)
				default:
					return nil
				}
			}
		case r := <-d.results:
			d.record(ctx, r)
		}
	}
}

func (d *Dispatcher) record(parent context.Context, r Result) {
	ctx, cancel := context.WithTimeout(parent, d.timeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for _, rec := range d.recorders {
		g.Go(func() error {
			if err := rec.Record(ctx, r); err != nil {
				return fmt.Errorf("record %T: %w", rec, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.log.Error("recording match failed", zap.String("pool", r.PoolID), zap.Error(err))
		return
	}
	d.log.Info("match recorded",
		zap.String("pool", r.PoolID),
		zap.String("winner", r.Winner),
		zap.Int("players", len(r.Players)),
	)
}
