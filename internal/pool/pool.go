package pool

import (
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/fetris/internal/engine"
	"github.com/DoyleJ11/fetris/internal/match"
	"github.com/DoyleJ11/fetris/internal/metrics"
	"github.com/DoyleJ11/fetris/internal/protocol"
)

var ErrNotMember = errors.New("not a member of this pool")
var ErrUnknownInput = errors.New("unknown input")

// Sender delivers a message to one connection. Implementations must not block.
type Sender interface {
	Send(id string, msg protocol.ServerMessage)
}

type Member struct {
	ID   string
	Name string
}

type Config struct {
	Tick     time.Duration
	Rand     engine.Rand
	OnFinish func(match.Result)
}

type seat struct {
	id              string
	name            string
	board           *engine.Board
	lastTick        time.Time
	garbageReceived int
	dead            bool
	disconnected    bool
	placement       int
	linesCleared    int
	garbageSent     int
	piecesPlaced    int
}

// Pool is one match: a set of boards advanced by a shared scheduler. It is not
// safe for concurrent use; the hub goroutine owns every pool.
type Pool struct {
	ID string

	seats    map[string]*seat
	order    []string
	departed []*seat
	tick     time.Duration
	rng      engine.Rand
	out      Sender
	log      *zap.Logger
	onFinish func(match.Result)

	started  time.Time
	size     int
	finished bool
}

// New seats every member on a fresh board and sends each of them game_ready and
// the roster. Every timer starts expired so the first Update spawns the pieces.
func New(id string, members []Member, cfg Config, out Sender, log *zap.Logger, now time.Time) *Pool {
	p := &Pool{
		ID:       id,
		seats:    make(map[string]*seat, len(members)),
		order:    make([]string, 0, len(members)),
		tick:     cfg.Tick,
		rng:      cfg.Rand,
		out:      out,
		log:      log.Named("pool").With(zap.String("pool", id)),
		onFinish: cfg.OnFinish,
		started:  now,
		size:     len(members),
	}

	for _, m := range members {
		s := &seat{
			id:       m.ID,
			name:     m.Name,
			board:    engine.NewBoard(m.Name, p.rng),
			lastTick: now.Add(-p.tick),
		}
		p.seats[m.ID] = s
		p.order = append(p.order, m.ID)
		out.Send(m.ID, protocol.GameReady(s.board.Clone(), p.tick))
	}
	p.broadcastRoster()

	p.log.Info("pool started", zap.Int("players", len(members)))
	return p
}

// Update advances every alive board whose fall timer has elapsed.
func (p *Pool) Update(now time.Time) {
	for _, id := range p.order {
		s := p.seats[id]
		if s.dead {
			continue
		}
		if now.Sub(s.lastTick) >= p.tick {
			p.step(s, engine.FallAction(), now)
		}
	}
}

// HandleInput applies a player's input right away. Inputs from eliminated
// players are ignored.
func (p *Pool) HandleInput(id string, in engine.Input, now time.Time) error {
	s, ok := p.seats[id]
	if !ok {
		return ErrNotMember
	}
	a, ok := engine.ActionFor(in)
	if !ok {
		return ErrUnknownInput
	}
	if s.dead {
		return nil
	}
	p.step(s, a, now)
	return nil
}

// Remove takes a disconnected player out of the pool, counting it as an
// elimination if the player was still alive. It reports whether the pool is now
// empty.
func (p *Pool) Remove(id string, now time.Time) bool {
	s, ok := p.seats[id]
	if !ok {
		return len(p.seats) == 0
	}

	delete(p.seats, id)
	p.order = slices.DeleteFunc(p.order, func(o string) bool { return o == id })
	s.disconnected = true
	if !s.dead {
		p.markDead(s)
	}
	p.departed = append(p.departed, s)

	if len(p.seats) > 0 {
		p.broadcastRoster()
	}
	p.checkFinished(now)
	return len(p.seats) == 0
}

// Broadcast sends msg to every member, alive or not.
func (p *Pool) Broadcast(msg protocol.ServerMessage) {
	for _, id := range p.order {
		p.out.Send(id, msg)
	}
}

func (p *Pool) Roster() []protocol.PlayerInfo {
	players := make([]protocol.PlayerInfo, 0, len(p.order))
	for _, id := range p.order {
		s := p.seats[id]
		players = append(players, protocol.PlayerInfo{Name: s.name, Dead: s.dead})
	}
	return players
}

func (p *Pool) Members() []string {
	return slices.Clone(p.order)
}

func (p *Pool) Name(id string) string {
	if s, ok := p.seats[id]; ok {
		return s.name
	}
	return ""
}

func (p *Pool) Started() time.Time { return p.started }

func (p *Pool) Finished() bool { return p.finished }

// Board returns a copy of a member's authoritative board.
func (p *Pool) Board(id string) (*engine.Board, bool) {
	s, ok := p.seats[id]
	if !ok {
		return nil, false
	}
	return s.board.Clone(), true
}

func (p *Pool) step(s *seat, a engine.Action, now time.Time) {
	res, err := engine.Apply(s.board, a)
	if err != nil {
		var rej *engine.Rejection
		if errors.As(err, &rej) {
			metrics.ActionsRejected.WithLabelValues(rej.Reason).Inc()
		}
	} else {
		metrics.ActionsApplied.WithLabelValues(string(a.Kind)).Inc()
		p.out.Send(s.id, protocol.ActionMessage(a))
		if res.Locked {
			s.piecesPlaced++
			s.linesCleared += len(res.Cleared)
			p.routeGarbage(s, GarbageFor(len(res.Cleared), res.Immobile), now)
		}
	}

	if engine.ResetsTimer(err) {
		s.lastTick = now
	}
	if engine.NeedsPiece(res, err) {
		p.spawn(s, now)
	}
}

// spawn brings the next piece in. The action goes out even when the spawn
// position is blocked so the client's board tops out the same way.
func (p *Pool) spawn(s *seat, now time.Time) {
	next, err := s.board.SpawnNext(p.rng)
	p.out.Send(s.id, protocol.ActionMessage(engine.NewPieceAction(next)))
	if errors.Is(err, engine.ErrBlockOut) {
		p.log.Info("player topped out", zap.String("player", s.name))
		p.eliminate(s, now)
		return
	}
	metrics.ActionsApplied.WithLabelValues(string(engine.ActionNewPiece)).Inc()
}

func (p *Pool) routeGarbage(from *seat, lines int, now time.Time) {
	if lines == 0 {
		return
	}
	target := p.garbageTarget(from)
	if target == nil {
		return
	}

	a := engine.GarbageAction(lines, p.rng.IntN(engine.Width))
	if _, err := engine.Apply(target.board, a); err != nil {
		// pushed out of the grid: the receiver is topped out
		p.log.Info("player topped out by garbage", zap.String("player", target.name), zap.Int("lines", lines))
		p.eliminate(target, now)
		return
	}
	target.garbageReceived += lines
	from.garbageSent += lines
	metrics.GarbageLines.Add(float64(lines))
	p.out.Send(target.id, protocol.ActionMessage(a))
}

// garbageTarget picks the alive opponent that has received the least garbage so
// far, earliest joiner first on ties.
func (p *Pool) garbageTarget(from *seat) *seat {
	var target *seat
	for _, id := range p.order {
		s := p.seats[id]
		if s == from || s.dead {
			continue
		}
		if target == nil || s.garbageReceived < target.garbageReceived {
			target = s
		}
	}
	return target
}

func (p *Pool) eliminate(s *seat, now time.Time) {
	p.markDead(s)
	p.out.Send(s.id, protocol.GameOver())
	p.broadcastRoster()
	p.checkFinished(now)
}

func (p *Pool) markDead(s *seat) {
	s.dead = true
	s.placement = len(p.alive()) + 1
	metrics.Eliminations.Inc()
}

func (p *Pool) alive() []*seat {
	var alive []*seat
	for _, id := range p.order {
		if s := p.seats[id]; !s.dead {
			alive = append(alive, s)
		}
	}
	return alive
}

func (p *Pool) broadcastRoster() {
	p.Broadcast(protocol.PlayerList(p.Roster()))
}

// checkFinished reports the match once a single survivor is left (or, for a
// solo pool, once its player is gone). The survivor keeps playing.
func (p *Pool) checkFinished(now time.Time) {
	if p.finished {
		return
	}
	alive := p.alive()
	if p.size >= 2 && len(alive) > 1 {
		return
	}
	if p.size < 2 && len(alive) > 0 {
		return
	}

	p.finished = true
	var winner *seat
	if len(alive) == 1 {
		winner = alive[0]
		winner.placement = 1
	}
	result := p.result(winner, now)
	p.log.Info("match finished", zap.String("winner", result.Winner))
	if p.onFinish != nil {
		p.onFinish(result)
	}
}

func (p *Pool) result(winner *seat, now time.Time) match.Result {
	r := match.Result{PoolID: p.ID, StartedAt: p.started, EndedAt: now}
	if winner != nil {
		r.Winner = winner.name
	}

	all := make([]*seat, 0, len(p.order)+len(p.departed))
	for _, id := range p.order {
		all = append(all, p.seats[id])
	}
	all = append(all, p.departed...)
	slices.SortStableFunc(all, func(a, b *seat) int { return a.placement - b.placement })

	for _, s := range all {
		r.Players = append(r.Players, match.PlayerResult{
			ID:              s.id,
			Name:            s.name,
			Placement:       s.placement,
			LinesCleared:    s.linesCleared,
			GarbageSent:     s.garbageSent,
			GarbageReceived: s.garbageReceived,
			PiecesPlaced:    s.piecesPlaced,
			Disconnected:    s.disconnected,
		})
	}
	return r
}

type SenderFunc func(id string, msg protocol.ServerMessage)

func (f SenderFunc) Send(id string, msg protocol.ServerMessage) { f(id, msg) }
