package hub

import (
	"cmp"
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/fetris/internal/engine"
	"github.com/DoyleJ11/fetris/internal/match"
	"github.com/DoyleJ11/fetris/internal/metrics"
	"github.com/DoyleJ11/fetris/internal/pool"
	"github.com/DoyleJ11/fetris/internal/protocol"
)

const DefaultName = "Anonymous"

const (
	DefaultTick       = 500 * time.Millisecond
	DefaultResolution = 15 * time.Millisecond
)

const welcome = "Welcome to fetris! Pick a name with set_name, then ask_for_game."

var ErrAlreadyInGame = fmt.Errorf("%w: already in a game", protocol.ErrBadRequest)
var ErrAlreadyQueued = fmt.Errorf("%w: already waiting for a game", protocol.ErrBadRequest)
var ErrNotInGame = fmt.Errorf("%w: not in a game", protocol.ErrBadRequest)

type HubMsg interface{ isHubMsg() }

// Connect registers a connection. The hub owns Outbox from here on and closes it
// when the connection is dropped or the hub shuts down.
type Connect struct {
	ID     string
	Outbox chan protocol.ServerMessage
}

type Disconnect struct {
	ID string
}

type Request struct {
	ID  string
	Req protocol.ClientRequest
}

type GetSnapshot struct {
	Reply chan Snapshot
}

type ShutdownHub struct{}

func (Connect) isHubMsg()     {}
func (Disconnect) isHubMsg()  {}
func (Request) isHubMsg()     {}
func (GetSnapshot) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type PoolView struct {
	ID        string                `json:"id"`
	StartedAt time.Time             `json:"started_at"`
	Finished  bool                  `json:"finished"`
	Players   []protocol.PlayerInfo `json:"players"`
}

type Snapshot struct {
	Connected int        `json:"connected"`
	Pending   int        `json:"pending"`
	Pools     []PoolView `json:"pools"`
}

type Config struct {
	PoolSize   int
	Tick       time.Duration
	Resolution time.Duration
	Rand       engine.Rand
	OnFinish   func(match.Result)
}

type client struct {
	outbox  chan protocol.ServerMessage
	name    string
	pending bool
	pool    *pool.Pool
}

// Hub is the single simulation goroutine: it owns every connection's outbox,
// the matchmaking queue and all pools, and drives the pools' fall timers.
type Hub struct {
	inbox   chan HubMsg
	clients map[string]*client
	pending []string
	pools   map[string]*pool.Pool
	dropped []string
	cfg     Config
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, cfg Config, log *zap.Logger) *Hub {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.PoolSize < 1 {
		cfg.PoolSize = 1
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Resolution <= 0 {
		cfg.Resolution = DefaultResolution
	}

	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 256),
		clients: make(map[string]*client),
		pools:   make(map[string]*pool.Pool),
		cfg:     cfg,
		log:     log.Named("hub"),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

// Post delivers m to the hub. It reports false once the hub has stopped.
func (h *Hub) Post(m HubMsg) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.inbox <- m:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Done() <-chan struct{} { return h.done }

// Snapshot asks the hub for a view of its pools.
func (h *Hub) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if !h.Post(GetSnapshot{Reply: reply}) {
		return Snapshot{}, context.Canceled
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-h.done:
		return Snapshot{}, context.Canceled
	}
}

func (h *Hub) loop() {
	defer close(h.done)

	ticker := time.NewTicker(h.cfg.Resolution)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case now := <-ticker.C:
			for _, p := range h.pools {
				p.Update(now)
			}

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Connect:
				h.clients[msg.ID] = &client{outbox: msg.Outbox, name: DefaultName}
				metrics.ConnectedPlayers.Inc()
				h.log.Debug("player connected", zap.String("id", msg.ID))
				h.send(msg.ID, protocol.Chat("server", welcome))

			case Disconnect:
				if c, ok := h.clients[msg.ID]; ok {
					close(c.outbox)
					h.remove(msg.ID)
				}

			case Request:
				h.handleRequest(msg.ID, msg.Req)

			case GetSnapshot:
				msg.Reply <- h.snapshot()

			case ShutdownHub:
				h.shutdown()
				return
			}
		}

		h.flushDropped()
	}
}

func (h *Hub) handleRequest(id string, req protocol.ClientRequest) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		h.send(id, protocol.BadRequest(err))
		return
	}

	switch req.Type {
	case protocol.RequestSetName:
		if c.pool != nil {
			h.send(id, protocol.BadRequest(ErrAlreadyInGame))
			return
		}
		c.name = req.Name

	case protocol.RequestAskForGame:
		if c.pool != nil {
			h.send(id, protocol.BadRequest(ErrAlreadyInGame))
			return
		}
		if c.pending {
			h.send(id, protocol.BadRequest(ErrAlreadyQueued))
			return
		}
		c.pending = true
		h.pending = append(h.pending, id)
		h.matchmake()

	case protocol.RequestInput:
		if c.pool == nil {
			h.send(id, protocol.BadRequest(ErrNotInGame))
			return
		}
		if err := c.pool.HandleInput(id, req.Input, time.Now()); err != nil {
			h.send(id, protocol.BadRequest(err))
		}

	case protocol.RequestChat:
		msg := protocol.Chat(c.name, req.Text)
		switch {
		case c.pool != nil:
			c.pool.Broadcast(msg)
		case c.pending:
			for _, pid := range h.pending {
				h.send(pid, msg)
			}
		default:
			h.send(id, protocol.BadRequest(ErrNotInGame))
		}
	}
}

// matchmake seats waiting players in arrival order, PoolSize at a time.
func (h *Hub) matchmake() {
	for len(h.pending) >= h.cfg.PoolSize {
		ids := h.pending[:h.cfg.PoolSize]
		h.pending = slices.Clone(h.pending[h.cfg.PoolSize:])

		members := make([]pool.Member, 0, len(ids))
		for _, id := range ids {
			members = append(members, pool.Member{ID: id, Name: h.clients[id].name})
		}

		cfg := pool.Config{Tick: h.cfg.Tick, Rand: h.cfg.Rand, OnFinish: h.cfg.OnFinish}
		p := pool.New(uuid.NewString(), members, cfg, pool.SenderFunc(h.send), h.log, time.Now())
		h.pools[p.ID] = p
		for _, id := range ids {
			c := h.clients[id]
			c.pending = false
			c.pool = p
		}
	}
	h.updateGauges()
}

// send never blocks: a client whose outbox is full is dropped.
func (h *Hub) send(id string, msg protocol.ServerMessage) {
	c, ok := h.clients[id]
	if !ok || c.outbox == nil {
		return
	}
	select {
	case c.outbox <- msg:
	default:
		h.log.Warn("outbox full, dropping player", zap.String("id", id))
		metrics.DroppedClients.Inc()
		close(c.outbox)
		c.outbox = nil
		h.dropped = append(h.dropped, id)
	}
}

// flushDropped unseats clients dropped by send. It runs between messages so no
// pool is mid-update when a member disappears.
func (h *Hub) flushDropped() {
	for len(h.dropped) > 0 {
		id := h.dropped[0]
		h.dropped = h.dropped[1:]
		h.remove(id)
	}
}

func (h *Hub) remove(id string) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	c.outbox = nil
	metrics.ConnectedPlayers.Dec()

	if c.pending {
		h.pending = slices.DeleteFunc(h.pending, func(p string) bool { return p == id })
	}
	if c.pool != nil {
		if c.pool.Remove(id, time.Now()) {
			delete(h.pools, c.pool.ID)
			h.log.Info("pool closed", zap.String("pool", c.pool.ID))
		}
	}
	delete(h.clients, id)
	h.updateGauges()
	h.log.Debug("player disconnected", zap.String("id", id))
}

func (h *Hub) snapshot() Snapshot {
	s := Snapshot{Connected: len(h.clients), Pending: len(h.pending)}
	for _, p := range h.pools {
		s.Pools = append(s.Pools, PoolView{
			ID:        p.ID,
			StartedAt: p.Started(),
			Finished:  p.Finished(),
			Players:   p.Roster(),
		})
	}
	slices.SortFunc(s.Pools, func(a, b PoolView) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return s
}

func (h *Hub) updateGauges() {
	metrics.PendingPlayers.Set(float64(len(h.pending)))
	metrics.ActivePools.Set(float64(len(h.pools)))
}

func (h *Hub) shutdown() {
	for id, c := range h.clients {
		if c.outbox != nil {
			close(c.outbox)
		}
		delete(h.clients, id)
	}
	metrics.ConnectedPlayers.Set(0)
	clear(h.pools)
	h.pending = nil
	h.updateGauges()
	h.cancel()
}
