package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/fetris/internal/engine"
	"github.com/DoyleJ11/fetris/internal/metrics"
	"github.com/DoyleJ11/fetris/internal/protocol"
)

var ErrNoGame = errors.New("no game in progress")

const fallResolution = 15 * time.Millisecond

const chatHistory = 50

// Client is a player's connection to the server. It predicts its own board
// from local input and the fall timer, and reconciles with the actions the
// server sends back.
type Client struct {
	conn net.Conn
	enc  *protocol.Encoder
	dec  *protocol.Decoder
	log  *zap.Logger
	rng  *rand.Rand

	// writeMu orders sends the same way as the predictions they carry.
	// Lock order: writeMu, then mu.
	writeMu sync.Mutex

	mu        sync.Mutex
	confirmed *engine.Board
	predicted *engine.Board
	queue     Queue
	tick      time.Duration
	lastFall  time.Time
	players   []protocol.PlayerInfo
	chat      []protocol.ServerMessage
	gameOver  bool

	ready     chan struct{}
	readyOnce sync.Once
}

func Dial(ctx context.Context, addr string, log *zap.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn, log), nil
}

func New(conn net.Conn, log *zap.Logger) *Client {
	return &Client{
		conn:  conn,
		enc:   protocol.NewEncoder(conn),
		dec:   protocol.NewDecoder(conn),
		log:   log.Named("client"),
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		ready: make(chan struct{}),
	}
}

func (c *Client) SetName(name string) error {
	return c.send(protocol.ClientRequest{Type: protocol.RequestSetName, Name: name})
}

func (c *Client) AskForGame() error {
	return c.send(protocol.ClientRequest{Type: protocol.RequestAskForGame})
}

func (c *Client) Say(text string) error {
	return c.send(protocol.ClientRequest{Type: protocol.RequestChat, Text: text})
}

// Input predicts in on the local board and forwards it to the server.
func (c *Client) Input(in engine.Input) error {
	a, ok := engine.ActionFor(in)
	if !ok {
		return fmt.Errorf("%w: unknown input %q", protocol.ErrBadRequest, in)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if c.predicted == nil {
		c.mu.Unlock()
		return ErrNoGame
	}
	c.predict(a, time.Now())
	c.mu.Unlock()

	return c.write(protocol.ClientRequest{Type: protocol.RequestInput, Input: in})
}

// Run receives server messages and drives the local fall timer until ctx is
// cancelled or the connection fails.
func (c *Client) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	g.Go(func() error {
		for {
			msg, err := c.dec.ReadMessage()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
					return io.EOF
				}
				return err
			}
			c.receive(msg)
		}
	})
	g.Go(func() error {
		ticker := time.NewTicker(fallResolution)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				c.fall(now)
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Ready is closed once the first game_ready arrives.
func (c *Client) Ready() <-chan struct{} { return c.ready }

// Board returns a copy of the predicted board, or nil before a game starts.
func (c *Client) Board() *engine.Board {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.predicted == nil {
		return nil
	}
	return c.predicted.Clone()
}

// Confirmed returns a copy of the board as last confirmed by the server.
func (c *Client) Confirmed() *engine.Board {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.confirmed == nil {
		return nil
	}
	return c.confirmed.Clone()
}

func (c *Client) Players() []protocol.PlayerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.PlayerInfo(nil), c.players...)
}

func (c *Client) Chat() []protocol.ServerMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.ServerMessage(nil), c.chat...)
}

func (c *Client) GameOver() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameOver
}

// fall predicts a Fall once the timer has elapsed. Falls are not sent: the
// server runs the same timer and its Fall confirms this one.
func (c *Client) fall(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.predicted == nil || c.gameOver || now.Sub(c.lastFall) < c.tick {
		return
	}
	c.predict(engine.FallAction(), now)
}

// predict must be called with mu held.
func (c *Client) predict(a engine.Action, now time.Time) {
	if c.gameOver {
		return
	}
	res, err := engine.Apply(c.predicted, a)
	if err == nil {
		c.queue.PushLocal(a)
	}
	if engine.ResetsTimer(err) {
		c.lastFall = now
	}
	if engine.NeedsPiece(res, err) {
		// the server picks the real type; the replica's own bag gives a
		// guess that is exact whenever one piece is left in it
		spawn := engine.NewPieceAction(c.predicted.Bag.Draw(c.rng))
		_, _ = engine.Apply(c.predicted, spawn)
		c.queue.PushLocal(spawn)
	}
}

func (c *Client) receive(msg protocol.ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Type {
	case protocol.MsgGameReady:
		if msg.Board == nil {
			c.log.Warn("game_ready without a board")
			return
		}
		c.confirmed = msg.Board
		c.predicted = msg.Board.Clone()
		c.queue.Reset()
		c.tick = msg.Tick()
		c.gameOver = false
		c.players = nil
		// the first Fall finds no piece and predicts the spawn
		c.predict(engine.FallAction(), time.Now())
		c.readyOnce.Do(func() { close(c.ready) })

	case protocol.MsgAction:
		if c.confirmed == nil || msg.Action == nil {
			return
		}
		a := *msg.Action
		if _, err := apply(c.confirmed, a); err != nil {
			c.log.Debug("server action rejected by replica", zap.String("kind", string(a.Kind)), zap.Error(err))
		}
		if state := c.queue.Confirm(a); state == NeedResync {
			metrics.Resyncs.Inc()
			c.log.Debug("prediction discarded", zap.String("kind", string(a.Kind)))
			c.lastFall = time.Now()
		}
		c.predicted = c.queue.Predict(c.confirmed)

	case protocol.MsgPlayerList:
		c.players = msg.Players

	case protocol.MsgGameOver:
		c.gameOver = true

	case protocol.MsgChat:
		c.chat = append(c.chat, msg)
		if len(c.chat) > chatHistory {
			c.chat = c.chat[len(c.chat)-chatHistory:]
		}

	case protocol.MsgBadRequest:
		c.log.Warn("server rejected request", zap.String("error", msg.Error))
	}
}

func (c *Client) send(req protocol.ClientRequest) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.write(req)
}

// write must be called with writeMu held.
func (c *Client) write(req protocol.ClientRequest) error {
	return c.enc.WriteRequest(req)
}
