package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/fetris/internal/hub"
	"github.com/DoyleJ11/fetris/internal/metrics"
	"github.com/DoyleJ11/fetris/internal/protocol"
)

type Config struct {
	OutboxSize   int
	WriteTimeout time.Duration
	// InputRate is the sustained number of input requests per second a
	// connection may send; zero disables the limit.
	InputRate  float64
	InputBurst int
}

// Server accepts player connections over TCP and bridges them to the hub with a
// reader and a writer goroutine per connection.
type Server struct {
	hub *hub.Hub
	cfg Config
	log *zap.Logger
	wg  sync.WaitGroup
}

func NewServer(h *hub.Hub, cfg Config, log *zap.Logger) *Server {
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = 64
	}
	return &Server{hub: h, cfg: cfg, log: log.Named("tcp")}
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))
	return s.Serve(ctx, ln)
}

// Serve accepts connections until ctx is cancelled, then waits for every
// connection to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer s.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	id := uuid.NewString()
	log := s.log.With(zap.String("conn", id), zap.String("remote", conn.RemoteAddr().String()))

	out := make(chan protocol.ServerMessage, s.cfg.OutboxSize)
	if !s.hub.Post(hub.Connect{ID: id, Outbox: out}) {
		conn.Close()
		return
	}
	log.Info("connected")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(ctx, conn, out, log)
	}()

	s.readPump(conn, id, log)
	s.hub.Post(hub.Disconnect{ID: id})
	conn.Close()
	<-writerDone
	log.Info("disconnected")
}

// writePump drains the outbox until the hub closes it. A failed write closes
// the connection, which ends the read pump too.
func (s *Server) writePump(ctx context.Context, conn net.Conn, out <-chan protocol.ServerMessage, log *zap.Logger) {
	defer conn.Close()
	enc := protocol.NewEncoder(conn)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.hub.Done():
			return
		case msg, ok := <-out:
			if !ok {
				return
			}
			if s.cfg.WriteTimeout > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			}
			if err := enc.WriteMessage(msg); err != nil {
				log.Debug("write failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *Server) readPump(conn net.Conn, id string, log *zap.Logger) {
	limit := rate.Inf
	if s.cfg.InputRate > 0 {
		limit = rate.Limit(s.cfg.InputRate)
	}
	limiter := rate.NewLimiter(limit, max(s.cfg.InputBurst, 1))

	dec := protocol.NewDecoder(conn)
	for {
		req, err := dec.ReadRequest()
		if err != nil {
			// a broken gob stream cannot be resynchronised, so any decode
			// error ends the connection
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug("read failed", zap.Error(err))
			}
			return
		}
		if req.Type == protocol.RequestInput && !limiter.Allow() {
			metrics.ThrottledInputs.WithLabelValues("tcp").Inc()
			continue
		}
		if !s.hub.Post(hub.Request{ID: id, Req: req}) {
			return
		}
	}
}
