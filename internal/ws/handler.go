package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
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
	InputRate    float64
	InputBurst   int
	// OriginPatterns loosens the same-origin check, e.g. "localhost:*" in dev.
	OriginPatterns []string
}

// Handler speaks the game protocol as JSON text frames, one message per frame.
func Handler(h *hub.Hub, cfg Config, log *zap.Logger) http.HandlerFunc {
	log = log.Named("ws")
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 3 * time.Second
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: cfg.OriginPatterns,
		})
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(4096)

		clientID := uuid.NewString()
		out := make(chan protocol.ServerMessage, cfg.OutboxSize)
		if !h.Post(hub.Connect{ID: clientID, Outbox: out}) {
			conn.Close(websocket.StatusTryAgainLater, "shutting down")
			return
		}
		defer h.Post(hub.Disconnect{ID: clientID})

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case msg, ok := <-out:
					if !ok {
						// dropped as too slow, or the hub shut down
						conn.Close(websocket.StatusGoingAway, "closed by server")
						return
					}
					ctx, cancel := context.WithTimeout(writeCtx, cfg.WriteTimeout)
					err := wsjson.Write(ctx, conn, msg)
					cancel()
					if err != nil {
						conn.CloseNow()
						return
					}
				}
			}
		}()

		limit := rate.Inf
		if cfg.InputRate > 0 {
			limit = rate.Limit(cfg.InputRate)
		}
		limiter := rate.NewLimiter(limit, max(cfg.InputBurst, 1))

		// Reader loop
		for {
			typ, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read failed", zap.String("conn", clientID), zap.Error(err))
				}
				return
			}
			if typ != websocket.MessageText {
				h.Post(hub.Request{ID: clientID, Req: protocol.ClientRequest{}})
				continue
			}

			var req protocol.ClientRequest
			if err := json.Unmarshal(data, &req); err != nil {
				ctx, cancel := context.WithTimeout(r.Context(), cfg.WriteTimeout)
				_ = wsjson.Write(ctx, conn, protocol.BadRequest(fmt.Errorf("%w: bad json", protocol.ErrBadRequest)))
				cancel()
				continue
			}

			if req.Type == protocol.RequestInput && !limiter.Allow() {
				metrics.ThrottledInputs.WithLabelValues("ws").Inc()
				continue
			}
			if !h.Post(hub.Request{ID: clientID, Req: req}) {
				return
			}
		}
	}
}
