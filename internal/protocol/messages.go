package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/DoyleJ11/fetris/internal/engine"
)

var ErrBadRequest = errors.New("bad request")

type RequestType string

const (
	RequestSetName    RequestType = "set_name"
	RequestAskForGame RequestType = "ask_for_game"
	RequestInput      RequestType = "input"
	RequestChat       RequestType = "chat"
)

type ClientRequest struct {
	Type  RequestType  `json:"type"`
	Name  string       `json:"name,omitempty"`
	Input engine.Input `json:"input,omitempty"`
	Text  string       `json:"text,omitempty"`
}

const MaxChatLength = 256

// Validate checks the request shape. Whether the request is allowed in the
// sender's current state is decided by the hub.
func (r ClientRequest) Validate() error {
	switch r.Type {
	case RequestSetName:
		if r.Name == "" {
			return fmt.Errorf("%w: empty name", ErrBadRequest)
		}
	case RequestAskForGame:
	case RequestInput:
		if _, ok := engine.ActionFor(r.Input); !ok {
			return fmt.Errorf("%w: unknown input %q", ErrBadRequest, r.Input)
		}
	case RequestChat:
		if r.Text == "" || len(r.Text) > MaxChatLength {
			return fmt.Errorf("%w: chat text must be 1-%d bytes", ErrBadRequest, MaxChatLength)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrBadRequest, r.Type)
	}
	return nil
}

type MessageType string

const (
	MsgBadRequest MessageType = "bad_request"
	MsgGameReady  MessageType = "game_ready"
	MsgPlayerList MessageType = "player_list"
	MsgAction     MessageType = "action"
	MsgGameOver   MessageType = "game_over"
	MsgChat       MessageType = "chat"
)

type PlayerInfo struct {
	Name string `json:"name"`
	Dead bool   `json:"dead"`
}

type ServerMessage struct {
	Type       MessageType    `json:"type"`
	Board      *engine.Board  `json:"board,omitempty"`
	TickMillis int64          `json:"tick_ms,omitempty"`
	Players    []PlayerInfo   `json:"players,omitempty"`
	Action     *engine.Action `json:"action,omitempty"`
	From       string         `json:"from,omitempty"`
	Text       string         `json:"text,omitempty"`
	Error      string         `json:"error,omitempty"`
}

func BadRequest(err error) ServerMessage {
	return ServerMessage{Type: MsgBadRequest, Error: err.Error()}
}

func GameReady(b *engine.Board, tick time.Duration) ServerMessage {
	return ServerMessage{Type: MsgGameReady, Board: b, TickMillis: tick.Milliseconds()}
}

func PlayerList(players []PlayerInfo) ServerMessage {
	return ServerMessage{Type: MsgPlayerList, Players: players}
}

func ActionMessage(a engine.Action) ServerMessage {
	return ServerMessage{Type: MsgAction, Action: &a}
}

func GameOver() ServerMessage {
	return ServerMessage{Type: MsgGameOver}
}

func Chat(from, text string) ServerMessage {
	return ServerMessage{Type: MsgChat, From: from, Text: text}
}

// Tick returns the fall interval carried by a game_ready message.
func (m ServerMessage) Tick() time.Duration {
	return time.Duration(m.TickMillis) * time.Millisecond
}
