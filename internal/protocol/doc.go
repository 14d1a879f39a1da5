// Package protocol defines the messages exchanged between players and the server.
//
// Client -> Server
// set_name:
//   name: string (non-empty, only before joining a pool)
//
// ask_for_game: {}
//
// input:
//   input: "left" | "right" | "fast_drop" | "soft_drop" | "rotate" | "rotate_revert" | "hold" | "fall"
//
// chat:
//   text: string
//
// Server -> Client
// game_ready:
//   board: Board    // fresh board, queue filled, no active piece
//   tick_ms: number // fall interval
//
// player_list:
//   players: { name: string, dead: bool }[]
//
// action:
//   action: Action // applied to the receiving player's board, in order
//
// game_over: {}
//
// chat:
//   from: string
//   text: string
//
// bad_request:
//   error: string
//
// The TCP transport carries these as a gob stream, the WebSocket transport as
// JSON text frames.
package protocol
