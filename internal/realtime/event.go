// internal/realtime/event.go
//
// Wire format of the realtime surface. Everything is a typed envelope with
// a raw payload so the hub can route without decoding and handlers decode
// exactly the payload they expect.

package realtime

import (
	"encoding/json"

	"zwords/internal/grid"
	"zwords/internal/store"
)

// Event is the envelope of every websocket frame, both directions.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals a payload into an envelope.
func NewEvent(typ string, payload any) (Event, error) {
	if payload == nil {
		return Event{Type: typ}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, Payload: raw}, nil
}

// Inbound event types (client to server).
const (
	EvtJoinGame     = "join_game"
	EvtLeaveGame    = "leave_game"
	EvtCursorUpdate = "cursor_update"
	EvtCellInput    = "cell_input"
	EvtChatMessage  = "chat_message"
	EvtNextGrid     = "next_grid"
)

// Outbound event types (server to client).
const (
	EvtGameState        = "game_state"
	EvtCellUpdate       = "cell_update"
	EvtPresenceUpdate   = "presence_update"
	EvtPresenceRemove   = "presence_remove"
	EvtEntryClaimed     = "entry_claimed"
	EvtEntryIncorrect   = "entry_incorrect"
	EvtScoreboardUpdate = "scoreboard_update"
	EvtMessageBroadcast = "message_broadcast"
	EvtGridCompleted    = "grid_completed"
	EvtGridNext         = "grid_next"
	EvtError            = "error"
)

// Inbound payloads.

type JoinGamePayload struct {
	Code   string `json:"code" validate:"required,len=4,alphanum"`
	Pseudo string `json:"pseudo" validate:"required,min=1,max=50"`
	Color  string `json:"color" validate:"omitempty,len=7,hexcolor"`
}

type CursorPayload struct {
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	Direction string `json:"direction,omitempty"`
	EntryID   string `json:"entryId,omitempty"`
}

type CellInputPayload struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Value string `json:"value" validate:"max=1"`
}

type ChatPayload struct {
	Content string `json:"content" validate:"required,max=500"`
}

// Outbound payloads.

type CellUpdatePayload struct {
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Value  string `json:"value"`
	Pseudo string `json:"pseudo"`
}

type PresencePayload struct {
	Pseudo    string `json:"pseudo"`
	Color     string `json:"color"`
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	Direction string `json:"direction,omitempty"`
	EntryID   string `json:"entryId,omitempty"`
}

type PresenceRemovePayload struct {
	Pseudo string `json:"pseudo"`
}

type EntryClaimedPayload struct {
	EntryID string `json:"entryId"`
	Pseudo  string `json:"pseudo"`
	Color   string `json:"color"`
	Word    string `json:"word"`
}

type EntryIncorrectPayload struct {
	EntryID string     `json:"entryId"`
	Cells   []grid.Pos `json:"cells"`
}

type ScoreboardPayload struct {
	Scores []store.Score `json:"scores"`
}

type GridCompletedPayload struct {
	FinalScores []store.Score `json:"finalScores"`
	Podium      []store.Score `json:"podium"`
}

type GridNextPayload struct {
	Crossword grid.PublicGrid `json:"crossword"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
