// internal/realtime/coordinator.go
//
// The coordinator is the game-facing side of the hub: it decodes inbound
// events, validates them, drives the game service and the presence tracker,
// and fans resulting events out to the right room.

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"zwords/internal/game"
	"zwords/internal/presence"
	"zwords/internal/store"
)

// Cursor frames arriving faster than this per connection are dropped.
const cursorMinInterval = 50 * time.Millisecond

const podiumSize = 3

// Coordinator implements Handler on top of the game service.
type Coordinator struct {
	games    *game.Service
	presence *presence.Tracker
	rooms    *Rooms
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time

	mu         sync.Mutex
	lastCursor map[string]time.Time
}

func NewCoordinator(games *game.Service, tracker *presence.Tracker, rooms *Rooms, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		games:      games,
		presence:   tracker,
		rooms:      rooms,
		validate:   validator.New(),
		log:        logger,
		now:        time.Now,
		lastCursor: make(map[string]time.Time),
	}
}

// gameStatePayload is the join snapshot plus live presence.
type gameStatePayload struct {
	*game.State
	Presence []presence.Record `json:"presence"`
}

func (co *Coordinator) HandleEvent(c *Client, e Event) {
	ctx := context.Background()
	switch e.Type {
	case EvtJoinGame:
		co.handleJoin(ctx, c, e)
	case EvtLeaveGame:
		co.handleLeave(ctx, c)
	case EvtCursorUpdate:
		co.handleCursor(c, e)
	case EvtCellInput:
		co.handleCellInput(ctx, c, e)
	case EvtChatMessage:
		co.handleChat(ctx, c, e)
	case EvtNextGrid:
		co.handleNextGrid(ctx, c)
	default:
		co.sendError(c, "unknown event type")
	}
}

func (co *Coordinator) HandleDisconnect(c *Client) {
	co.handleLeave(context.Background(), c)
	co.mu.Lock()
	delete(co.lastCursor, c.ID)
	co.mu.Unlock()
}

func (co *Coordinator) handleJoin(ctx context.Context, c *Client, e Event) {
	var p JoinGamePayload
	if !co.decode(c, e, &p) {
		return
	}

	g, player, err := co.games.Join(ctx, p.Code, p.Pseudo, p.Color)
	if err != nil {
		co.sendError(c, joinErrorMessage(err))
		return
	}

	// A connection can only sit in one room.
	if oldCode, _, ok := co.presence.Identity(c.ID); ok {
		co.handleLeaveRoom(ctx, c, oldCode)
	}
	rec := co.presence.Join(c.ID, g.Code, player.Pseudo, player.Color)
	co.rooms.Join(g.Code, c)

	st, err := co.games.Snapshot(ctx, g.Code)
	if err != nil {
		co.sendError(c, "failed to load game state")
		co.log.Error().Err(err).Str("code", g.Code).Msg("snapshot failed")
		return
	}
	co.send(c, EvtGameState, gameStatePayload{State: st, Presence: co.presence.List(g.Code)})

	co.broadcastExcept(g.Code, c, EvtPresenceUpdate, presencePayload(rec))
	// The joiner already has this line in the snapshot's message history.
	co.broadcastExcept(g.Code, c, EvtMessageBroadcast, store.Message{
		Type:      store.MsgJoin,
		Pseudo:    player.Pseudo,
		Color:     player.Color,
		Content:   player.Pseudo + " joined the game",
		CreatedAt: co.now().UTC(),
	})
	co.log.Info().Str("code", g.Code).Str("pseudo", player.Pseudo).Msg("player joined")
}

func (co *Coordinator) handleLeave(ctx context.Context, c *Client) {
	code, _, ok := co.presence.Identity(c.ID)
	if !ok {
		return
	}
	co.handleLeaveRoom(ctx, c, code)
}

func (co *Coordinator) handleLeaveRoom(ctx context.Context, c *Client, code string) {
	leftCode, pseudo, last := co.presence.Leave(c.ID)
	if leftCode == "" {
		return
	}
	co.rooms.Leave(code, c)
	if !last {
		return
	}
	co.games.RecordLeave(ctx, leftCode, pseudo)
	co.broadcast(leftCode, EvtPresenceRemove, PresenceRemovePayload{Pseudo: pseudo})
	co.broadcast(leftCode, EvtMessageBroadcast, store.Message{
		Type:      store.MsgLeave,
		Pseudo:    pseudo,
		Content:   pseudo + " left the game",
		CreatedAt: co.now().UTC(),
	})
	co.log.Info().Str("code", leftCode).Str("pseudo", pseudo).Msg("player left")
}

func (co *Coordinator) handleCursor(c *Client, e Event) {
	// Server-side guard behind the client-side rate limit.
	now := co.now()
	co.mu.Lock()
	if last, ok := co.lastCursor[c.ID]; ok && now.Sub(last) < cursorMinInterval {
		co.mu.Unlock()
		return
	}
	co.lastCursor[c.ID] = now
	co.mu.Unlock()

	var p CursorPayload
	if !co.decode(c, e, &p) {
		return
	}
	rec, code, ok := co.presence.UpdateCursor(c.ID, presence.Cursor{
		Row: p.Row, Col: p.Col, Direction: p.Direction, EntryID: p.EntryID,
	})
	if !ok {
		return
	}
	co.broadcastExcept(code, c, EvtPresenceUpdate, presencePayload(rec))
}

func (co *Coordinator) handleCellInput(ctx context.Context, c *Client, e Event) {
	var p CellInputPayload
	if !co.decode(c, e, &p) {
		return
	}
	code, pseudo, ok := co.presence.Identity(c.ID)
	if !ok {
		co.sendError(c, "join a game first")
		return
	}

	res, err := co.games.ApplyCellEdit(ctx, code, pseudo, p.Row, p.Col, p.Value)
	if err != nil {
		co.sendError(c, editErrorMessage(err))
		return
	}

	co.broadcast(code, EvtCellUpdate, CellUpdatePayload{
		Row: res.Row, Col: res.Col, Value: res.Value, Pseudo: res.Pseudo,
	})
	for _, o := range res.Outcomes {
		switch o.Kind {
		case game.OutcomeClaimed:
			co.broadcast(code, EvtEntryClaimed, EntryClaimedPayload{
				EntryID: string(o.EntryID), Pseudo: o.Pseudo, Color: o.Color, Word: o.Word,
			})
			co.broadcast(code, EvtMessageBroadcast, store.Message{
				Type:      store.MsgSuccess,
				Pseudo:    o.Pseudo,
				Color:     o.Color,
				Content:   o.Pseudo + " found " + o.Word,
				CreatedAt: co.now().UTC(),
			})
		case game.OutcomeIncorrect:
			co.broadcast(code, EvtEntryIncorrect, EntryIncorrectPayload{
				EntryID: string(o.EntryID), Cells: o.Cells,
			})
			co.broadcast(code, EvtMessageBroadcast, store.Message{
				Type:      store.MsgFail,
				Pseudo:    o.Pseudo,
				Color:     o.Color,
				Content:   o.Pseudo + " tried a wrong word",
				CreatedAt: co.now().UTC(),
			})
		}
	}
	if res.Scoreboard != nil {
		co.broadcast(code, EvtScoreboardUpdate, ScoreboardPayload{Scores: res.Scoreboard})
	}
	if res.GridComplete {
		podium := res.FinalScores
		if len(podium) > podiumSize {
			podium = podium[:podiumSize]
		}
		co.broadcast(code, EvtGridCompleted, GridCompletedPayload{
			FinalScores: res.FinalScores,
			Podium:      podium,
		})
	}
}

func (co *Coordinator) handleChat(ctx context.Context, c *Client, e Event) {
	var p ChatPayload
	if !co.decode(c, e, &p) {
		return
	}
	code, pseudo, ok := co.presence.Identity(c.ID)
	if !ok {
		co.sendError(c, "join a game first")
		return
	}
	msg, err := co.games.Chat(ctx, code, pseudo, p.Content)
	if err != nil {
		if errors.Is(err, game.ErrMessageInvalid) {
			co.sendError(c, "message is empty or too long")
		} else {
			co.sendError(c, "failed to send message")
		}
		return
	}
	co.broadcast(code, EvtMessageBroadcast, msg)
}

func (co *Coordinator) handleNextGrid(ctx context.Context, c *Client) {
	code, pseudo, ok := co.presence.Identity(c.ID)
	if !ok {
		co.sendError(c, "join a game first")
		return
	}
	next, err := co.games.NextGrid(ctx, code, pseudo)
	if err != nil {
		if errors.Is(err, game.ErrNotOwner) {
			co.sendError(c, "only the owner can start the next grid")
		} else {
			co.sendError(c, "failed to start the next grid")
			co.log.Error().Err(err).Str("code", code).Msg("next grid failed")
		}
		return
	}
	co.broadcast(code, EvtGridNext, GridNextPayload{Crossword: next.Layout.Public()})
	co.broadcast(code, EvtMessageBroadcast, store.Message{
		Type:      store.MsgNext,
		Pseudo:    pseudo,
		Content:   pseudo + " started a new grid",
		CreatedAt: co.now().UTC(),
	})
}

// decode unmarshals and validates a payload, reporting failures to the
// client. It returns false when the event should not be processed.
func (co *Coordinator) decode(c *Client, e Event, out any) bool {
	if len(e.Payload) == 0 {
		co.sendError(c, "missing payload")
		return false
	}
	if err := json.Unmarshal(e.Payload, out); err != nil {
		co.sendError(c, "malformed payload")
		return false
	}
	if err := co.validate.Struct(out); err != nil {
		co.sendError(c, "invalid payload: "+err.Error())
		return false
	}
	return true
}

func (co *Coordinator) send(c *Client, typ string, payload any) {
	e, err := NewEvent(typ, payload)
	if err != nil {
		co.log.Error().Err(err).Str("type", typ).Msg("event marshal failed")
		return
	}
	c.Send(e)
}

func (co *Coordinator) sendError(c *Client, msg string) {
	co.send(c, EvtError, ErrorPayload{Message: msg})
}

func (co *Coordinator) broadcast(room, typ string, payload any) {
	e, err := NewEvent(typ, payload)
	if err != nil {
		co.log.Error().Err(err).Str("type", typ).Msg("event marshal failed")
		return
	}
	co.rooms.Broadcast(room, e)
}

func (co *Coordinator) broadcastExcept(room string, except *Client, typ string, payload any) {
	e, err := NewEvent(typ, payload)
	if err != nil {
		co.log.Error().Err(err).Str("type", typ).Msg("event marshal failed")
		return
	}
	co.rooms.BroadcastExcept(room, except, e)
}

func presencePayload(rec presence.Record) PresencePayload {
	p := PresencePayload{Pseudo: rec.Pseudo, Color: rec.Color}
	if rec.Cursor != nil {
		p.Row = rec.Cursor.Row
		p.Col = rec.Cursor.Col
		p.Direction = rec.Cursor.Direction
		p.EntryID = rec.Cursor.EntryID
	}
	return p
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "game not found"
	case errors.Is(err, game.ErrGameEnded):
		return "this game has ended"
	default:
		return "failed to join game"
	}
}

func editErrorMessage(err error) string {
	switch {
	case errors.Is(err, game.ErrCellNotEditable):
		return "this cell cannot be edited"
	case errors.Is(err, game.ErrCellLocked):
		return "this cell is locked"
	case errors.Is(err, game.ErrBadValue):
		return "cell value must be a single letter"
	case errors.Is(err, store.ErrNotFound):
		return "game not found"
	default:
		return "failed to apply cell edit"
	}
}
