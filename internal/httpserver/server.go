// internal/httpserver/server.go
//
// HTTP wiring for the arrowword server.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Game endpoints under /api/games: create, join, snapshot, next grid,
//     delete, history.
//   - Websocket upgrade on /ws (outside the request timeout).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled.
//   - Game semantics live in the game service; handlers only decode,
//     validate and translate errors to status codes.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"zwords/internal/game"
	"zwords/internal/realtime"
	"zwords/internal/store"
)

// Server bundles the router, the game service, and the realtime hub.
type Server struct {
	r        *chi.Mux
	games    *game.Service
	hub      *realtime.Hub
	rooms    *realtime.Rooms
	validate *validator.Validate
}

// New constructs a Server, installs middleware, and registers routes.
func New(games *game.Service, hub *realtime.Hub, rooms *realtime.Rooms) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		games:    games,
		hub:      hub,
		rooms:    rooms,
		validate: validator.New(),
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(corsFromEnv)     // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"zwords","endpoints":["/health","/ws","POST /api/games","POST /api/games/join"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// Websocket upgrade sits outside the timeout middleware: the connection
	// is long-lived.
	s.r.Get("/ws", s.hub.ServeWS)

	// REST surface.
	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses

		r.Route("/api/games", func(r chi.Router) {
			r.Get("/", s.handleListGames)
			r.Post("/", s.handleCreateGame)
			r.Post("/join", s.handleJoinGame)
			r.Get("/{code}", s.handleSnapshot)
			r.Post("/{code}/next", s.handleNextGrid)
			r.Delete("/{code}", s.handleDeleteGame)
			r.Get("/{code}/history", s.handleHistory)
		})
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv enables credentialed CORS for a single origin.
// Uses CLIENT_ORIGIN env var; defaults to http://localhost:5173.
func corsFromEnv(next http.Handler) http.Handler {
	origin := os.Getenv("CLIENT_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------- games -------------------------------------

type createGameReq struct {
	OwnerPseudo string `json:"ownerPseudo" validate:"required,min=1,max=50"`
	Theme       string `json:"theme" validate:"max=50"`
	Difficulty  string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Size        int    `json:"size" validate:"omitempty,min=8,max=20"`
}

type createGameRes struct {
	GameID      string `json:"gameId"`
	Code        string `json:"code"`
	OwnerPseudo string `json:"ownerPseudo"`
}

// handleCreateGame generates the first grid and registers the session. A
// generation failure blocks creation.
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameReq
	if !s.decodeBody(w, r, &req) {
		return
	}
	g, _, err := s.games.CreateGame(r.Context(), game.CreateParams{
		OwnerPseudo: req.OwnerPseudo,
		Theme:       req.Theme,
		Difficulty:  req.Difficulty,
		Size:        req.Size,
	})
	if err != nil {
		log.Error().Err(err).Msg("create game")
		http.Error(w, `{"error":"create_failed"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createGameRes{GameID: g.ID, Code: g.Code, OwnerPseudo: g.OwnerPseudo})
}

type joinGameReq struct {
	Code   string `json:"code" validate:"required,len=4,alphanum"`
	Pseudo string `json:"pseudo" validate:"required,min=1,max=50"`
	Color  string `json:"color" validate:"omitempty,len=7,hexcolor"`
}

// handleJoinGame upserts the player into the session. The realtime join
// happens separately over /ws; this endpoint lets clients validate a code
// before opening the socket.
func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	var req joinGameReq
	if !s.decodeBody(w, r, &req) {
		return
	}
	g, p, err := s.games.Join(r.Context(), req.Code, req.Pseudo, req.Color)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, `{"error":"game_not_found"}`, http.StatusNotFound)
		case errors.Is(err, game.ErrGameEnded):
			http.Error(w, `{"error":"game_ended"}`, http.StatusBadRequest)
		default:
			log.Error().Err(err).Str("code", req.Code).Msg("join game")
			http.Error(w, `{"error":"join_failed"}`, http.StatusInternalServerError)
		}
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"game": g, "player": p})
}

// handleListGames lists active sessions with player counts.
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.games.ListGames(r.Context())
	if err != nil {
		http.Error(w, `{"error":"list_failed"}`, http.StatusInternalServerError)
		return
	}
	if games == nil {
		games = []store.GameSummary{}
	}
	_ = json.NewEncoder(w).Encode(games)
}

// handleSnapshot returns the full current state of a session, answers
// stripped.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	st, err := s.games.Snapshot(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"game_not_found"}`, http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("code", code).Msg("snapshot")
		http.Error(w, `{"error":"snapshot_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(st)
}

type ownerReq struct {
	OwnerPseudo string `json:"ownerPseudo" validate:"required,min=1,max=50"`
}

// handleNextGrid rotates to a fresh grid and notifies the room over the
// realtime surface as well, so socket players follow along.
func (s *Server) handleNextGrid(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req ownerReq
	if !s.decodeBody(w, r, &req) {
		return
	}
	next, err := s.games.NextGrid(r.Context(), code, req.OwnerPseudo)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, `{"error":"game_not_found"}`, http.StatusNotFound)
		case errors.Is(err, game.ErrNotOwner):
			http.Error(w, `{"error":"not_owner"}`, http.StatusForbidden)
		default:
			log.Error().Err(err).Str("code", code).Msg("next grid")
			http.Error(w, `{"error":"next_failed"}`, http.StatusInternalServerError)
		}
		return
	}
	// Rooms are keyed by the canonical uppercase code.
	s.broadcast(strings.ToUpper(code), realtime.EvtGridNext, realtime.GridNextPayload{Crossword: next.Layout.Public()})
	_ = json.NewEncoder(w).Encode(map[string]any{"gridId": next.ID, "indexNumber": next.Index, "crossword": next.Layout.Public()})
}

// handleDeleteGame removes a session entirely. Owner-only.
func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req ownerReq
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.games.DeleteGame(r.Context(), code, req.OwnerPseudo); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, `{"error":"game_not_found"}`, http.StatusNotFound)
		case errors.Is(err, game.ErrNotOwner):
			http.Error(w, `{"error":"not_owner"}`, http.StatusForbidden)
		default:
			http.Error(w, `{"error":"delete_failed"}`, http.StatusInternalServerError)
		}
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// handleHistory returns the archived grids of a session with their final
// cells and scores.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	grids, err := s.games.History(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"game_not_found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"history_failed"}`, http.StatusInternalServerError)
		return
	}

	type historyRow struct {
		GridID      string            `json:"gridId"`
		IndexNumber int               `json:"indexNumber"`
		FinalCells  map[string]string `json:"finalCells"`
		FinalScores []store.Score     `json:"finalScores"`
		CompletedAt *time.Time        `json:"completedAt"`
	}
	out := make([]historyRow, 0, len(grids))
	for _, g := range grids {
		out = append(out, historyRow{
			GridID:      g.ID,
			IndexNumber: g.Index,
			FinalCells:  g.FinalCells,
			FinalScores: g.FinalScores,
			CompletedAt: g.CompletedAt,
		})
	}
	_ = json.NewEncoder(w).Encode(out)
}

// ------------------------------ helpers ------------------------------------

// decodeBody unmarshals and validates a JSON body, writing a 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(out); err != nil {
		http.Error(w, `{"error":"invalid_input"}`, http.StatusBadRequest)
		return false
	}
	return true
}

// broadcast pushes an event to the game's realtime room, best effort.
func (s *Server) broadcast(code string, typ string, payload any) {
	if s.rooms == nil {
		return
	}
	e, err := realtime.NewEvent(typ, payload)
	if err != nil {
		log.Error().Err(err).Str("type", typ).Msg("event marshal failed")
		return
	}
	s.rooms.Broadcast(code, e)
}
