// Package network exposes the arena over HTTP and WebSocket.
package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/PokeArena/server/internal/domain/battle"
	"github.com/MRamiBalles/PokeArena/server/internal/engine"
	apperrors "github.com/MRamiBalles/PokeArena/server/internal/platform/errors"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/logger"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/metrics"
)

// TrainerHeader carries the caller's identity. Authentication happens upstream.
const TrainerHeader = "X-Trainer-ID"

const maxBodyBytes = 1 << 16

// HistoryReader serves a trainer's past battles.
type HistoryReader interface {
	Entries(ctx context.Context, userID, limit int) ([]battle.HistoryEntry, error)
	Stats(ctx context.Context, userID int) (battle.Stats, error)
}

// API wires the HTTP routes onto the engine.
type API struct {
	engine   *engine.Engine
	history  HistoryReader
	hub      *Hub
	replay   *ReplayHandler
	logger   *logger.Logger
	metrics  *metrics.Collector
	upgrader websocket.Upgrader
}

// NewAPI creates the HTTP surface.
func NewAPI(eng *engine.Engine, history HistoryReader, hub *Hub, log *logger.Logger, m *metrics.Collector) *API {
	if m == nil {
		m = metrics.Get()
	}
	return &API{
		engine:  eng,
		history: history,
		hub:     hub,
		replay:  NewReplayHandler(eng, log),
		logger:  log,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // The browser client is served from another origin
			},
		},
	}
}

// Routes returns the server's handler.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/battles/interactive", a.withTrainer(a.createInteractive))
	mux.HandleFunc("GET /api/battles/interactive/{id}", a.withTrainer(a.getInteractive))
	mux.HandleFunc("POST /api/battles/interactive/{id}/action", a.withTrainer(a.performAction))
	mux.HandleFunc("POST /api/battles/interactive/{id}/flee", a.withTrainer(a.flee))
	mux.HandleFunc("GET /api/battles/interactive/{id}/replay", a.withTrainer(a.replay.HandleReplay))
	mux.HandleFunc("POST /api/battles/ghost", a.withTrainer(a.startGhost))
	mux.HandleFunc("GET /api/battles/history", a.withTrainer(a.getHistory))
	mux.HandleFunc("GET /api/battles/stats", a.withTrainer(a.getStats))

	mux.HandleFunc("GET /api/hacks", a.withTrainer(a.listHacks))
	mux.HandleFunc("GET /api/hacks/pending", a.withTrainer(a.pendingHacks))
	mux.HandleFunc("POST /api/hacks/submit", a.withTrainer(a.submitHack))
	mux.HandleFunc("GET /api/hacks/stats", a.withTrainer(a.hackStats))

	mux.HandleFunc("GET /metrics", a.metrics.Handler())
	mux.HandleFunc("GET /metrics/prometheus", a.metrics.PrometheusHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "sessions": a.engine.Registry().Len()})
	})
	mux.HandleFunc("GET /ws", a.serveWs)

	return mux
}

// ---------------------------------------------------------
// Envelope helpers
// ---------------------------------------------------------

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	writeEnvelope(w, status, envelope{Success: true, Data: data})
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		a.logger.Errorf("request failed: %v", err)
	}
	writeEnvelope(w, status, envelope{Success: false, Message: publicMessage(err), Code: string(code)})
}

// publicMessage returns the outermost domain message. Anything else is hidden.
func publicMessage(err error) string {
	var de *apperrors.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal server error"
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperrors.Validation("invalid request body")
	}
	return nil
}

type trainerHandler func(w http.ResponseWriter, r *http.Request, trainerID int)

func (a *API) withTrainer(next trainerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.Header.Get(TrainerHeader))
		if err != nil || id <= 0 {
			writeEnvelope(w, http.StatusUnauthorized, envelope{Success: false, Message: "missing or invalid " + TrainerHeader, Code: "UNAUTHORIZED"})
			return
		}
		next(w, r, id)
	}
}

// ---------------------------------------------------------
// Battles
// ---------------------------------------------------------

type createBattleRequest struct {
	OpponentID *int   `json:"opponent_id"`
	City       string `json:"city"`
}

func (req createBattleRequest) validate() error {
	if req.OpponentID == nil || *req.OpponentID < 0 {
		return apperrors.Validation("opponent_id must be a non-negative integer, 0 for the AI")
	}
	return nil
}

type interactiveResponse struct {
	engine.SessionView
	Hack *engine.TriggeredHack `json:"hack,omitempty"`
}

func (a *API) createInteractive(w http.ResponseWriter, r *http.Request, trainerID int) {
	var req createBattleRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		a.writeError(w, err)
		return
	}

	s, hk, err := a.engine.CreateSession(r.Context(), trainerID, *req.OpponentID, req.City)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeEnvelope(w, http.StatusCreated, envelope{
		Success: true,
		Message: "Battle created",
		Data:    interactiveResponse{SessionView: s.View(), Hack: hk},
	})
}

func (a *API) getInteractive(w http.ResponseWriter, r *http.Request, trainerID int) {
	s, err := a.engine.GetSession(r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	if s.PlayerID != trainerID {
		a.writeError(w, apperrors.RuleViolation("this is not your battle"))
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

type actionRequest struct {
	Action    string `json:"action"`
	MoveIndex *int   `json:"move_index"`
	PokemonID int    `json:"pokemon_id"`
	IsForced  bool   `json:"is_forced"`
}

func (a *API) performAction(w http.ResponseWriter, r *http.Request, trainerID int) {
	var req actionRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeError(w, err)
		return
	}

	id := r.PathValue("id")
	var (
		s   *engine.BattleSession
		err error
	)
	switch {
	case req.Action == "attack":
		moveIndex := 0
		if req.MoveIndex != nil {
			moveIndex = *req.MoveIndex
		}
		s, err = a.engine.Attack(r.Context(), id, trainerID, moveIndex)
	case req.Action == "switch" && req.PokemonID != 0:
		s, err = a.engine.SwitchCombatant(r.Context(), id, trainerID, req.PokemonID, req.IsForced)
	default:
		err = apperrors.Validation("invalid action")
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

func (a *API) flee(w http.ResponseWriter, r *http.Request, trainerID int) {
	s, err := a.engine.Flee(r.Context(), r.PathValue("id"), trainerID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, envelope{Success: true, Message: "You fled the battle", Data: s.View()})
}

func (a *API) startGhost(w http.ResponseWriter, r *http.Request, trainerID int) {
	var req createBattleRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		a.writeError(w, err)
		return
	}

	res, err := a.engine.StartGhostBattle(r.Context(), trainerID, *req.OpponentID, req.City)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeEnvelope(w, http.StatusCreated, envelope{Success: true, Message: "Battle finished", Data: res})
}

func (a *API) getHistory(w http.ResponseWriter, r *http.Request, trainerID int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	entries, err := a.history.Entries(r.Context(), trainerID, limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) getStats(w http.ResponseWriter, r *http.Request, trainerID int) {
	stats, err := a.history.Stats(r.Context(), trainerID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ---------------------------------------------------------
// Hacks
// ---------------------------------------------------------

func (a *API) listHacks(w http.ResponseWriter, r *http.Request, _ int) {
	writeJSON(w, http.StatusOK, a.engine.Hacks().Catalog())
}

func (a *API) pendingHacks(w http.ResponseWriter, r *http.Request, trainerID int) {
	pending, err := a.engine.Hacks().Pending(r.Context(), trainerID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

type submitRequest struct {
	BattleHackID string `json:"battle_hack_id"`
	Answer       string `json:"answer"`
}

func (a *API) submitHack(w http.ResponseWriter, r *http.Request, trainerID int) {
	var req submitRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	if req.BattleHackID == "" {
		a.writeError(w, apperrors.Validation("battle_hack_id is required"))
		return
	}

	res, err := a.engine.Hacks().Submit(r.Context(), trainerID, req.BattleHackID, req.Answer)
	if err != nil {
		a.writeError(w, err)
		return
	}
	msg := "Correct answer!"
	if !res.Correct {
		msg = "Wrong answer"
	}
	writeEnvelope(w, http.StatusOK, envelope{Success: true, Message: msg, Data: res})
}

func (a *API) hackStats(w http.ResponseWriter, r *http.Request, trainerID int) {
	stats, err := a.engine.Hacks().Stats(r.Context(), trainerID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ---------------------------------------------------------
// WebSocket
// ---------------------------------------------------------

// serveWs upgrades a watcher of one battle. The trainer header is optional
// here; clients without it must name themselves in every action.
func (a *API) serveWs(w http.ResponseWriter, r *http.Request) {
	battleID := r.URL.Query().Get("battle_id")
	if battleID == "" {
		a.writeError(w, apperrors.Validation("battle_id is required"))
		return
	}
	if a.hub.Full() {
		writeEnvelope(w, http.StatusServiceUnavailable, envelope{Success: false, Message: "too many connections"})
		return
	}
	trainerID, _ := strconv.Atoi(r.Header.Get(TrainerHeader))

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warnf("Failed to upgrade websocket connection: %v", err)
		a.metrics.RecordWSError()
		return
	}

	client := NewClient(a.hub, conn, battleID, trainerID)
	if !a.hub.Register(client) {
		conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump()
}
