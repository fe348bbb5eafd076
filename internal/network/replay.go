package network

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MRamiBalles/PokeArena/server/internal/events"
	apperrors "github.com/MRamiBalles/PokeArena/server/internal/platform/errors"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/logger"
)

// EventSource returns the retained events of one battle.
type EventSource interface {
	Replay(battleID string) ([]events.BattleEvent, error)
}

// ReplayHandler serves the event history of a battle, turn by turn.
type ReplayHandler struct {
	source EventSource
	logger *logger.Logger
}

// NewReplayHandler creates a new replay handler.
func NewReplayHandler(source EventSource, log *logger.Logger) *ReplayHandler {
	return &ReplayHandler{source: source, logger: log}
}

// ReplayEvent is an event as shown to the trainer.
type ReplayEvent struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Turn      int             `json:"turn"`
	Type      string          `json:"type"`
	Summary   string          `json:"summary"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ReplayResponse is the API response for a replay.
type ReplayResponse struct {
	BattleID    string        `json:"battle_id"`
	TotalEvents int           `json:"total_events"`
	FilteredBy  string        `json:"filtered_by,omitempty"`
	GeneratedAt string        `json:"generated_at"`
	Events      []ReplayEvent `json:"events"`
}

// HandleReplay returns the replay of a battle the trainer took part in.
// GET /api/battles/interactive/{id}/replay?type=TURN_RESOLVED
func (rh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request, trainerID int) {
	battleID := r.PathValue("id")
	all, err := rh.source.Replay(battleID)
	if err != nil {
		writeReplayError(w, err)
		return
	}

	owned := false
	for _, e := range all {
		if e.ActorID == trainerID {
			owned = true
			break
		}
	}
	if !owned {
		writeReplayError(w, apperrors.NotFound("battle not found"))
		return
	}

	eventType := r.URL.Query().Get("type")
	replayEvents := make([]ReplayEvent, 0, len(all))
	for _, e := range all {
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		replayEvents = append(replayEvents, convertToReplayEvent(e))
	}

	response := ReplayResponse{
		BattleID:    battleID,
		TotalEvents: len(replayEvents),
		FilteredBy:  eventType,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      replayEvents,
	}

	rh.logger.Event("REPLAY", strconv.Itoa(trainerID), "Battle:"+battleID+" Events:"+strconv.Itoa(len(replayEvents)))
	writeJSON(w, http.StatusOK, response)
}

func writeReplayError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	writeEnvelope(w, code.HTTPStatus(), envelope{Success: false, Message: publicMessage(err), Code: string(code)})
}

func convertToReplayEvent(e events.BattleEvent) ReplayEvent {
	var payload json.RawMessage
	if e.Payload != nil {
		if raw, ok := e.Payload.(json.RawMessage); ok {
			payload = raw
		} else if b, err := json.Marshal(e.Payload); err == nil {
			payload = b
		}
	}
	return ReplayEvent{
		ID:        e.ID,
		Timestamp: e.Timestamp.Format("15:04:05"),
		Turn:      e.Turn,
		Type:      string(e.Type),
		Summary:   summarizeEvent(e),
		Payload:   payload,
	}
}

// summarizeEvent creates a human-readable summary.
func summarizeEvent(e events.BattleEvent) string {
	switch e.Type {
	case events.EventTypeBattleStarted:
		return "The battle started."
	case events.EventTypeTurnResolved:
		return fmt.Sprintf("Turn %d was resolved.", e.Turn)
	case events.EventTypeCombatantSwitched:
		return "A combatant was switched in."
	case events.EventTypeBattleFled:
		return "The trainer fled."
	case events.EventTypeBattleFinished:
		return "The battle is over."
	case events.EventTypeGhostBattleResolved:
		return "An offline battle was resolved."
	case events.EventTypeHackTriggered:
		return "A hack challenge was triggered."
	case events.EventTypeHackSubmitted:
		return "A hack answer was submitted."
	case events.EventTypeSessionEvicted:
		return "The session expired."
	default:
		return "Something happened..."
	}
}
