package network

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/MRamiBalles/PokeArena/server/internal/platform/errors"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 1024
	// Time allowed for one routed action.
	actionTimeout = 10 * time.Second
)

// Client action types.
const (
	ActionAttack = "ATTACK"
	ActionSwitch = "SWITCH"
	ActionFlee   = "FLEE"
)

// PlayerAction represents an incoming command from a websocket client.
type PlayerAction struct {
	Type      string          `json:"type"`
	BattleID  string          `json:"battle_id"`
	TrainerID int             `json:"trainer_id"`
	Payload   json.RawMessage `json:"payload"`
}

type attackPayload struct {
	MoveIndex int `json:"move_index"`
}

type switchPayload struct {
	PokemonID int  `json:"pokemon_id"`
	IsForced  bool `json:"is_forced"`
}

// Client is one websocket connection watching a single battle.
type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	send           chan []byte
	battleID       string
	trainerID      int // 0 when the upgrade request carried no identity
	lastActionTime time.Time
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn, battleID string, trainerID int) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, hub.tuning.ClientSendBuffer),
		battleID:  battleID,
		trainerID: trainerID,
	}
}

// ReadPump pumps messages from the websocket connection to the engine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warnf("websocket read error: %v", err)
				c.hub.metrics.RecordWSError()
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		var action PlayerAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.logger.Warn("Failed to parse PlayerAction from WebSocket. err: " + err.Error())
			c.fail("", apperrors.Validation("malformed message"))
			continue
		}

		c.handlePlayerAction(action)
	}
}

func (c *Client) handlePlayerAction(action PlayerAction) {
	// 1. Rate limiting
	if interval := c.hub.tuning.MinActionInterval; time.Since(c.lastActionTime) < interval {
		c.hub.logger.Warnf("Rate limit exceeded for trainer %d on battle %s", action.TrainerID, action.BattleID)
		c.fail(action.BattleID, apperrors.RuleViolation("too many actions, slow down"))
		return
	}
	c.lastActionTime = time.Now()

	// 2. Identity
	trainerID := action.TrainerID
	if c.trainerID != 0 {
		if trainerID != 0 && trainerID != c.trainerID {
			c.fail(action.BattleID, apperrors.RuleViolation("this is not your battle"))
			return
		}
		trainerID = c.trainerID
	}
	if trainerID <= 0 {
		c.fail(action.BattleID, apperrors.Validation("trainer_id is required"))
		return
	}
	battleID := action.BattleID
	if battleID == "" {
		battleID = c.battleID
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	actions := c.hub.actions
	var err error
	var result interface{}
	switch strings.ToUpper(action.Type) {
	case ActionAttack:
		var p attackPayload
		if err = decodePayload(action.Payload, &p); err == nil {
			session, aerr := actions.Attack(ctx, battleID, trainerID, p.MoveIndex)
			if err = aerr; err == nil {
				result = session.View()
			}
		}
	case ActionSwitch:
		var p switchPayload
		if err = decodePayload(action.Payload, &p); err == nil {
			if p.PokemonID == 0 {
				err = apperrors.Validation("pokemon_id is required")
				break
			}
			session, aerr := actions.SwitchCombatant(ctx, battleID, trainerID, p.PokemonID, p.IsForced)
			if err = aerr; err == nil {
				result = session.View()
			}
		}
	case ActionFlee:
		session, aerr := actions.Flee(ctx, battleID, trainerID)
		if err = aerr; err == nil {
			result = session.View()
		}
	default:
		c.hub.logger.Warn("Unknown PlayerAction type: " + action.Type)
		err = apperrors.Validation("unknown action type " + action.Type)
	}

	if err != nil {
		c.fail(battleID, err)
		return
	}
	c.hub.logger.Event("WS_"+strings.ToUpper(action.Type), strconv.Itoa(trainerID), "battle "+battleID)
	c.hub.Send(c, ServerMessage{Type: MessageActionResult, BattleID: battleID, Data: result})
}

func decodePayload(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.Validation("malformed payload")
	}
	return nil
}

func (c *Client) fail(battleID string, err error) {
	code := apperrors.CodeOf(err)
	c.hub.Send(c, ServerMessage{Type: MessageError, BattleID: battleID, Message: publicMessage(err), Code: string(code)})
}

// WritePump pumps messages from the hub to the websocket connection.
// Each message goes out as its own text frame.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.metrics.RecordWSError()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
