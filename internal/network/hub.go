package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/MRamiBalles/PokeArena/server/internal/engine"
	"github.com/MRamiBalles/PokeArena/server/internal/events"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/config"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/logger"
	"github.com/MRamiBalles/PokeArena/server/internal/platform/metrics"
)

// DefaultPollInterval is how often the hub drains the event log.
const DefaultPollInterval = 200 * time.Millisecond

// BattleActions is the part of the engine websocket clients can drive.
type BattleActions interface {
	Attack(ctx context.Context, id string, playerID, moveIndex int) (*engine.BattleSession, error)
	SwitchCombatant(ctx context.Context, id string, playerID, slotID int, forced bool) (*engine.BattleSession, error)
	Flee(ctx context.Context, id string, playerID int) (*engine.BattleSession, error)
}

// Server message types.
const (
	MessageEvent        = "EVENT"
	MessageActionResult = "ACTION_RESULT"
	MessageError        = "ERROR"
)

// ServerMessage is every frame the server writes to a client.
type ServerMessage struct {
	Type     string      `json:"type"`
	BattleID string      `json:"battle_id,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Message  string      `json:"message,omitempty"`
	Code     string      `json:"code,omitempty"`
}

type outbound struct {
	battleID string
	client   *Client
	payload  []byte
}

// Hub maintains the set of active clients and fans battle events out to the
// clients watching that battle. Only Run touches a client's send channel.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	direct     chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	count      int

	actions BattleActions
	tuning  *config.Tuning
	logger  *logger.Logger
	metrics *metrics.Collector
}

// NewHub initializes a new WebSocket Hub.
func NewHub(actions BattleActions, tuning *config.Tuning, log *logger.Logger, m *metrics.Collector) *Hub {
	if tuning == nil {
		tuning = config.DefaultTuning()
	}
	if m == nil {
		m = metrics.Get()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, tuning.BroadcastChannelBuffer),
		direct:     make(chan outbound, tuning.BroadcastChannelBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		actions:    actions,
		tuning:     tuning,
		logger:     log,
		metrics:    m,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.setCount(len(h.clients))
			h.metrics.RecordWSConnection(1)
			h.logger.Infof("WebSocket client joined battle %s", client.battleID)
		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.battleID == msg.battleID {
					h.deliver(client, msg.payload)
				}
			}
		case msg := <-h.direct:
			if h.clients[msg.client] {
				h.deliver(msg.client, msg.payload)
			}
		}
	}
}

func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.send <- payload:
		h.metrics.RecordWSMessage(false)
	default:
		h.logger.Warnf("Dropping slow WebSocket client on battle %s", client.battleID)
		h.metrics.RecordWSError()
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.setCount(len(h.clients))
	h.metrics.RecordWSConnection(-1)
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// Len reports the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Full reports whether the hub reached its client limit.
func (h *Hub) Full() bool {
	return h.tuning.MaxClientsPerHub > 0 && h.Len() >= h.tuning.MaxClientsPerHub
}

// Register adds a client. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Send queues a message for one client.
func (h *Hub) Send(c *Client, msg ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorf("Failed to serialize message for WebSocket client: %v", err)
		return
	}
	select {
	case h.direct <- outbound{client: c, payload: payload}:
	case <-h.done:
	}
}

// BroadcastEvent sends a battle event to every client watching its battle.
func (h *Hub) BroadcastEvent(event events.BattleEvent) {
	payload, err := json.Marshal(ServerMessage{Type: MessageEvent, BattleID: event.BattleID, Data: event})
	if err != nil {
		h.logger.Errorf("Failed to serialize BattleEvent for WebSocket broadcast: %v", err)
		return
	}
	select {
	case h.broadcast <- outbound{battleID: event.BattleID, payload: payload}:
	case <-h.done:
	}
}

// StartEventPoller spawns a goroutine that polls the EventLog from its
// current cursor and pushes new events to the Hub.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	cursor := eventLog.Cursor()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var batch []events.BattleEvent
				batch, cursor = eventLog.Since(cursor)
				for _, event := range batch {
					h.BroadcastEvent(event)
				}
			}
		}
	}()
}
