package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope for every feed message.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocketHandler broadcasts crawl events to connected dashboard clients.
// Each connection gets its own write mutex; gorilla/websocket allows only
// one concurrent writer per connection.
type WebSocketHandler struct {
	logger      arbor.ILogger
	events      interfaces.EventService
	clients     map[*websocket.Conn]bool
	clientMutex map[*websocket.Conn]*sync.Mutex
	mu          sync.RWMutex

	allowedEvents map[string]bool                        // Whitelist of events to broadcast (empty = allow all)
	throttlers    map[interfaces.EventType]*rate.Limiter // Per-event-type broadcast rate limiters
	instanceID    string                                 // Generated on startup - clients use it to detect server restart
}

func NewWebSocketHandler(events interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:        logger,
		events:        events,
		clients:       make(map[*websocket.Conn]bool),
		clientMutex:   make(map[*websocket.Conn]*sync.Mutex),
		allowedEvents: make(map[string]bool),
		throttlers:    make(map[interfaces.EventType]*rate.Limiter),
		instanceID:    uuid.New().String(),
	}

	logger.Info().Str("server_instance_id", h.instanceID).Msg("WebSocket handler initialized")

	if config != nil {
		for _, eventType := range config.AllowedEvents {
			h.allowedEvents[eventType] = true
		}
		for eventType, intervalStr := range config.ThrottleIntervals {
			duration, err := time.ParseDuration(intervalStr)
			if err != nil {
				logger.Warn().
					Err(err).
					Str("event_type", eventType).
					Str("interval", intervalStr).
					Msg("Failed to parse throttle interval - throttler disabled")
				continue
			}
			h.throttlers[interfaces.EventType(eventType)] = rate.NewLimiter(rate.Every(duration), 1)
		}
	}

	if events != nil {
		h.subscribeEvents()
	}
	return h
}

// feedEventTypes are the crawl events forwarded to the feed.
var feedEventTypes = []interfaces.EventType{
	interfaces.EventSessionStarted,
	interfaces.EventSessionCompleted,
	interfaces.EventPhaseCompleted,
	interfaces.EventURLFetched,
	interfaces.EventURLFailed,
	interfaces.EventRenderEscalated,
	interfaces.EventRecordExtracted,
	interfaces.EventTitleGenerated,
	interfaces.EventFinalizeArtifact,
}

func (h *WebSocketHandler) subscribeEvents() {
	for _, eventType := range feedEventTypes {
		if err := h.events.Subscribe(eventType, h.forward); err != nil {
			h.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to subscribe to event")
		}
	}
}

// forward relays one bus event to the feed, applying the whitelist and the
// per-type throttle.
func (h *WebSocketHandler) forward(ctx context.Context, event interfaces.Event) error {
	if len(h.allowedEvents) > 0 && !h.allowedEvents[string(event.Type)] {
		return nil
	}
	if throttler, ok := h.throttlers[event.Type]; ok && !throttler.Allow() {
		return nil
	}
	h.broadcast(string(event.Type), event.Payload)
	return nil
}

// HandleWebSocket upgrades the connection and keeps it registered until the
// client goes away.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	h.sendHello(conn)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	// Read loop keeps the connection alive; clients send nothing we act on.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// sendHello tells a new client which server instance it is talking to.
func (h *WebSocketHandler) sendHello(conn *websocket.Conn) {
	msg := WSMessage{
		Type: "hello",
		Payload: map[string]interface{}{
			"server_instance_id": h.instanceID,
			"time":               time.Now().Format(time.RFC3339),
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal hello message")
		return
	}

	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()

	if mutex != nil {
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send hello")
		}
	}
}

// BroadcastLog relays one log line to the feed. Called by the arbor
// WebSocket writer off the logging path.
func (h *WebSocketHandler) BroadcastLog(entry LogEntry) {
	h.broadcast("log", entry)
}

// broadcast sends one message to every connected client.
func (h *WebSocketHandler) broadcast(msgType string, payload interface{}) {
	msg := WSMessage{Type: msgType, Payload: payload}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("Failed to marshal feed message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Str("type", msgType).Msg("Failed to send feed message to client")
		}
	}
}
