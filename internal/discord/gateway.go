package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Gateway opcodes (the subset this bot speaks).
const (
	opDispatch     = 0
	opHeartbeat    = 1
	opIdentify     = 2
	opHello        = 10
	opHeartbeatACK = 11
)

// Gateway intents required for role reactions and channel reads.
const (
	IntentGuilds                = 1 << 0
	IntentGuildMembers          = 1 << 1
	IntentGuildMessages         = 1 << 9
	IntentGuildMessageReactions = 1 << 10
	IntentMessageContent        = 1 << 15
)

// Dispatch event names delivered to the consume handler.
const (
	EventReady          = "READY"
	EventMessageCreate  = "MESSAGE_CREATE"
	EventReactionAdd    = "MESSAGE_REACTION_ADD"
	EventReactionRemove = "MESSAGE_REACTION_REMOVE"
)

type gatewayPayload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  int64           `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

type helloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type identifyData struct {
	Token      string             `json:"token"`
	Intents    int                `json:"intents"`
	Properties identifyProperties `json:"properties"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// ReadyEvent is the READY dispatch payload subset the bot consumes.
type ReadyEvent struct {
	User User `json:"user"`
}

func ParseReady(data json.RawMessage) (*ReadyEvent, error) {
	var out ReadyEvent
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("discord: parse READY: %w", err)
	}
	return &out, nil
}

func ParseReactionEvent(data json.RawMessage) (*ReactionEvent, error) {
	var out ReactionEvent
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("discord: parse reaction event: %w", err)
	}
	return &out, nil
}

// GatewayHandler receives each dispatch event. Returning an error
// only logs; it never tears down the connection.
type GatewayHandler func(eventType string, data json.RawMessage) error

type Gateway struct {
	api     *Client
	intents int
	logger  *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	seq  int64
}

func NewGateway(api *Client, intents int, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{api: api, intents: intents, logger: logger}
}

// Consume runs one gateway connection lifetime: resolve URL, dial,
// HELLO/IDENTIFY handshake, heartbeat ticker, then the read loop.
// It returns on read error or context cancellation; the caller owns
// reconnecting.
func (g *Gateway) Consume(ctx context.Context, handler GatewayHandler) error {
	gatewayURL, err := g.api.GatewayURL(ctx)
	if err != nil {
		return fmt.Errorf("resolve gateway url: %w", err)
	}

	dialer := *websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, gatewayURL+"?v=10&encoding=json", nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()
	defer func() {
		_ = conn.Close()
	}()

	hello, err := g.readPayload(conn)
	if err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello op %d, got %d", opHello, hello.Op)
	}
	var helloBody helloData
	if err := json.Unmarshal(hello.D, &helloBody); err != nil {
		return fmt.Errorf("decode hello: %w", err)
	}
	heartbeatInterval := time.Duration(helloBody.HeartbeatInterval) * time.Millisecond
	if heartbeatInterval <= 0 {
		heartbeatInterval = 41250 * time.Millisecond
	}

	identify := gatewayPayload{Op: opIdentify}
	identifyRaw, err := json.Marshal(identifyData{
		Token:   g.api.token,
		Intents: g.intents,
		Properties: identifyProperties{
			OS:      "linux",
			Browser: "dcbot",
			Device:  "dcbot",
		},
	})
	if err != nil {
		return err
	}
	identify.D = identifyRaw
	if err := g.writePayload(identify); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go g.heartbeatLoop(heartbeatCtx, heartbeatInterval)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		payload, err := g.readPayload(conn)
		if err != nil {
			return err
		}
		if payload.S > 0 {
			g.mu.Lock()
			g.seq = payload.S
			g.mu.Unlock()
		}
		switch payload.Op {
		case opDispatch:
			if handler == nil || payload.T == "" {
				continue
			}
			if err := handler(payload.T, payload.D); err != nil {
				g.logger.Warn("gateway_handler_error", "event", payload.T, "error", err.Error())
			}
		case opHeartbeat:
			if err := g.sendHeartbeat(); err != nil {
				return err
			}
		case opHeartbeatACK:
			// expected; nothing to do
		default:
			g.logger.Debug("gateway_unhandled_op", "op", payload.Op)
		}
	}
}

func (g *Gateway) heartbeatLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.sendHeartbeat(); err != nil {
				g.logger.Warn("gateway_heartbeat_error", "error", err.Error())
				return
			}
		}
	}
}

func (g *Gateway) sendHeartbeat() error {
	g.mu.Lock()
	seq := g.seq
	g.mu.Unlock()
	payload := gatewayPayload{Op: opHeartbeat}
	if seq > 0 {
		raw, err := json.Marshal(seq)
		if err != nil {
			return err
		}
		payload.D = raw
	} else {
		payload.D = json.RawMessage("null")
	}
	return g.writePayload(payload)
}

func (g *Gateway) readPayload(conn *websocket.Conn) (gatewayPayload, error) {
	var payload gatewayPayload
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return payload, err
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("decode gateway payload: %w", err)
	}
	return payload, nil
}

func (g *Gateway) writePayload(payload gatewayPayload) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return fmt.Errorf("gateway connection is not established")
	}
	return g.conn.WriteJSON(payload)
}
