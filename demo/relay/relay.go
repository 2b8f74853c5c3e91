// Package relay is a reference transport binding the library's wire
// protocols to the network: a WebSocket hub relaying OTR wire frames
// between two online peers (queuing them in Redis for whichever peer
// is offline), plus the HTTP side of the prekey-server sub-protocol
// prekeyclient.Engine talks to. It plays the role the teacher's
// server package plays for its chat relay, generalized from a
// JSON chat-message envelope to opaque OTRv4 wire-format payloads and
// extended with the prekey-publication endpoints the teacher's own
// cmd/server/main.go references but server/server.go never actually
// implements.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"otrng/configs"
	"otrng/crypto/ed448"
	"otrng/prekeyclient"
	"otrng/wire"
)

// Envelope carries one opaque OTR wire-format message between two
// identities. Payload marshals as a JSON string (encoding/json base64s
// a []byte automatically), so the relay never needs to parse it.
type Envelope struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Payload []byte `json:"payload"`
}

// Relay is the demo server process: a WebSocket hub plus the
// prekey-server endpoints, both backed by Redis for anything that must
// survive a restart or reach an offline peer.
type Relay struct {
	ctx       context.Context
	cancelCtx context.CancelFunc

	redisClient *redis.Client
	logger      *logrus.Logger
	upgrader    *websocket.Upgrader

	mutex     sync.Mutex
	connected map[string]*websocket.Conn

	serverKP       *ed448.KeyPair
	serverIdentity string

	sessionMutex sync.Mutex
	sessions     map[wire.InstanceTag]*prekeyclient.ServerSession
}

// NewRelay constructs a Relay. serverKP is the prekey server's own
// long-term identity; clients pin it on first contact the same way an
// SSH host key is pinned.
func NewRelay(ctx context.Context, redisClient *redis.Client, logger *logrus.Logger, serverKP *ed448.KeyPair, serverIdentity string) *Relay {
	ctx, cancel := context.WithCancel(ctx)
	return &Relay{
		ctx:            ctx,
		cancelCtx:      cancel,
		redisClient:    redisClient,
		logger:         logger,
		upgrader:       &websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		connected:      make(map[string]*websocket.Conn),
		serverKP:       serverKP,
		serverIdentity: serverIdentity,
		sessions:       make(map[wire.InstanceTag]*prekeyclient.ServerSession),
	}
}

// Close tears down every open connection and the Redis client.
func (r *Relay) Close() {
	r.cancelCtx()
	r.mutex.Lock()
	for _, conn := range r.connected {
		conn.Close()
	}
	r.mutex.Unlock()
	r.redisClient.Close()
}

// HandleConnections upgrades an HTTP request to a WebSocket and relays
// every OTR wire-format frame the connected identity sends to its
// addressed recipient, queuing it in Redis when that recipient isn't
// currently connected.
func (r *Relay) HandleConnections(w http.ResponseWriter, req *http.Request) {
	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Errorf("error upgrading to websocket: %v", err)
		return
	}
	defer ws.Close()

	userID := req.URL.Query().Get("userId")
	if userID == "" {
		r.logger.Error("no userId provided in the query")
		return
	}

	r.mutex.Lock()
	r.connected[userID] = ws
	r.mutex.Unlock()
	r.logger.Infof("%s connected", userID)

	r.deliverQueued(userID, ws)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			r.logger.Infof("%s disconnected: %v", userID, err)
			break
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			r.logger.Errorf("invalid envelope from %s: %v", userID, err)
			continue
		}
		env.From = userID
		r.route(&env)
	}

	r.mutex.Lock()
	delete(r.connected, userID)
	r.mutex.Unlock()
}

func (r *Relay) route(env *Envelope) {
	r.mutex.Lock()
	conn, online := r.connected[env.To]
	r.mutex.Unlock()

	if online {
		payload, _ := json.Marshal(env)
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			r.logger.Errorf("error relaying to %s: %v", env.To, err)
		}
		return
	}
	r.queue(env)
}

func (r *Relay) queue(env *Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		r.logger.Errorf("error marshalling envelope for %s: %v", env.To, err)
		return
	}
	if err := r.redisClient.RPush(r.ctx, relayQueueKey(env.To), payload).Err(); err != nil {
		r.logger.Errorf("error queuing envelope for %s: %v", env.To, err)
	}
}

func (r *Relay) deliverQueued(userID string, ws *websocket.Conn) {
	key := relayQueueKey(userID)
	queued, err := r.redisClient.LRange(r.ctx, key, 0, -1).Result()
	if err != nil {
		r.logger.Errorf("error retrieving queued envelopes for %s: %v", userID, err)
		return
	}
	for _, payload := range queued {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
			r.logger.Errorf("error delivering queued envelope to %s: %v", userID, err)
			return
		}
	}
	r.redisClient.Del(r.ctx, key)
}

func relayQueueKey(userID string) string {
	return fmt.Sprintf(configs.RelayQueueKey, userID)
}
