// Command relay runs the demo/relay WebSocket hub and prekey-server
// HTTP endpoints, mirroring the teacher's cmd/server/main.go which
// wires its own server.Server into a gorilla/mux router the same way.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"otrng/configs"
	"otrng/crypto/ed448"
	"otrng/demo/relay"
)

var logger = logrus.New()

func main() {
	// Optional .env file for local runs, the way the teacher's
	// cmd/client loads ".env.<userID>" before reading its own keys.
	_ = godotenv.Load()

	addr := envOr("RELAY_ADDR", configs.ServerAddress)
	redisAddr := envOr("REDIS_ADDR", configs.RedisAddress)
	keyPath := envOr("SERVER_KEY_PATH", "")

	serverKP, err := loadOrGenerateServerKey(keyPath)
	if err != nil {
		logger.Fatalf("failed to load/generate server key: %v", err)
	}

	// Each process run gets its own correlation id for log lines, since
	// the demo server's identity keypair may be reused across restarts
	// while the process itself is not.
	serverIdentity := fmt.Sprintf("otrng-relay-%s", uuid.NewString())
	logger.Infof("server run %s, long-term fingerprint %x", serverIdentity, serverKP.Public[:16])

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	r := relay.NewRelay(context.Background(), rdb, logger, serverKP, serverIdentity)
	defer r.Close()

	router := mux.NewRouter()
	router.HandleFunc(configs.WebSocketPath, r.HandleConnections)
	router.HandleFunc(fmt.Sprintf("%s/{userID}", configs.PublishKeysPath), r.HandlePublishProfile).Methods(http.MethodPost)
	router.HandleFunc(fmt.Sprintf("%s/{userID}", configs.PublishKeysPath), r.HandleGetProfile).Methods(http.MethodGet)
	router.HandleFunc("/prekey/dake1/{userID}", r.HandleDAKE1).Methods(http.MethodPost)
	router.HandleFunc("/prekey/dake3/{userID}", r.HandleDAKE3).Methods(http.MethodPost)
	router.HandleFunc("/prekey/ensemble/{userID}", r.HandleEnsembleQuery).Methods(http.MethodGet)

	logger.Infof("relay listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		logger.Fatalf("relay exited: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadOrGenerateServerKey persists the prekey server's long-term
// identity across restarts when keyPath is set, so clients that
// pinned its fingerprint out-of-band don't need to re-pin it on every
// relay restart.
func loadOrGenerateServerKey(keyPath string) (*ed448.KeyPair, error) {
	if keyPath == "" {
		return ed448.Generate()
	}
	if raw, err := os.ReadFile(keyPath); err == nil {
		seed, err := base64.StdEncoding.DecodeString(string(raw))
		if err != nil {
			return nil, err
		}
		return ed448.KeyPairFromSeed(seed)
	}
	kp, err := ed448.Generate()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyPath, []byte(base64.StdEncoding.EncodeToString(kp.Seed())), 0o600); err != nil {
		return nil, err
	}
	return kp, nil
}
