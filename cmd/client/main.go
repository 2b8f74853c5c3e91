// Command client is a terminal chat demo: it loads or creates a local
// account, publishes a signed client profile to the relay, and drives
// a tui.App over a WebSocket connection, mirroring the teacher's
// cmd/client/main.go which does the same for a ChatApp over X3DH.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jroimartin/gocui"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"otrng/account"
	"otrng/configs"
	"otrng/demo/tui"
	"otrng/profile"
)

var logger = logrus.New()

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: client <userID> [relayAddr]")
		return
	}
	userID := os.Args[1]
	relayAddr := configs.ServerAddress
	if len(os.Args) >= 3 {
		relayAddr = os.Args[2]
	}

	// Optional per-user override file, the way the teacher's cmd/client
	// loads ".env.<userID>" before reading its own keys.
	_ = godotenv.Load(fmt.Sprintf("%s/.env.%s", configs.DebugSecretDir, userID))
	if v := os.Getenv("RELAY_ADDR"); v != "" {
		relayAddr = v
	}

	acc, err := loadOrCreateAccount(userID)
	if err != nil {
		logger.Fatalf("failed to load/create account: %v", err)
	}

	clientProfile := buildClientProfile(acc)

	app := tui.NewApp(userID, relayAddr, acc, clientProfile, logger)
	if err := app.InitGui(); err != nil {
		logger.Fatalf("failed to initialize terminal UI: %v", err)
	}
	defer app.Gui.Close()

	if err := app.PublishProfile(); err != nil {
		logger.Fatalf("failed to publish profile: %v", err)
	}
	if err := app.PromptRecipientID(); err != nil {
		logger.Fatalf("failed to set up recipient prompt: %v", err)
	}

	if err := app.Gui.MainLoop(); err != nil && !errors.Is(err, gocui.ErrQuit) {
		logger.Fatalf("error in terminal UI main loop: %v", err)
	}
	logger.Info("client exited")
}

func accountKeyPath(userID string) string {
	return fmt.Sprintf("%s/%s.otrng-keys", configs.DebugSecretDir, userID)
}

func loadOrCreateAccount(userID string) (*account.Account, error) {
	store := account.NewFileStore(accountKeyPath(userID))
	acc, err := store.Load()
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, account.ErrNoAccount) {
		return nil, err
	}

	if err := os.MkdirAll(configs.DebugSecretDir, 0o700); err != nil {
		return nil, err
	}
	acc, err = account.New()
	if err != nil {
		return nil, err
	}
	if err := store.Save(acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func buildClientProfile(acc *account.Account) *profile.ClientProfile {
	p := &profile.ClientProfile{
		OwnerInstanceTag: acc.InstanceTag,
		LongTermPublic:   acc.LongTerm.Public,
		ForgingPublic:    acc.Forging.Public,
		Versions:         "4",
		Expiry:           time.Now().Add(30 * 24 * time.Hour).Unix(),
	}
	p.Sign(acc.LongTerm)
	return p
}
