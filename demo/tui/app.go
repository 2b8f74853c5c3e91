// Package tui is a reference host binding: a gocui terminal chat
// client driving one otrng/conversation.Conversation over the
// demo/relay WebSocket hub. It plays the role the teacher's
// client.ChatApp plays for its X3DH/double-ratchet session,
// generalized from a single fixed Signal session to the full OTRv4
// classify/DAKE/SMP surface conversation.Conversation already
// implements, and is the Collaborator spec.md §6 describes an
// embedding application must supply.
package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jroimartin/gocui"
	"github.com/sirupsen/logrus"

	"otrng/account"
	"otrng/callbacks"
	"otrng/configs"
	"otrng/conversation"
	"otrng/profile"
)

// Envelope mirrors demo/relay.Envelope. It is redeclared here rather
// than imported so this demo client depends only on the wire shape,
// not on the relay's websocket-hub/Redis machinery.
type Envelope struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Payload []byte `json:"payload"`
}

// App is the demo client process: a gocui screen plus one
// conversation.Conversation addressed to a single peer, the way the
// teacher's ChatApp is one gocui screen plus one DoubleRatchet.
type App struct {
	Gui *gocui.Gui
	Log *logrus.Logger

	userID      string
	recipientID string
	relayAddr   string

	acc     *account.Account
	profile *profile.ClientProfile
	conv    *conversation.Conversation

	wsConn *websocket.Conn
	wg     sync.WaitGroup

	messageLock sync.Mutex
	messages    []string

	smpMutex    sync.Mutex
	awaitingSMP bool
}

// NewApp constructs an App for userID, talking to the relay at
// relayAddr ("host:port"), under the given local account and
// already-signed client profile.
func NewApp(userID, relayAddr string, acc *account.Account, prof *profile.ClientProfile, log *logrus.Logger) *App {
	return &App{userID: userID, relayAddr: relayAddr, acc: acc, profile: prof, Log: log}
}

// InitGui initializes the gocui screen, mirroring the teacher's
// ChatApp.InitGui.
func (app *App) InitGui() error {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return fmt.Errorf("failed to initialize gocui: %w", err)
	}
	app.Gui = g
	g.SetManagerFunc(app.layout)
	return nil
}

// PublishProfile posts our signed client profile to the relay so a
// peer can look it up, mirroring the teacher's ChatApp.PostKeys.
func (app *App) PublishProfile() error {
	url := fmt.Sprintf("http://%s%s/%s", app.relayAddr, configs.PublishKeysPath, app.userID)
	resp, err := http.Post(url, "application/octet-stream", bytes.NewReader(app.profile.Serialize()))
	if err != nil {
		return fmt.Errorf("failed to publish profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay returned non-OK status: %v", resp.Status)
	}
	return nil
}

// fetchPeerProfile retrieves recipientID's published client profile,
// the counterpart of the teacher's ChatApp.GetKeys.
func (app *App) fetchPeerProfile(recipientID string) (*profile.ClientProfile, error) {
	url := fmt.Sprintf("http://%s%s/%s", app.relayAddr, configs.PublishKeysPath, recipientID)
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch peer profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relay returned non-OK status: %v", resp.Status)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return profile.DecodeClientProfile(buf.Bytes())
}

// PromptRecipientID sets up the recipient-entry view and, once
// submitted, looks up the peer's profile, opens the conversation and
// the WebSocket connection, and begins a DAKE as initiator. It plays
// the role of the teacher's ChatApp.PromptRecipientID.
func (app *App) PromptRecipientID() error {
	return app.Gui.SetKeybinding("prompt", gocui.KeyEnter, gocui.ModNone, func(g *gocui.Gui, v *gocui.View) error {
		recipientID := strings.TrimSpace(v.Buffer())
		if recipientID == "" {
			return nil
		}
		app.recipientID = recipientID
		g.DeleteView("prompt")
		g.SetManagerFunc(app.layout)
		g.SetCurrentView("input")

		if err := g.SetKeybinding("input", gocui.KeyEnter, gocui.ModNone, app.sendMessageHandler); err != nil {
			app.Log.Fatalf("error setting keybinding for input: %v", err)
		}
		if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, app.quit); err != nil {
			app.Log.Fatalf("error setting keybinding for ctrl-c: %v", err)
		}

		if err := app.startConversation(); err != nil {
			app.Log.Fatalf("error starting conversation with %s: %v", recipientID, err)
		}
		return nil
	})
}

// startConversation fetches the peer's profile, builds the
// conversation.Conversation addressed to its instance tag, dials the
// relay's WebSocket hub, and fires off the DAKE as initiator.
// Concurrent DAKE initiation from both peers is resolved by
// conversation.Conversation's tie-break (spec.md §4.4/§8's P7); either
// side calling startConversation first converges to one ENCRYPTED
// session.
func (app *App) startConversation() error {
	peerProfile, err := app.fetchPeerProfile(app.recipientID)
	if err != nil {
		return err
	}

	policy := conversation.AllowV4 | conversation.WhitespaceStartAKE
	app.conv = conversation.New(app.acc, app.profile, peerProfile.OwnerInstanceTag, policy, &uiCollaborator{app: app})

	wsURL := fmt.Sprintf("ws://%s%s?userId=%s", app.relayAddr, configs.WebSocketPath, app.userID)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}
	app.wsConn = conn

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.listenForMessages()
	}()

	out, err := app.conv.StartDAKE()
	if err != nil {
		return err
	}
	return app.transmit(out)
}

// listenForMessages drains the WebSocket, feeding every relayed
// envelope into the conversation and relaying back whatever outbound
// pieces Receive produces (DAKE replies, SMP replies, MAC-revealing
// data messages), the way the teacher's ChatApp.listenForMessages
// drains its own WebSocket into DoubleRatchet.Decrypt.
func (app *App) listenForMessages() {
	for {
		_, raw, err := app.wsConn.ReadMessage()
		if err != nil {
			app.Log.Infof("relay connection closed: %v", err)
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			app.Log.Errorf("invalid envelope from relay: %v", err)
			continue
		}

		in, out, err := app.conv.Receive(string(env.Payload))
		if err != nil {
			app.Log.Errorf("error processing message from %s: %v", env.From, err)
		}
		if len(out) > 0 {
			if err := app.transmit(out); err != nil {
				app.Log.Errorf("error relaying reply to %s: %v", app.recipientID, err)
			}
		}
		if in != nil && in.Plaintext != "" {
			app.appendMessage(fmt.Sprintf("[%s] %s", app.recipientID, in.Plaintext))
		}
	}
}

// transmit wraps each outbound wire piece in an Envelope addressed to
// our recipient and writes it to the relay.
func (app *App) transmit(pieces []string) error {
	for _, piece := range pieces {
		env := Envelope{From: app.userID, To: app.recipientID, Payload: []byte(piece)}
		payload, err := json.Marshal(env)
		if err != nil {
			return err
		}
		if err := app.wsConn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return err
		}
	}
	return nil
}

// sendMessageHandler encrypts and sends whatever is in the input view
// on Enter. Per spec.md §4.9, Send before ENCRYPTED returns
// NotEncrypted rather than queueing — queueing is deliberately a
// caller responsibility the core leaves out of scope, so this demo
// just reports the wait instead of buffering.
func (app *App) sendMessageHandler(g *gocui.Gui, v *gocui.View) error {
	text := strings.TrimSpace(v.Buffer())
	if text == "" {
		return nil
	}
	v.Clear()
	v.SetCursor(0, 0)

	if strings.HasPrefix(text, "/smp ") {
		app.handleSMPCommand(strings.TrimPrefix(text, "/smp "))
		return nil
	}
	if text == "/smp-abort" {
		if out, err := app.conv.AbortSMP(); err == nil {
			app.transmit(out)
		}
		return nil
	}

	out, err := app.conv.Send(text)
	if err != nil {
		app.appendMessage(fmt.Sprintf("[!] not sent (%v)", err))
		return nil
	}
	if err := app.transmit(out); err != nil {
		app.Log.Errorf("error sending message: %v", err)
		return nil
	}
	app.appendMessage("[you] " + text)
	return nil
}

// handleSMPCommand drives the SMP engine from the chat input: a bare
// "/smp <secret>" starts a new verification, while one typed after
// SMPAskForSecret/SMPAskForAnswer answers the peer's in-flight request.
// This demo doesn't track SMP phase separately; StartSMP vs AnswerSMP
// is chosen by whether we're already mid-flow.
func (app *App) handleSMPCommand(secret string) {
	app.smpMutex.Lock()
	answering := app.awaitingSMP
	app.awaitingSMP = false
	app.smpMutex.Unlock()

	var out []string
	var err error
	if answering {
		out, err = app.conv.AnswerSMP(secret)
	} else {
		out, err = app.conv.StartSMP(secret, "")
	}
	if err != nil {
		app.appendMessage(fmt.Sprintf("[!] smp error: %v", err))
		return
	}
	if err := app.transmit(out); err != nil {
		app.Log.Errorf("error sending smp message: %v", err)
	}
}

func (app *App) setAwaitingSMP(v bool) {
	app.smpMutex.Lock()
	app.awaitingSMP = v
	app.smpMutex.Unlock()
}

func (app *App) appendMessage(line string) {
	app.messageLock.Lock()
	app.messages = append(app.messages, line)
	app.messageLock.Unlock()
	app.Gui.Update(func(g *gocui.Gui) error {
		return app.updateMessages(g)
	})
}

// quit issues a clean Close() (SMP_ABORT/DISCONNECTED if applicable)
// before tearing down the WebSocket connection.
func (app *App) quit(_ *gocui.Gui, _ *gocui.View) error {
	app.Log.Info("closing conversation...")
	if app.conv != nil {
		if out, err := app.conv.Close(); err == nil {
			app.transmit(out)
		}
	}
	if app.wsConn != nil {
		app.wsConn.Close()
	}
	app.wg.Wait()
	return gocui.ErrQuit
}

// uiCollaborator is the callbacks.Collaborator this demo supplies:
// every hook renders as a line in the message view rather than a
// prompt dialog, since a terminal chat demo has no modal UI to spare.
type uiCollaborator struct {
	app *App
}

func (c *uiCollaborator) CreatePrivkey(callbacks.AccountContext) {}

func (c *uiCollaborator) CreateSharedPrekey(callbacks.ConversationContext) {}

func (c *uiCollaborator) GoneSecure(callbacks.ConversationContext) {
	c.app.appendMessage("*** conversation is now encrypted ***")
}

func (c *uiCollaborator) GoneInsecure(callbacks.ConversationContext) {
	c.app.appendMessage("*** conversation is no longer encrypted ***")
}

func (c *uiCollaborator) FingerprintSeen(fp []byte, _ callbacks.ConversationContext) {
	c.app.appendMessage(fmt.Sprintf("*** peer fingerprint: %x ***", fp))
}

func (c *uiCollaborator) FingerprintSeenV3([]byte, callbacks.ConversationContext) {}

func (c *uiCollaborator) SMPAskForSecret(callbacks.ConversationContext) {
	c.app.setAwaitingSMP(true)
	c.app.appendMessage("*** peer wants to verify your shared secret; use /smp <answer> ***")
}

func (c *uiCollaborator) SMPAskForAnswer(question string, _ callbacks.ConversationContext) {
	c.app.setAwaitingSMP(true)
	c.app.appendMessage(fmt.Sprintf("*** peer asks: %q; use /smp <answer> ***", question))
}

func (c *uiCollaborator) SMPUpdate(event callbacks.SMPEvent, progress int, _ callbacks.ConversationContext) {
	switch event {
	case callbacks.SMPSuccess, callbacks.SMPFailure, callbacks.SMPAbort, callbacks.SMPCheated, callbacks.SMPError:
		c.app.setAwaitingSMP(false)
	}
	c.app.appendMessage(fmt.Sprintf("*** smp %s (%d%%) ***", event, progress))
}

func (c *uiCollaborator) ReceivedExtraSymmKey(_ callbacks.ConversationContext, useTag uint32, _ []byte, _ []byte) {
	c.app.appendMessage(fmt.Sprintf("*** received extra symmetric key (use=%d) ***", useTag))
}
