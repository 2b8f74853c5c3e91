package tui

import (
	"errors"
	"fmt"

	"github.com/jroimartin/gocui"
)

// updateMessages redraws the scrollback view, mirroring the teacher's
// ChatApp.UpdateMessages.
func (app *App) updateMessages(g *gocui.Gui) error {
	v, err := g.View("messages")
	if err != nil {
		return err
	}
	v.Clear()
	app.messageLock.Lock()
	for _, msg := range app.messages {
		fmt.Fprintln(v, msg)
	}
	app.messageLock.Unlock()
	return nil
}

// layout lays out either the recipient prompt (before a conversation
// exists) or the message scrollback plus input line, mirroring the
// teacher's ChatApp.layout.
func (app *App) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if app.recipientID == "" {
		if v, err := g.SetView("prompt", maxX/4, maxY/4, 3*maxX/4, maxY/2); err != nil {
			if !errors.Is(err, gocui.ErrUnknownView) {
				return err
			}
			v.Title = "Enter recipient ID"
			v.Editable = true
			v.Wrap = true
			g.SetCurrentView("prompt")
		}
		return nil
	}

	if v, err := g.SetView("messages", 0, 0, maxX-1, maxY-5); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Chat with " + app.recipientID
		v.Autoscroll = true
		v.Wrap = true
		app.updateMessages(g)
	}

	if v, err := g.SetView("input", 0, maxY-4, maxX-1, maxY-2); err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Type a message ( /smp <secret> to verify, Ctrl-C to quit )"
		v.Editable = true
		v.Wrap = true
		g.SetCurrentView("input")
	}

	return nil
}
