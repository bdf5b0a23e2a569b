// Package push contains interfaces to be implemented by notification sink plugins.
package push

import (
	"encoding/json"
	"errors"
	"time"

	t "github.com/seednode/pod/server/store/types"
)

// Push actions.
const (
	// New post became visible.
	ActPost = "post"
	// New comment on a visible post.
	ActComment = "comment"
)

// Receipt is a single notification: one recipient, one object. The receiver
// emits at most one receipt per received object per recipient, no matter how
// many aspects the object landed in.
type Receipt struct {
	// The local user being notified.
	To t.Uid `json:"to"`
	// Actual content to be delivered to the client.
	Payload Payload `json:"payload"`
}

// Payload is content of the push.
type Payload struct {
	// Action type of the push: new post or new comment.
	What string `json:"what"`
	// Guid of the object which became visible.
	Guid string `json:"guid"`
	// Kind of the object.
	Kind string `json:"kind"`
	// Handle of the object's author.
	From string `json:"from"`
	// Timestamp of the action.
	Timestamp time.Time `json:"ts"`
}

// Handler is an interface which must be implemented by sinks.
type Handler interface {
	// Init initializes the handler. Returns false when the handler is
	// disabled by config.
	Init(jsonconf json.RawMessage) (bool, error)

	// IsReady checks if the handler is initialized.
	IsReady() bool

	// Push returns a channel that the server will use to send receipts to.
	// The receipt will be dropped if the channel blocks.
	Push() chan<- *Receipt

	// Stop terminates the handler's worker and stops sending pushes.
	Stop()
}

type configType struct {
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config"`
}

var handlers map[string]Handler

// Register a push handler.
func Register(name string, hnd Handler) {
	if handlers == nil {
		handlers = make(map[string]Handler)
	}

	if hnd == nil {
		panic("Register: push handler is nil")
	}
	if _, dup := handlers[name]; dup {
		panic("Register: called twice for handler " + name)
	}
	handlers[name] = hnd
}

// Init initializes registered handlers.
func Init(jsconfig json.RawMessage) ([]string, error) {
	var config []configType

	if err := json.Unmarshal(jsconfig, &config); err != nil {
		return nil, errors.New("failed to parse config: " + err.Error())
	}

	var enabled []string
	for _, cc := range config {
		if hnd := handlers[cc.Name]; hnd != nil {
			if ok, err := hnd.Init(cc.Config); err != nil {
				return nil, err
			} else if ok {
				enabled = append(enabled, cc.Name)
			}
		}
	}

	return enabled, nil
}

// Push a single receipt to the enabled sinks.
func Push(rcpt *Receipt) {
	if handlers == nil {
		return
	}

	for _, hnd := range handlers {
		if !hnd.IsReady() {
			continue
		}

		// Push without delay or skip.
		select {
		case hnd.Push() <- rcpt:
		default:
		}
	}
}

// Stop all pushes.
func Stop() {
	if handlers == nil {
		return
	}

	for _, hnd := range handlers {
		if hnd.IsReady() {
			// Will potentially block.
			hnd.Stop()
		}
	}
}
