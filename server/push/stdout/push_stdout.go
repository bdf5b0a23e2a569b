// Package stdout is a no-op notification sink which writes receipts to
// stdout. Useful for development and log-based integrations.
package stdout

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/seednode/pod/server/push"
)

var handler stdoutPush

const defaultBuffer = 32

type stdoutPush struct {
	initialized bool
	input       chan *push.Receipt
	stop        chan bool
}

type configType struct {
	Disabled bool `json:"disabled"`
	Buffer   int  `json:"buffer"`
}

// Init initializes the handler.
func (stdoutPush) Init(jsonconf json.RawMessage) (bool, error) {
	// Check if the handler is already initialized.
	if handler.initialized {
		return false, errors.New("already initialized")
	}

	var config configType
	if err := json.Unmarshal(jsonconf, &config); err != nil {
		return false, errors.New("failed to parse config: " + err.Error())
	}

	handler.initialized = true

	if config.Disabled {
		return false, nil
	}

	if config.Buffer <= 0 {
		config.Buffer = defaultBuffer
	}

	handler.input = make(chan *push.Receipt, config.Buffer)
	handler.stop = make(chan bool, 1)

	go func() {
		for {
			select {
			case rcpt := <-handler.input:
				blob, _ := json.Marshal(rcpt)
				fmt.Fprintln(os.Stdout, string(blob))
			case <-handler.stop:
				return
			}
		}
	}()

	return true, nil
}

// IsReady checks if the handler is initialized.
func (stdoutPush) IsReady() bool {
	return handler.input != nil
}

// Push returns a channel that the server will use to send receipts to.
// If the sink blocks, the receipt will be dropped.
func (stdoutPush) Push() chan<- *push.Receipt {
	return handler.input
}

// Stop terminates the worker.
func (stdoutPush) Stop() {
	handler.stop <- true
}

func init() {
	push.Register("stdout", &handler)
}
