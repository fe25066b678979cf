package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/sweeney/tank-pump/internal/logic"
)

// commandPayload is the JSON accepted on TopicCommand, e.g.
// {"override": true, "state": "ON"}.
type commandPayload struct {
	Override *bool  `json:"override"`
	State    string `json:"state"`
}

// ParseCommand decodes an override command. ok is false when the payload is
// valid JSON but carries no "override" key (nothing to do). Only the exact
// string "ON" requests ON; anything else, including "on" or a missing
// "state", resolves to OFF.
func ParseCommand(payload []byte) (o logic.Override, ok bool, err error) {
	var cmd commandPayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return logic.Override{}, false, fmt.Errorf("parse command: %w", err)
	}
	if cmd.Override == nil {
		return logic.Override{}, false, nil
	}
	return logic.Override{
		Active:  *cmd.Override,
		Desired: cmd.State == string(logic.StateOn),
	}, true, nil
}

// CommandQueue hands override directives from delivery goroutines (MQTT
// callbacks, HTTP handlers) to the control loop. It holds at most one
// directive: a newer one replaces an unconsumed older one.
type CommandQueue struct {
	ch chan logic.Override
}

// NewCommandQueue creates an empty queue.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{ch: make(chan logic.Override, 1)}
}

// Deliver stores o, replacing any directive the loop has not read yet.
// It never blocks.
func (q *CommandQueue) Deliver(o logic.Override) {
	for {
		select {
		case q.ch <- o:
			return
		default:
		}
		select {
		case <-q.ch:
		default:
		}
	}
}

// C returns the channel the control loop receives directives on.
func (q *CommandQueue) C() <-chan logic.Override {
	return q.ch
}

// HandleCommand parses payload and delivers it. Unparseable payloads are
// returned as errors and change nothing.
func (q *CommandQueue) HandleCommand(payload []byte) error {
	o, ok, err := ParseCommand(payload)
	if err != nil {
		return err
	}
	if ok {
		q.Deliver(o)
	}
	return nil
}
