package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/model"
)

// CommandChannel sends control commands to the race engine. Sending
// never fails from the caller's view, problems are logged.
type CommandChannel struct {
	l  *log.Logger
	mu sync.Mutex
	t  Transport
}

func newCommandChannel(l *log.Logger) *CommandChannel {
	return &CommandChannel{l: l}
}

// Send transmits cmd if the channel is open.
func (c *CommandChannel) Send(cmd model.ControlCommand) {
	if err := c.send(cmd); err != nil {
		c.l.Warn("command not sent",
			log.String("request", string(cmd.Request)), log.ErrorField(err))
	}
}

func (c *CommandChannel) send(cmd model.ControlCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.t == nil {
		return fmt.Errorf("%w: command channel not open", model.ErrTransport)
	}
	if err := c.t.WriteMessage(data); err != nil {
		return fmt.Errorf("%w: %w", model.ErrTransport, err)
	}
	c.l.Debug("command sent", log.ByteString("command", data))
	return nil
}

// IsOpen reports whether a transport is attached
func (c *CommandChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t != nil
}

func (c *CommandChannel) attach(t Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// detach closes the attached transport, if any
func (c *CommandChannel) detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.t != nil {
		c.t.Close()
		c.t = nil
	}
}
