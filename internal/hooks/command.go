package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const defaultCommandTimeout = 10 * time.Second

// Command is a shell hook: the payload is written as JSON to the command's
// stdin, and a non-zero exit is reported as a handler error.
type Command struct {
	Name    string
	Event   string
	Run     string
	Timeout time.Duration
}

// Handler builds the hook handler for c.
func (c Command) Handler() Handler {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return func(ctx context.Context, p Payload) error {
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", c.Run)
		cmd.Stdin = bytes.NewReader(body)
		cmd.WaitDelay = time.Second
		cmd.Env = append(os.Environ(), "AGENDABOT_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("hook %s: %w: %s", c.Name, err, msg)
			}
			return fmt.Errorf("hook %s: %w", c.Name, err)
		}
		return nil
	}
}

// RegisterCommands registers each command on its event. Unknown events are
// rejected before anything is registered.
func (m *Manager) RegisterCommands(cmds []Command) error {
	for _, c := range cmds {
		if !KnownEvent(c.Event) {
			return fmt.Errorf("hook %q: unknown event %q", c.Name, c.Event)
		}
		if strings.TrimSpace(c.Run) == "" {
			return fmt.Errorf("hook %q: empty command", c.Name)
		}
	}
	for _, c := range cmds {
		m.On(c.Event, c.Name, c.Handler())
	}
	return nil
}
