// Package irc implements the IRC chat channel using the girc library.
package irc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"

	"github.com/soyeahso/agendabot/internal/config"
	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/logging"
)

// maxLineBytes keeps PRIVMSG lines under the 512 byte protocol limit once
// the prefix and target are added.
const maxLineBytes = 400

// Channel implements domain.Channel for IRC. Private messages are always
// handled; in joined rooms only lines addressed to the bot's nick are.
type Channel struct {
	cfg    config.IRCConfig
	client *girc.Client
	log    *logging.Logger

	mu      sync.RWMutex
	handler func(msg domain.InboundMessage)
	running bool
	lastErr string
}

// New creates an IRC channel from configuration.
func New(cfg config.IRCConfig, log *logging.Logger) *Channel {
	return &Channel{cfg: cfg, log: log.Sub("irc")}
}

func (c *Channel) ID() string { return "irc" }

func (c *Channel) OnMessage(handler func(msg domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "irc",
		Connected: c.client != nil && c.client.IsConnected(),
		Running:   c.running,
		LastError: c.lastErr,
	}
}

func (c *Channel) port() int {
	switch {
	case c.cfg.Port != 0:
		return c.cfg.Port
	case c.cfg.UseTLS:
		return 6697
	default:
		return 6667
	}
}

// Start connects and blocks until the connection ends or ctx is cancelled.
func (c *Channel) Start(ctx context.Context) error {
	gc := girc.Config{
		Server:  c.cfg.Server,
		Port:    c.port(),
		Nick:    c.cfg.Nick,
		User:    c.cfg.Nick,
		Name:    "agendabot",
		SSL:     c.cfg.UseTLS,
		Version: "agendabot",
	}
	if c.cfg.UseTLS {
		gc.TLSConfig = &tls.Config{ServerName: c.cfg.Server}
	}
	switch {
	case c.cfg.SASL && c.cfg.Password != "":
		gc.SASL = &girc.SASLPlain{User: c.cfg.Nick, Pass: c.cfg.Password}
	case c.cfg.Password != "":
		gc.ServerPass = c.cfg.Password
	}

	client := girc.New(gc)
	client.Handlers.Add(girc.CONNECTED, c.onConnected)
	client.Handlers.Add(girc.PRIVMSG, c.onPrivmsg)
	client.Handlers.Add(girc.DISCONNECTED, c.onDisconnected)

	c.mu.Lock()
	c.client = client
	c.running = true
	c.lastErr = ""
	c.mu.Unlock()

	c.log.Info().
		Str("server", c.cfg.Server).
		Int("port", gc.Port).
		Str("nick", c.cfg.Nick).
		Strs("channels", c.cfg.Channels).
		Bool("tls", c.cfg.UseTLS).
		Msg("connecting to IRC")

	errCh := make(chan error, 1)
	go func() { errCh <- client.Connect() }()

	select {
	case err := <-errCh:
		c.mu.Lock()
		c.running = false
		if err != nil {
			c.lastErr = err.Error()
		}
		c.mu.Unlock()
		if err != nil {
			return fmt.Errorf("irc connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		client.Close()
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Stop quits the server, if connected.
func (c *Channel) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && c.client.IsConnected() {
		c.log.Info().Msg("disconnecting from IRC")
		c.client.Quit("agendabot shutting down")
	}
	c.running = false
	return nil
}

// Send delivers msg to a nick or room, one PRIVMSG per line.
func (c *Channel) Send(_ context.Context, msg domain.OutboundMessage) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil || !client.IsConnected() {
		return errors.New("irc: not connected")
	}
	if msg.To == "" {
		return errors.New("irc: no target specified")
	}

	lines := splitMessage(msg.Body, maxLineBytes)
	for _, line := range lines {
		client.Cmd.Message(msg.To, line)
	}
	c.log.Debug().
		Str("to", msg.To).
		Int("lines", len(lines)).
		Bool("notification", msg.Notification).
		Msg("sent IRC message")
	return nil
}

func (c *Channel) onConnected(client *girc.Client, _ girc.Event) {
	c.log.Info().Str("nick", client.GetNick()).Msg("connected to IRC")
	for _, room := range c.cfg.Channels {
		client.Cmd.Join(room)
		c.log.Info().Str("channel", room).Msg("joined channel")
	}
}

func (c *Channel) onDisconnected(_ *girc.Client, _ girc.Event) {
	c.log.Warn().Msg("disconnected from IRC")
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

func (c *Channel) onPrivmsg(client *girc.Client, e girc.Event) {
	if e.Source == nil || len(e.Params) == 0 {
		return
	}
	nick := client.GetNick()
	if strings.EqualFold(e.Source.Name, nick) {
		return
	}
	if !c.allowed(e.Source.Name) {
		c.log.Debug().Str("nick", e.Source.Name).Msg("ignoring message from nick not in allow list")
		return
	}

	body := e.Last()
	if e.IsAction() {
		body = e.StripAction()
	}
	msg, ok := inbound(nick, e.Source.Name, e.Params[0], body)
	if !ok {
		return
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler != nil {
		handler(msg)
	}
}

// allowed applies the optional nick allow list.
func (c *Channel) allowed(nick string) bool {
	if len(c.cfg.AllowedNicks) == 0 {
		return true
	}
	for _, n := range c.cfg.AllowedNicks {
		if strings.EqualFold(n, nick) {
			return true
		}
	}
	return false
}

// inbound builds the message for a PRIVMSG from sender to target. Room
// messages must start with "<nick>:" or "<nick>,"; the prefix is removed.
func inbound(botNick, sender, target, body string) (domain.InboundMessage, bool) {
	msg := domain.InboundMessage{
		ID:        uuid.New().String(),
		ChannelID: "irc",
		From:      sender,
		FromName:  sender,
		ChatID:    sender,
		ChatType:  domain.ChatTypeDM,
		Body:      strings.TrimSpace(body),
		Timestamp: time.Now(),
	}
	if girc.IsValidChannel(target) {
		rest, ok := addressed(botNick, body)
		if !ok {
			return domain.InboundMessage{}, false
		}
		msg.ChatID = target
		msg.ChatType = domain.ChatTypeGroup
		msg.Body = rest
	}
	if msg.Body == "" {
		return domain.InboundMessage{}, false
	}
	return msg, true
}

func addressed(nick, body string) (string, bool) {
	if nick == "" || len(body) <= len(nick) || !strings.EqualFold(body[:len(nick)], nick) {
		return "", false
	}
	rest := body[len(nick):]
	if rest[0] != ':' && rest[0] != ',' {
		return "", false
	}
	return strings.TrimSpace(rest[1:]), true
}

// splitMessage turns text into PRIVMSG-sized lines: one per input line,
// skipping blank ones, with long lines wrapped at a space when possible and
// never inside a UTF-8 sequence.
func splitMessage(text string, maxLen int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		for len(line) > maxLen {
			cut := maxLen
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if sp := strings.LastIndexByte(line[:cut], ' '); sp > maxLen/2 {
				cut = sp
			}
			out = append(out, line[:cut])
			line = strings.TrimLeft(line[cut:], " ")
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
