// Package routing connects chat channels to the dialogue manager and
// delivers reminders back to their owners.
package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/agendabot/internal/channel"
	"github.com/soyeahso/agendabot/internal/dialogue"
	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/hooks"
	"github.com/soyeahso/agendabot/internal/logging"
)

// Handler processes one message for a user.
type Handler interface {
	Handle(ctx context.Context, userID, text string) (*dialogue.Result, error)
}

// Router routes inbound messages to the Handler and replies through the
// originating channel. It is also the reminder Dispatcher.
//
// Messages from one user are handled one at a time in arrival order; different
// users are handled concurrently.
type Router struct {
	channels *channel.Registry
	handler  Handler
	hooks    hooks.Emitter
	timeout  time.Duration
	log      *logging.Logger

	mu     sync.Mutex
	queues map[string][]domain.InboundMessage
}

// NewRouter creates a router. em may be nil. timeout bounds each inbound
// message; zero means one minute.
func NewRouter(channels *channel.Registry, handler Handler, em hooks.Emitter, timeout time.Duration, log *logging.Logger) *Router {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Router{
		channels: channels,
		handler:  handler,
		hooks:    em,
		timeout:  timeout,
		log:      log.Sub("routing"),
		queues:   make(map[string][]domain.InboundMessage),
	}
}

// HandleInbound runs msg through the handler and sends the reply, if any.
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	userID := UserID(msg)
	r.log.Debug().
		Str("channel", msg.ChannelID).
		Str("from", msg.From).
		Str("chatType", string(msg.ChatType)).
		Msg("routing inbound message")

	res, err := r.handler.Handle(ctx, userID, msg.Body)
	if err != nil {
		r.log.Error().Err(err).Str("user", userID).Msg("handling message")
	}
	if res == nil || res.Reply == "" {
		return
	}

	reply := domain.OutboundMessage{
		ChannelID: msg.ChannelID,
		To:        replyTarget(msg),
		Body:      res.Reply,
	}
	if err := r.send(ctx, reply); err != nil {
		r.log.Error().Err(err).Str("channel", msg.ChannelID).Str("to", reply.To).Msg("failed to send reply")
		return
	}
	r.log.Info().
		Str("user", userID).
		Stringer("state", res.State).
		Msg("reply sent")
}

// Notify sends text to the user behind userID, as produced by UserID.
func (r *Router) Notify(ctx context.Context, userID, text string) error {
	channelID, target, ok := SplitUserID(userID)
	if !ok {
		return fmt.Errorf("malformed user id %q", userID)
	}
	return r.send(ctx, domain.OutboundMessage{
		ChannelID:    channelID,
		To:           target,
		Body:         text,
		Notification: true,
	})
}

func (r *Router) send(ctx context.Context, msg domain.OutboundMessage) error {
	ch, ok := r.channels.Get(msg.ChannelID)
	if !ok {
		return fmt.Errorf("channel not found: %s", msg.ChannelID)
	}
	if r.hooks != nil {
		r.hooks.Emit(ctx, hooks.EventMessageSending, map[string]any{
			"channel":      msg.ChannelID,
			"to":           msg.To,
			"body":         msg.Body,
			"notification": msg.Notification,
		})
	}
	return ch.Send(ctx, msg)
}

// Wire installs the router as the inbound handler of every registered channel.
func (r *Router) Wire(ctx context.Context) {
	for _, id := range r.channels.List() {
		ch, ok := r.channels.Get(id)
		if !ok {
			continue
		}
		ch.OnMessage(func(msg domain.InboundMessage) {
			r.enqueue(ctx, msg)
		})
		r.log.Debug().Str("channel", id).Msg("wired message handler")
	}
}

// enqueue queues msg behind earlier messages from the same user. A user with
// pending messages has exactly one drain goroutine.
func (r *Router) enqueue(ctx context.Context, msg domain.InboundMessage) {
	userID := UserID(msg)
	r.mu.Lock()
	q, busy := r.queues[userID]
	r.queues[userID] = append(q, msg)
	r.mu.Unlock()
	if !busy {
		go r.drain(ctx, userID)
	}
}

// drain handles the user's queue until it is empty or ctx is done.
func (r *Router) drain(ctx context.Context, userID string) {
	for {
		r.mu.Lock()
		q := r.queues[userID]
		if len(q) == 0 || ctx.Err() != nil {
			delete(r.queues, userID)
			r.mu.Unlock()
			if len(q) > 0 {
				r.log.Warn().Str("user", userID).Int("dropped", len(q)).Msg("shutting down with queued messages")
			}
			return
		}
		msg := q[0]
		r.queues[userID] = q[1:]
		r.mu.Unlock()

		r.HandleInbound(ctx, msg)
	}
}

// replyTarget is the sender for direct messages and the room otherwise.
func replyTarget(msg domain.InboundMessage) string {
	if msg.ChatType == domain.ChatTypeGroup && msg.ChatID != "" {
		return msg.ChatID
	}
	return msg.From
}
