// Package channel keeps the chat transports the bot talks through.
package channel

import (
	"context"
	"sort"
	"sync"

	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/logging"
)

// Registry holds the configured channels by id.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]domain.Channel
	log      *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		channels: make(map[string]domain.Channel),
		log:      log.Sub("channels"),
	}
}

// Register adds ch, replacing any channel with the same id.
func (r *Registry) Register(ch domain.Channel) {
	r.mu.Lock()
	r.channels[ch.ID()] = ch
	r.mu.Unlock()
	r.log.Info().Str("channel", ch.ID()).Msg("channel registered")
}

// Get returns the channel with the given id.
func (r *Registry) Get(id string) (domain.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// List returns the registered ids, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Status describes every channel, in id order. Channels that cannot report
// on themselves are assumed running.
func (r *Registry) Status() []domain.ChannelStatus {
	out := make([]domain.ChannelStatus, 0, r.Count())
	for _, id := range r.List() {
		ch, ok := r.Get(id)
		if !ok {
			continue
		}
		if sr, ok := ch.(domain.StatusReporter); ok {
			out = append(out, sr.Status())
			continue
		}
		out = append(out, domain.ChannelStatus{ChannelID: id, Running: true})
	}
	return out
}

// StartAll starts every channel in its own goroutine; Start may block for
// the life of the connection. Start errors are logged.
func (r *Registry) StartAll(ctx context.Context) {
	for _, id := range r.List() {
		id := id
		ch, _ := r.Get(id)
		r.log.Info().Str("channel", id).Msg("starting channel")
		go func() {
			if err := ch.Start(ctx); err != nil {
				r.log.Error().Err(err).Str("channel", id).Msg("channel exited with error")
			}
		}()
	}
}

// StopAll stops every channel, logging failures.
func (r *Registry) StopAll(ctx context.Context) {
	for _, id := range r.List() {
		ch, _ := r.Get(id)
		r.log.Info().Str("channel", id).Msg("stopping channel")
		if err := ch.Stop(ctx); err != nil {
			r.log.Error().Err(err).Str("channel", id).Msg("failed to stop channel")
		}
	}
}
