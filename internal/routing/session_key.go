package routing

import (
	"strings"

	"github.com/soyeahso/agendabot/internal/domain"
)

// UserID is the stable owner id for the sender of msg: "<channel>:<sender>".
// Notifications for appointments created through msg are routed back by it.
func UserID(msg domain.InboundMessage) string {
	return msg.ChannelID + ":" + msg.From
}

// SplitUserID reverses UserID. The sender part may itself contain colons.
func SplitUserID(userID string) (channelID, target string, ok bool) {
	channelID, target, ok = strings.Cut(userID, ":")
	if !ok || channelID == "" || target == "" {
		return "", "", false
	}
	return channelID, target, true
}
