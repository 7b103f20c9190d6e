package messaging

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"teamchat/internal/presence"
	"teamchat/internal/user"
)

// NotificationKind enumerates the payload types pushed over the broker.
// Keep this closed: the realtime gateway and the frontend switch on it.
type NotificationKind string

const (
	NotifyDirectMessage NotificationKind = "direct_message"
	NotifyAnnouncement  NotificationKind = "announcement"
)

// Notification is the flat payload the live-delivery layer forwards to
// connected clients.
type Notification struct {
	Type        NotificationKind `json:"type"`
	MessageID   int              `json:"message_id"`
	SenderID    int              `json:"sender_id"`
	SenderName  string           `json:"sender_name"`
	RecipientID int              `json:"recipient_id"`
	Content     string           `json:"content"`
	Timestamp   string           `json:"timestamp"`
	AvatarColor string           `json:"avatar_color"`
	Initials    string           `json:"initials"`
}

// Publisher pushes new-message notifications onto the per-user channels.
type Publisher struct {
	broker presence.Broker
}

func NewPublisher(broker presence.Broker) *Publisher {
	return &Publisher{broker: broker}
}

// PublishDirect notifies both ends of the conversation, so the sender's
// other sessions update too. Fire-and-forget: the message is already
// committed by the time we get here, so broker failures are logged and
// dropped — subscribers catch up on their next conversation fetch.
func (p *Publisher) PublishDirect(ctx context.Context, msg *Message, sender *user.User, recipientID int) {
	n := Notification{
		Type:        NotifyDirectMessage,
		MessageID:   msg.ID,
		SenderID:    sender.ID,
		SenderName:  sender.FullName(),
		RecipientID: recipientID,
		Content:     msg.Content,
		Timestamp:   msg.CreatedAt.Format(time.RFC3339),
		AvatarColor: AvatarColor(sender.ID),
		Initials:    Initials(sender.FirstName, sender.LastName, sender.Username),
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return
	}

	for _, ch := range []string{presence.UserChannel(recipientID), presence.UserChannel(sender.ID)} {
		if err := p.broker.Publish(ctx, ch, payload); err != nil {
			log.Printf("fanout publish to %s failed: %v", ch, err)
		}
	}
}
