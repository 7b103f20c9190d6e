package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"teamchat/internal/presence"
	"teamchat/internal/user"
)

// Identical-content sends from the same sender inside this window are
// coalesced into one stored message. This deliberately tolerates
// double-clicks and retried network calls, at the cost of conflating two
// genuinely identical rapid messages. Concurrent sends racing the window may
// still produce two rows; that is accepted.
const dedupWindow = 5 * time.Second

const lastMessagePreviewLen = 50

// ErrEmptyContent is returned when a send has no content after trimming.
var ErrEmptyContent = errors.New("message content is empty")

// Store is the persistence capability this service needs. Satisfied by
// *Repository; tests use an in-memory fake.
type Store interface {
	CreateDirect(ctx context.Context, senderID, recipientID int, content string) (*Message, error)
	AddRecipient(ctx context.Context, messageID, recipientID int) error
	FindRecentDuplicate(ctx context.Context, senderID int, content string, window time.Duration) (*Message, error)
	Conversation(ctx context.Context, viewerID, otherID int) ([]*Message, error)
	LastMessage(ctx context.Context, viewerID, otherID int) (*Message, error)
	HasConversation(ctx context.Context, viewerID, otherID int) (bool, error)
	ConversationPartners(ctx context.Context, viewerID int) ([]int, error)
	MarkMessageRead(ctx context.Context, messageID int) error
	MarkConversationRead(ctx context.Context, senderID, recipientID int) error
	UnreadCount(ctx context.Context, recipientID int) (int, error)
	UnreadFrom(ctx context.Context, senderID, recipientID int) (int, error)
}

// UserDirectory is what we need from the user feature.
type UserDirectory interface {
	GetByID(ctx context.Context, id int) (*user.User, error)
	Search(ctx context.Context, excludeID int, query string) ([]*user.User, error)
}

type Service struct {
	store  Store
	users  UserDirectory
	broker presence.Broker
	pub    *Publisher
}

func NewService(store Store, users UserDirectory, broker presence.Broker) *Service {
	return &Service{
		store:  store,
		users:  users,
		broker: broker,
		pub:    NewPublisher(broker),
	}
}

// GetConversation returns the full direct-message history between the viewer
// and the other user, oldest first, plus the other user's summary. Unread
// messages addressed to the viewer are flipped to read as part of producing
// the response.
func (s *Service) GetConversation(ctx context.Context, viewerID, otherID int) (*Conversation, error) {
	other, err := s.users.GetByID(ctx, otherID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.store.Conversation(ctx, viewerID, otherID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		if m.SenderID != viewerID && !m.IsRead {
			// Each flip is independent. A failed one just stays unread and
			// gets picked up by the next fetch or an explicit mark-read.
			if err := s.store.MarkMessageRead(ctx, m.ID); err == nil {
				m.IsRead = true
			}
		}
		views = append(views, s.messageView(m, viewerID))
	}

	return &Conversation{
		Messages:  views,
		OtherUser: s.userSummary(ctx, other),
	}, nil
}

// Send stores a direct message and fans it out. Identical content from the
// same sender within the dedup window reuses the existing row, appending the
// recipient instead of creating a duplicate. Self-messages are permitted.
func (s *Service) Send(ctx context.Context, senderID, recipientID int, content string) (*SendResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	if _, err := s.users.GetByID(ctx, recipientID); err != nil {
		return nil, err
	}
	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.FindRecentDuplicate(ctx, senderID, content, dedupWindow)
	if err != nil {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	if msg != nil {
		if err := s.store.AddRecipient(ctx, msg.ID, recipientID); err != nil {
			return nil, fmt.Errorf("append recipient: %w", err)
		}
	} else {
		msg, err = s.store.CreateDirect(ctx, senderID, recipientID, content)
		if err != nil {
			return nil, fmt.Errorf("store message: %w", err)
		}
	}

	s.pub.PublishDirect(ctx, msg, sender, recipientID)

	return &SendResult{
		MessageID: msg.ID,
		Timestamp: msg.CreatedAt.Format(time.RFC3339),
	}, nil
}

// MarkRead flips every unread direct message from otherID to the viewer in
// one bulk update. Idempotent.
func (s *Service) MarkRead(ctx context.Context, viewerID, otherID int) error {
	return s.store.MarkConversationRead(ctx, otherID, viewerID)
}

// UnreadCount counts unread direct messages addressed to the viewer.
func (s *Service) UnreadCount(ctx context.Context, viewerID int) (int, error) {
	return s.store.UnreadCount(ctx, viewerID)
}

// StartConversation resolves a recipient into a partner summary for the
// people picker, noting whether any history already exists.
func (s *Service) StartConversation(ctx context.Context, viewerID, recipientID int) (*Partner, error) {
	recipient, err := s.users.GetByID(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.HasConversation(ctx, viewerID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("check conversation: %w", err)
	}

	return &Partner{
		User:                    s.userSummary(ctx, recipient),
		HasExistingConversation: exists,
	}, nil
}

// ListConversations builds the sidebar: one entry per conversation partner
// with last-message preview and unread count, newest activity first.
func (s *Service) ListConversations(ctx context.Context, viewerID int) ([]ConversationSummary, error) {
	partners, err := s.store.ConversationPartners(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}

	summaries := make([]ConversationSummary, 0, len(partners))
	for _, id := range partners {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			// Partner rows can outlive a deleted account; skip them.
			continue
		}
		last, err := s.store.LastMessage(ctx, viewerID, id)
		if err != nil || last == nil {
			continue
		}
		unread, err := s.store.UnreadFrom(ctx, id, viewerID)
		if err != nil {
			return nil, fmt.Errorf("count unread: %w", err)
		}

		summaries = append(summaries, ConversationSummary{
			User:            s.userSummary(ctx, u),
			LastMessage:     previewOf(last.Content),
			LastMessageTime: last.CreatedAt,
			UnreadCount:     unread,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessageTime.After(summaries[j].LastMessageTime)
	})
	return summaries, nil
}

// SearchUsers matches team members for the people picker. Queries under two
// characters return nothing.
func (s *Service) SearchUsers(ctx context.Context, viewerID int, query string) ([]UserSummary, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return []UserSummary{}, nil
	}

	users, err := s.users.Search(ctx, viewerID, query)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	results := make([]UserSummary, 0, len(users))
	for _, u := range users {
		results = append(results, s.userSummary(ctx, u))
	}
	return results, nil
}

func (s *Service) userSummary(ctx context.Context, u *user.User) UserSummary {
	job := u.JobPosition
	if job == "" {
		job = "Team Member"
	}
	return UserSummary{
		ID:          u.ID,
		Name:        u.FullName(),
		Initials:    Initials(u.FirstName, u.LastName, u.Username),
		AvatarColor: AvatarColor(u.ID),
		JobPosition: job,
		IsOnline:    s.isOnline(ctx, u.ID),
	}
}

func (s *Service) messageView(m *Message, viewerID int) MessageView {
	name := strings.TrimSpace(m.SenderFirst + " " + m.SenderLast)
	if name == "" {
		name = m.SenderUsername
	}
	return MessageView{
		ID:          m.ID,
		Content:     m.Content,
		SenderID:    m.SenderID,
		SenderName:  name,
		Initials:    Initials(m.SenderFirst, m.SenderLast, m.SenderUsername),
		AvatarColor: AvatarColor(m.SenderID),
		Timestamp:   m.CreatedAt.Format(time.RFC3339),
		IsSent:      m.SenderID == viewerID,
		IsRead:      m.IsRead,
		Date:        m.CreatedAt.Format("2006-01-02"),
	}
}

// isOnline degrades to offline on any broker error.
func (s *Service) isOnline(ctx context.Context, userID int) bool {
	online, err := s.broker.Exists(ctx, presence.OnlineKey(userID))
	if err != nil {
		return false
	}
	return online
}

func previewOf(content string) string {
	r := []rune(content)
	if len(r) <= lastMessagePreviewLen {
		return content
	}
	return string(r[:lastMessagePreviewLen]) + "..."
}
