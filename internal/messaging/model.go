package messaging

import "time"

// ---------------------------------------------
// Database Models
// ---------------------------------------------

// Kind tags a message row. The messages table is shared with announcement
// flows elsewhere in the app; this package only ever creates KindDirect.
type Kind string

const (
	KindDirect       Kind = "direct"
	KindAnnouncement Kind = "announcement"
)

// Message mirrors a row in the messages table. The sender name fields are
// denormalized for UI speed (fetched via JOIN).
type Message struct {
	ID             int
	SenderID       int
	SenderUsername string
	SenderFirst    string
	SenderLast     string
	Content        string
	Kind           Kind
	IsRead         bool
	CreatedAt      time.Time
}

// ---------------------------------------------
// API Views
// ---------------------------------------------

// MessageView is one message shaped for the conversation pane.
type MessageView struct {
	ID          int    `json:"id"`
	Content     string `json:"content"`
	SenderID    int    `json:"sender_id"`
	SenderName  string `json:"sender_name"`
	Initials    string `json:"initials"`
	AvatarColor string `json:"avatar_color"`
	Timestamp   string `json:"timestamp"`
	IsSent      bool   `json:"is_sent"`
	IsRead      bool   `json:"is_read"`
	Date        string `json:"date"`
}

// UserSummary is the "other party" header of a conversation.
type UserSummary struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Initials    string `json:"initials"`
	AvatarColor string `json:"avatar_color"`
	JobPosition string `json:"job_position"`
	IsOnline    bool   `json:"is_online"`
}

type Conversation struct {
	Messages  []MessageView `json:"messages"`
	OtherUser UserSummary   `json:"other_user"`
}

type SendResult struct {
	MessageID int    `json:"message_id"`
	Timestamp string `json:"timestamp"`
}

// Partner is returned when opening a conversation from the people picker.
type Partner struct {
	User                    UserSummary `json:"user"`
	HasExistingConversation bool        `json:"has_existing_conversation"`
}

// ConversationSummary is one row of the conversation list sidebar.
type ConversationSummary struct {
	User            UserSummary `json:"user"`
	LastMessage     string      `json:"last_message"`
	LastMessageTime time.Time   `json:"last_message_time"`
	UnreadCount     int         `json:"unread_count"`
}
