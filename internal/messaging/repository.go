package messaging

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateDirect inserts the message row and its first recipient in one
// transaction, so a send never leaves a recipient-less direct message behind.
func (r *Repository) CreateDirect(ctx context.Context, senderID, recipientID int, content string) (*Message, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	msg := &Message{SenderID: senderID, Content: content, Kind: KindDirect}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO messages (sender_id, content, message_type)
		 VALUES ($1, $2, $3) RETURNING id, created_at`,
		senderID, content, string(KindDirect)).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO message_recipients (message_id, user_id) VALUES ($1, $2)`,
		msg.ID, recipientID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return msg, nil
}

// AddRecipient attaches another recipient to an existing message. Already
// attached is not an error (the dedup retry path hits this constantly).
func (r *Repository) AddRecipient(ctx context.Context, messageID, recipientID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO message_recipients (message_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (message_id, user_id) DO NOTHING`,
		messageID, recipientID)
	return err
}

// FindRecentDuplicate returns the newest direct message from this sender
// with identical content inside the window, or nil when there is none.
func (r *Repository) FindRecentDuplicate(ctx context.Context, senderID int, content string, window time.Duration) (*Message, error) {
	cutoff := time.Now().Add(-window)
	msg := &Message{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, sender_id, content, message_type, is_read, created_at
		 FROM messages
		 WHERE sender_id = $1 AND content = $2 AND message_type = $3 AND created_at >= $4
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		senderID, content, string(KindDirect), cutoff).
		Scan(&msg.ID, &msg.SenderID, &msg.Content, &msg.Kind, &msg.IsRead, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

const conversationFilter = `
	m.message_type = 'direct'
	AND ((m.sender_id = $1 AND r.user_id = $2) OR (m.sender_id = $2 AND r.user_id = $1))`

// Conversation returns every direct message between the unordered pair
// {viewerID, otherID}, oldest first, ties broken by insertion order.
func (r *Repository) Conversation(ctx context.Context, viewerID, otherID int) ([]*Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.sender_id, u.username, u.first_name, u.last_name,
		        m.content, m.message_type, m.is_read, m.created_at
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 JOIN message_recipients r ON r.message_id = m.id
		 WHERE `+conversationFilter+`
		 ORDER BY m.created_at ASC, m.id ASC`,
		viewerID, otherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg := &Message{}
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.SenderUsername, &msg.SenderFirst,
			&msg.SenderLast, &msg.Content, &msg.Kind, &msg.IsRead, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// LastMessage returns the newest direct message between the pair, or nil.
func (r *Repository) LastMessage(ctx context.Context, viewerID, otherID int) (*Message, error) {
	msg := &Message{}
	err := r.db.QueryRowContext(ctx,
		`SELECT m.id, m.sender_id, u.username, u.first_name, u.last_name,
		        m.content, m.message_type, m.is_read, m.created_at
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 JOIN message_recipients r ON r.message_id = m.id
		 WHERE `+conversationFilter+`
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT 1`,
		viewerID, otherID).
		Scan(&msg.ID, &msg.SenderID, &msg.SenderUsername, &msg.SenderFirst,
			&msg.SenderLast, &msg.Content, &msg.Kind, &msg.IsRead, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *Repository) HasConversation(ctx context.Context, viewerID, otherID int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM messages m
		    JOIN message_recipients r ON r.message_id = m.id
		    WHERE `+conversationFilter+`
		 )`,
		viewerID, otherID).Scan(&exists)
	return exists, err
}

// ConversationPartners lists every user the viewer has exchanged direct
// messages with, in either direction.
func (r *Repository) ConversationPartners(ctx context.Context, viewerID int) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.user_id
		 FROM messages m JOIN message_recipients r ON r.message_id = m.id
		 WHERE m.sender_id = $1 AND m.message_type = 'direct'
		 UNION
		 SELECT m.sender_id
		 FROM messages m JOIN message_recipients r ON r.message_id = m.id
		 WHERE r.user_id = $1 AND m.message_type = 'direct'`,
		viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkMessageRead flips a single message. Used by the conversation fetch,
// which flips each delivered-to-viewer message independently.
func (r *Repository) MarkMessageRead(ctx context.Context, messageID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE WHERE id = $1`, messageID)
	return err
}

// MarkConversationRead flips every unread direct message from senderID that
// recipientID received, in one bulk update.
func (r *Repository) MarkConversationRead(ctx context.Context, senderID, recipientID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE
		 WHERE sender_id = $1 AND message_type = 'direct' AND is_read = FALSE
		   AND id IN (SELECT message_id FROM message_recipients WHERE user_id = $2)`,
		senderID, recipientID)
	return err
}

func (r *Repository) UnreadCount(ctx context.Context, recipientID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM messages m JOIN message_recipients r ON r.message_id = m.id
		 WHERE r.user_id = $1 AND m.message_type = 'direct' AND m.is_read = FALSE`,
		recipientID).Scan(&count)
	return count, err
}

// UnreadFrom counts unread direct messages from one specific sender.
func (r *Repository) UnreadFrom(ctx context.Context, senderID, recipientID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM messages m JOIN message_recipients r ON r.message_id = m.id
		 WHERE m.sender_id = $1 AND r.user_id = $2
		   AND m.message_type = 'direct' AND m.is_read = FALSE`,
		senderID, recipientID).Scan(&count)
	return count, err
}
