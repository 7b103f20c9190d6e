package messaging

import (
	"context"
	"errors"
	"strings"
	"time"

	"teamchat/internal/presence"
	"teamchat/internal/user"
)

// fakeStore is an in-memory Store with a controllable clock, so dedup-window
// behavior can be tested without sleeping.
type fakeStore struct {
	users  map[int]*user.User
	clock  time.Time
	nextID int
	msgs   []*fakeMessage
}

type fakeMessage struct {
	Message
	recipients map[int]bool
}

func newFakeStore(users map[int]*user.User) *fakeStore {
	return &fakeStore{
		users: users,
		clock: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fakeStore) denormalize(fm *fakeMessage) *Message {
	if u, ok := f.users[fm.SenderID]; ok {
		fm.SenderUsername = u.Username
		fm.SenderFirst = u.FirstName
		fm.SenderLast = u.LastName
	}
	return &fm.Message
}

func (fm *fakeMessage) between(a, b int) bool {
	return fm.Kind == KindDirect &&
		((fm.SenderID == a && fm.recipients[b]) || (fm.SenderID == b && fm.recipients[a]))
}

func (f *fakeStore) CreateDirect(ctx context.Context, senderID, recipientID int, content string) (*Message, error) {
	f.nextID++
	fm := &fakeMessage{
		Message: Message{
			ID:        f.nextID,
			SenderID:  senderID,
			Content:   content,
			Kind:      KindDirect,
			CreatedAt: f.clock,
		},
		recipients: map[int]bool{recipientID: true},
	}
	f.msgs = append(f.msgs, fm)
	return f.denormalize(fm), nil
}

func (f *fakeStore) AddRecipient(ctx context.Context, messageID, recipientID int) error {
	for _, fm := range f.msgs {
		if fm.ID == messageID {
			fm.recipients[recipientID] = true
			return nil
		}
	}
	return errors.New("message not found")
}

func (f *fakeStore) FindRecentDuplicate(ctx context.Context, senderID int, content string, window time.Duration) (*Message, error) {
	cutoff := f.clock.Add(-window)
	for i := len(f.msgs) - 1; i >= 0; i-- {
		fm := f.msgs[i]
		if fm.SenderID == senderID && fm.Content == content && fm.Kind == KindDirect &&
			!fm.CreatedAt.Before(cutoff) {
			return f.denormalize(fm), nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Conversation(ctx context.Context, viewerID, otherID int) ([]*Message, error) {
	var out []*Message
	for _, fm := range f.msgs {
		if fm.between(viewerID, otherID) {
			out = append(out, f.denormalize(fm))
		}
	}
	return out, nil
}

func (f *fakeStore) LastMessage(ctx context.Context, viewerID, otherID int) (*Message, error) {
	for i := len(f.msgs) - 1; i >= 0; i-- {
		if f.msgs[i].between(viewerID, otherID) {
			return f.denormalize(f.msgs[i]), nil
		}
	}
	return nil, nil
}

func (f *fakeStore) HasConversation(ctx context.Context, viewerID, otherID int) (bool, error) {
	for _, fm := range f.msgs {
		if fm.between(viewerID, otherID) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ConversationPartners(ctx context.Context, viewerID int) ([]int, error) {
	seen := map[int]bool{}
	var out []int
	for _, fm := range f.msgs {
		if fm.Kind != KindDirect {
			continue
		}
		if fm.SenderID == viewerID {
			for id := range fm.recipients {
				if !seen[id] {
					seen[id] = true
					out = append(out, id)
				}
			}
		} else if fm.recipients[viewerID] && !seen[fm.SenderID] {
			seen[fm.SenderID] = true
			out = append(out, fm.SenderID)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkMessageRead(ctx context.Context, messageID int) error {
	for _, fm := range f.msgs {
		if fm.ID == messageID {
			fm.IsRead = true
			return nil
		}
	}
	return errors.New("message not found")
}

func (f *fakeStore) MarkConversationRead(ctx context.Context, senderID, recipientID int) error {
	for _, fm := range f.msgs {
		if fm.Kind == KindDirect && fm.SenderID == senderID && fm.recipients[recipientID] {
			fm.IsRead = true
		}
	}
	return nil
}

func (f *fakeStore) UnreadCount(ctx context.Context, recipientID int) (int, error) {
	count := 0
	for _, fm := range f.msgs {
		if fm.Kind == KindDirect && fm.recipients[recipientID] && !fm.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) UnreadFrom(ctx context.Context, senderID, recipientID int) (int, error) {
	count := 0
	for _, fm := range f.msgs {
		if fm.Kind == KindDirect && fm.SenderID == senderID && fm.recipients[recipientID] && !fm.IsRead {
			count++
		}
	}
	return count, nil
}

// fakeDirectory backs UserDirectory with the same user map as the store.
type fakeDirectory struct {
	users map[int]*user.User
}

func (d *fakeDirectory) GetByID(ctx context.Context, id int) (*user.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (d *fakeDirectory) Search(ctx context.Context, excludeID int, query string) ([]*user.User, error) {
	q := strings.ToLower(query)
	var out []*user.User
	for _, u := range d.users {
		if u.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(strings.ToLower(u.FirstName), q) ||
			strings.Contains(strings.ToLower(u.LastName), q) {
			out = append(out, u)
		}
		if len(out) == 10 {
			break
		}
	}
	return out, nil
}

// recordingBroker captures publishes and online keys.
type recordingBroker struct {
	published map[string][][]byte
	online    map[string]bool
}

func newRecordingBroker() *recordingBroker {
	return &recordingBroker{
		published: make(map[string][][]byte),
		online:    make(map[string]bool),
	}
}

func (b *recordingBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *recordingBroker) Exists(ctx context.Context, key string) (bool, error) {
	return b.online[key], nil
}

func (b *recordingBroker) SetOnline(ctx context.Context, userID int) error {
	b.online[presence.OnlineKey(userID)] = true
	return nil
}

func (b *recordingBroker) SetOffline(ctx context.Context, userID int) error {
	delete(b.online, presence.OnlineKey(userID))
	return nil
}

// downBroker fails every call, like an unreachable Redis.
type downBroker struct{}

var errBrokerDown = errors.New("connection refused")

func (downBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return errBrokerDown
}
func (downBroker) Exists(ctx context.Context, key string) (bool, error) { return false, errBrokerDown }
func (downBroker) SetOnline(ctx context.Context, userID int) error      { return errBrokerDown }
func (downBroker) SetOffline(ctx context.Context, userID int) error     { return errBrokerDown }
