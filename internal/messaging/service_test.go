package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"teamchat/internal/presence"
	"teamchat/internal/user"
)

func testUsers() map[int]*user.User {
	return map[int]*user.User{
		1: {ID: 1, Username: "ana", FirstName: "Ana", LastName: "Lee", JobPosition: "Developer"},
		2: {ID: 2, Username: "jdoe"},
		3: {ID: 3, Username: "maria", FirstName: "Maria", LastName: "Gomez", JobPosition: "Project Manager"},
	}
}

func newTestService(broker presence.Broker) (*Service, *fakeStore) {
	users := testUsers()
	store := newFakeStore(users)
	return NewService(store, &fakeDirectory{users: users}, broker), store
}

func TestSendIncrementsRecipientUnread(t *testing.T) {
	svc, _ := newTestService(presence.Noop{})
	ctx := context.Background()

	if _, err := svc.Send(ctx, 1, 2, "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, err := svc.UnreadCount(ctx, 2)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if got != 1 {
		t.Fatalf("recipient unread=%d want=1", got)
	}

	senderUnread, err := svc.UnreadCount(ctx, 1)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if senderUnread != 0 {
		t.Fatalf("sender unread=%d want=0", senderUnread)
	}
}

func TestConversationSymmetry(t *testing.T) {
	svc, store := newTestService(presence.Noop{})
	ctx := context.Background()

	svc.Send(ctx, 1, 2, "first")
	store.advance(time.Minute)
	svc.Send(ctx, 2, 1, "second")
	store.advance(time.Minute)
	svc.Send(ctx, 1, 2, "third")

	a, err := svc.GetConversation(ctx, 1, 2)
	if err != nil {
		t.Fatalf("GetConversation(1,2): %v", err)
	}
	b, err := svc.GetConversation(ctx, 2, 1)
	if err != nil {
		t.Fatalf("GetConversation(2,1): %v", err)
	}

	if len(a.Messages) != 3 || len(b.Messages) != 3 {
		t.Fatalf("lengths: %d vs %d, want 3", len(a.Messages), len(b.Messages))
	}
	for i := range a.Messages {
		if a.Messages[i].ID != b.Messages[i].ID {
			t.Fatalf("message %d: id %d vs %d", i, a.Messages[i].ID, b.Messages[i].ID)
		}
	}
	for i := 1; i < len(a.Messages); i++ {
		if a.Messages[i].ID < a.Messages[i-1].ID {
			t.Fatalf("messages out of order: %v", a.Messages)
		}
	}
}

func TestDedupWithinWindow(t *testing.T) {
	svc, store := newTestService(presence.Noop{})
	ctx := context.Background()

	first, err := svc.Send(ctx, 1, 2, "hi")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	store.advance(2 * time.Second)
	second, err := svc.Send(ctx, 1, 2, "hi")
	if err != nil {
		t.Fatalf("retry Send: %v", err)
	}

	if first.MessageID != second.MessageID {
		t.Fatalf("retry created new message: %d vs %d", first.MessageID, second.MessageID)
	}
	if len(store.msgs) != 1 {
		t.Fatalf("stored %d messages, want 1", len(store.msgs))
	}
	if !store.msgs[0].recipients[2] || len(store.msgs[0].recipients) != 1 {
		t.Fatalf("recipients=%v want {2}", store.msgs[0].recipients)
	}
}

func TestDedupUnionsDistinctRecipients(t *testing.T) {
	svc, store := newTestService(presence.Noop{})
	ctx := context.Background()

	svc.Send(ctx, 1, 2, "standup moved to 10am")
	store.advance(time.Second)
	svc.Send(ctx, 1, 3, "standup moved to 10am")

	if len(store.msgs) != 1 {
		t.Fatalf("stored %d messages, want 1", len(store.msgs))
	}
	if !store.msgs[0].recipients[2] || !store.msgs[0].recipients[3] {
		t.Fatalf("recipients=%v want {2,3}", store.msgs[0].recipients)
	}
}

func TestNoDedupAfterWindow(t *testing.T) {
	svc, store := newTestService(presence.Noop{})
	ctx := context.Background()

	svc.Send(ctx, 1, 2, "hi")
	store.advance(10 * time.Second)
	svc.Send(ctx, 1, 2, "hi")

	if len(store.msgs) != 2 {
		t.Fatalf("stored %d messages, want 2", len(store.msgs))
	}
}

func TestConversationFetchMarksRead(t *testing.T) {
	svc, _ := newTestService(presence.Noop{})
	ctx := context.Background()

	svc.Send(ctx, 1, 2, "one")
	svc.Send(ctx, 1, 2, "two")

	conv, err := svc.GetConversation(ctx, 2, 1)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	for _, m := range conv.Messages {
		if !m.IsRead {
			t.Fatalf("message %d still unread in response", m.ID)
		}
	}

	count, err := svc.UnreadCount(ctx, 2)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("unread after fetch=%d want=0", count)
	}
}

func TestViewerOwnMessagesStayUntouched(t *testing.T) {
	svc, store := newTestService(presence.Noop{})
	ctx := context.Background()

	svc.Send(ctx, 1, 2, "hi")
	if _, err := svc.GetConversation(ctx, 1, 2); err != nil {
		t.Fatalf("GetConversation: %v", err)
	}

	// The sender viewing their own message must not flip its read flag;
	// only the recipient's fetch does that.
	if store.msgs[0].IsRead {
		t.Fatalf("sender fetch flipped read flag")
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	svc, _ := newTestService(presence.Noop{})
	ctx := context.Background()

	svc.Send(ctx, 1, 2, "one")
	svc.Send(ctx, 1, 2, "two")

	if err := svc.MarkRead(ctx, 2, 1); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	first, _ := svc.UnreadCount(ctx, 2)

	if err := svc.MarkRead(ctx, 2, 1); err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}
	second, _ := svc.UnreadCount(ctx, 2)

	if first != 0 || second != 0 {
		t.Fatalf("unread counts %d, %d, want 0, 0", first, second)
	}
}

func TestSendValidation(t *testing.T) {
	svc, _ := newTestService(presence.Noop{})
	ctx := context.Background()

	if _, err := svc.Send(ctx, 1, 2, "   "); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("blank content: err=%v want ErrEmptyContent", err)
	}
	if _, err := svc.Send(ctx, 1, 999, "hi"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("unknown recipient: err=%v want ErrNotFound", err)
	}
}

func TestSendTrimsContent(t *testing.T) {
	svc, store := newTestService(presence.Noop{})
	ctx := context.Background()

	if _, err := svc.Send(ctx, 1, 2, "  hi  "); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if store.msgs[0].Content != "hi" {
		t.Fatalf("stored content=%q want %q", store.msgs[0].Content, "hi")
	}
}

func TestSelfMessageAllowed(t *testing.T) {
	svc, _ := newTestService(presence.Noop{})
	ctx := context.Background()

	if _, err := svc.Send(ctx, 1, 1, "note to self"); err != nil {
		t.Fatalf("self send: %v", err)
	}
	conv, err := svc.GetConversation(ctx, 1, 1)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if len(conv.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(conv.Messages))
	}
}

func TestSendSucceedsWithBrokerDown(t *testing.T) {
	svc, store := newTestService(downBroker{})
	ctx := context.Background()

	res, err := svc.Send(ctx, 1, 2, "hi")
	if err != nil {
		t.Fatalf("Send with dead broker: %v", err)
	}
	if res.MessageID == 0 {
		t.Fatalf("missing message id")
	}
	if len(store.msgs) != 1 {
		t.Fatalf("message not persisted")
	}

	// Online lookups degrade to offline rather than failing the resolver
	conv, err := svc.GetConversation(ctx, 2, 1)
	if err != nil {
		t.Fatalf("GetConversation with dead broker: %v", err)
	}
	if conv.OtherUser.IsOnline {
		t.Fatalf("dead broker reported user online")
	}
}

func TestConversationViews(t *testing.T) {
	broker := newRecordingBroker()
	svc, _ := newTestService(broker)
	ctx := context.Background()
	broker.SetOnline(ctx, 1)

	svc.Send(ctx, 1, 2, "hello")
	conv, err := svc.GetConversation(ctx, 2, 1)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}

	if conv.OtherUser.Name != "Ana Lee" || conv.OtherUser.Initials != "AL" {
		t.Fatalf("other user summary=%+v", conv.OtherUser)
	}
	if conv.OtherUser.AvatarColor != "bg-dark-cyan" {
		t.Fatalf("avatar color=%q", conv.OtherUser.AvatarColor)
	}
	if !conv.OtherUser.IsOnline {
		t.Fatalf("expected online other user")
	}

	m := conv.Messages[0]
	if m.IsSent {
		t.Fatalf("recipient view marked is_sent")
	}
	if m.SenderName != "Ana Lee" || m.Initials != "AL" {
		t.Fatalf("message view=%+v", m)
	}
	if m.Date != "2026-01-10" {
		t.Fatalf("date=%q", m.Date)
	}
}

func TestJobPositionDefaults(t *testing.T) {
	svc, _ := newTestService(presence.Noop{})
	ctx := context.Background()

	svc.Send(ctx, 2, 1, "hi")
	conv, err := svc.GetConversation(ctx, 1, 2)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if conv.OtherUser.JobPosition != "Team Member" {
		t.Fatalf("job position=%q want Team Member", conv.OtherUser.JobPosition)
	}
}

func TestListConversations(t *testing.T) {
	svc, store := newTestService(presence.Noop{})
	ctx := context.Background()

	long := strings.Repeat("a", 60)
	svc.Send(ctx, 2, 1, "old message")
	store.advance(time.Minute)
	svc.Send(ctx, 3, 1, long)

	list, err := svc.ListConversations(ctx, 1)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d conversations, want 2", len(list))
	}

	// Newest activity first
	if list[0].User.ID != 3 || list[1].User.ID != 2 {
		t.Fatalf("order: %d, %d want 3, 2", list[0].User.ID, list[1].User.ID)
	}
	if list[0].UnreadCount != 1 {
		t.Fatalf("unread=%d want 1", list[0].UnreadCount)
	}

	want := strings.Repeat("a", 50) + "..."
	if list[0].LastMessage != want {
		t.Fatalf("preview=%q want %q", list[0].LastMessage, want)
	}
	if list[1].LastMessage != "old message" {
		t.Fatalf("short preview=%q", list[1].LastMessage)
	}
}

func TestStartConversation(t *testing.T) {
	svc, _ := newTestService(presence.Noop{})
	ctx := context.Background()

	partner, err := svc.StartConversation(ctx, 1, 2)
	if err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	if partner.HasExistingConversation {
		t.Fatalf("fresh pair reported existing conversation")
	}
	if partner.User.Initials != "JD" {
		t.Fatalf("initials=%q want JD", partner.User.Initials)
	}

	svc.Send(ctx, 1, 2, "hi")
	partner, err = svc.StartConversation(ctx, 1, 2)
	if err != nil {
		t.Fatalf("StartConversation: %v", err)
	}
	if !partner.HasExistingConversation {
		t.Fatalf("existing conversation not detected")
	}

	if _, err := svc.StartConversation(ctx, 1, 999); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("unknown recipient: err=%v want ErrNotFound", err)
	}
}

func TestSearchUsers(t *testing.T) {
	svc, _ := newTestService(presence.Noop{})
	ctx := context.Background()

	short, err := svc.SearchUsers(ctx, 1, "a")
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(short) != 0 {
		t.Fatalf("short query returned %d results, want 0", len(short))
	}

	results, err := svc.SearchUsers(ctx, 1, "mar")
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(results) != 1 || results[0].ID != 3 {
		t.Fatalf("results=%+v want just user 3", results)
	}

	// The viewer never shows up in their own search
	self, err := svc.SearchUsers(ctx, 1, "ana")
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	for _, r := range self {
		if r.ID == 1 {
			t.Fatalf("viewer included in results")
		}
	}
}
