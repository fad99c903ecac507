package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PaulBabatuyi/coova/internal/apperr"
	"github.com/PaulBabatuyi/coova/internal/data"
	"github.com/PaulBabatuyi/coova/internal/data/memory"
	"github.com/PaulBabatuyi/coova/internal/logging"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages map[string]int
	reads    map[string]int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{messages: map[string]int{}, reads: map[string]int{}}
}

func (n *recordingNotifier) MessageCreated(_ context.Context, recipients []string, _ *data.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, r := range recipients {
		n.messages[r]++
	}
}

func (n *recordingNotifier) ConversationRead(_ context.Context, recipients []string, _, _ string, _ time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, r := range recipients {
		n.reads[r]++
	}
}

type fixture struct {
	store    *memory.Store
	svc      *Service
	clock    *manualClock
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.New()
	require.NoError(t, s.CreateResource(context.Background(), &data.Resource{
		ID: "van-1", OwnerID: "host", Title: "Camper van", PricePerHour: 3500, Visible: true,
	}))
	clk := &manualClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	n := newRecordingNotifier()
	svc := NewService(Stores{Conversations: s, Messages: s, Cursors: s, Resources: s}, logging.Discard(),
		WithClock(clk.Now), WithNotifier(n))
	return &fixture{store: s, svc: svc, clock: clk, notifier: n}
}

func (f *fixture) send(t *testing.T, conv, sender, body string) *data.Message {
	t.Helper()
	f.clock.Advance(time.Second)
	m, err := f.svc.SendMessage(context.Background(), SendRequest{ConversationID: conv, SenderID: sender, Body: body})
	require.NoError(t, err)
	return m
}

func TestUnreadScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.OpenConversation(ctx, "alice", []string{"bob"}, "van-1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		f.send(t, c.ID, "bob", "hello")
	}

	n, err := f.svc.UnreadCount(ctx, c.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	n, err = f.svc.UnreadCount(ctx, c.ID, "bob")
	require.NoError(t, err)
	require.Zero(t, n, "own messages are never unread")

	f.clock.Advance(time.Second)
	_, err = f.svc.MarkRead(ctx, c.ID, "alice")
	require.NoError(t, err)

	n, err = f.svc.UnreadCount(ctx, c.ID, "alice")
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, 1, f.notifier.reads["bob"])
	require.Equal(t, 3, f.notifier.messages["alice"])
}

func TestMarkReadIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.OpenConversation(ctx, "alice", []string{"bob"}, "")
	require.NoError(t, err)

	first, err := f.svc.MarkRead(ctx, c.ID, "alice")
	require.NoError(t, err)

	// a clock step backwards must not rewind the cursor
	f.clock.Advance(-time.Minute)
	second, err := f.svc.MarkRead(ctx, c.ID, "alice")
	require.NoError(t, err)
	require.True(t, !second.Before(first), "cursor regressed from %v to %v", first, second)

	f.clock.Advance(2 * time.Minute)
	third, err := f.svc.MarkRead(ctx, c.ID, "alice")
	require.NoError(t, err)
	require.True(t, third.After(first))
}

func TestParticipantChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.OpenConversation(ctx, "alice", []string{"bob"}, "")
	require.NoError(t, err)

	_, err = f.svc.MarkRead(ctx, c.ID, "mallory")
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.svc.UnreadCount(ctx, c.ID, "mallory")
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.svc.SendMessage(ctx, SendRequest{ConversationID: c.ID, SenderID: "mallory", Body: "hi"})
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.svc.History(ctx, c.ID, "mallory", time.Time{}, 0)
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.svc.MarkRead(ctx, "missing", "alice")
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestOpenConversationDedupes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.OpenConversation(ctx, "alice", []string{"bob"}, "van-1")
	require.NoError(t, err)
	b, err := f.svc.OpenConversation(ctx, "bob", []string{" alice ", "bob"}, "van-1")
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID)
	require.Equal(t, []string{"alice", "bob"}, b.Participants)

	other, err := f.svc.OpenConversation(ctx, "alice", []string{"bob"}, "")
	require.NoError(t, err)
	require.NotEqual(t, a.ID, other.ID, "a different resource is a different conversation")

	_, err = f.svc.OpenConversation(ctx, "alice", []string{"alice"}, "")
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.OpenConversation(ctx, "alice", []string{"bob"}, "ghost")
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.OpenConversation(ctx, "alice", []string{"bob"}, "")
	require.NoError(t, err)

	cases := map[string]SendRequest{
		"empty":           {ConversationID: c.ID, SenderID: "alice", Body: "   "},
		"too long":        {ConversationID: c.ID, SenderID: "alice", Body: strings.Repeat("é", maxBodyRunes+1)},
		"bad attachment":  {ConversationID: c.ID, SenderID: "alice", Attachments: []data.Attachment{{URL: "https://x/y.png"}}},
		"too many files":  {ConversationID: c.ID, SenderID: "alice", Attachments: make([]data.Attachment, maxAttachments+1)},
		"missing convers": {SenderID: "alice", Body: "hi"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.SendMessage(ctx, req)
			require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}

	m, err := f.svc.SendMessage(ctx, SendRequest{
		ConversationID: c.ID, SenderID: "alice", ClientRef: "tmp-1",
		Attachments: []data.Attachment{{URL: "https://x/y.png", Name: "y.png"}},
	})
	require.NoError(t, err)
	require.Equal(t, "tmp-1", m.ClientRef)
}

func TestSendAdvancesSenderCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.OpenConversation(ctx, "alice", []string{"bob"}, "")
	require.NoError(t, err)

	f.send(t, c.ID, "bob", "one")
	f.send(t, c.ID, "bob", "two")
	f.send(t, c.ID, "alice", "reply")

	// replying implies alice has read everything before her reply
	n, err := f.svc.UnreadCount(ctx, c.ID, "alice")
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = f.svc.UnreadCount(ctx, c.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestInboxOrderingAndTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	withBob, err := f.svc.OpenConversation(ctx, "alice", []string{"bob"}, "van-1")
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	withCarol, err := f.svc.OpenConversation(ctx, "alice", []string{"carol"}, "")
	require.NoError(t, err)

	f.send(t, withCarol.ID, "carol", "first")
	f.send(t, withBob.ID, "bob", strings.Repeat("x", 200))
	f.send(t, withBob.ID, "bob", "latest from bob")

	inbox, err := f.svc.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	require.Equal(t, withBob.ID, inbox[0].ConversationID)
	require.Equal(t, []string{"bob"}, inbox[0].Counterparts)
	require.Equal(t, int64(2), inbox[0].Unread)
	require.Equal(t, "latest from bob", inbox[0].LastMessage.Text)
	require.NotNil(t, inbox[0].Resource)
	require.Equal(t, "Camper van", inbox[0].Resource.Title)
	require.Nil(t, inbox[1].Resource)
	require.Equal(t, int64(1), inbox[1].Unread)

	total, err := f.svc.TotalUnread(ctx, "alice")
	require.NoError(t, err)
	var sum int64
	for _, s := range inbox {
		sum += s.Unread
	}
	require.Equal(t, sum, total, "badge and inbox must agree")
	require.Equal(t, total, SumUnread(inbox))

	// listing the inbox never marks anything read
	again, err := f.svc.UnreadCount(ctx, withBob.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(2), again)
}

func TestInboxPreviewVariants(t *testing.T) {
	long := strings.Repeat("ü", 150)
	p := preview(&data.Message{Body: long})
	require.Equal(t, previewRunes+1, len([]rune(p.Text)))

	p = preview(&data.Message{Attachments: []data.Attachment{{URL: "u", Name: "n"}}})
	require.Equal(t, "[attachment]", p.Text)

	p = preview(&data.Message{Attachments: []data.Attachment{{URL: "u", Name: "n"}, {URL: "v", Name: "m"}}})
	require.Equal(t, "[2 attachments]", p.Text)
	require.Equal(t, 2, p.Attachments)
}

func TestHistoryAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.OpenConversation(ctx, "alice", []string{"bob"}, "")
	require.NoError(t, err)

	var sent []*data.Message
	for i := 0; i < 5; i++ {
		sent = append(sent, f.send(t, c.ID, "bob", "m"))
	}

	page, err := f.svc.History(ctx, c.ID, "alice", time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, sent[3].ID, page[0].ID)
	require.Equal(t, sent[4].ID, page[1].ID)

	older, err := f.svc.History(ctx, c.ID, "alice", page[0].CreatedAt, 10)
	require.NoError(t, err)
	require.Len(t, older, 3)

	err = f.svc.DeleteMessage(ctx, c.ID, sent[4].ID, "alice")
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, f.svc.DeleteMessage(ctx, c.ID, sent[4].ID, "bob"))

	err = f.svc.DeleteMessage(ctx, c.ID, sent[4].ID, "bob")
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	n, err := f.svc.UnreadCount(ctx, c.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(4), n)

	inbox, err := f.svc.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, sent[3].ID, inbox[0].LastMessage.ID)
}

func TestHiddenListingOnlyShownToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.svc.OpenConversation(ctx, "guest", []string{"host"}, "van-1")
	require.NoError(t, err)
	f.send(t, conv.ID, "guest", "is it free?")

	van, err := f.store.GetResource(ctx, "van-1")
	require.NoError(t, err)
	van.Visible = false
	require.NoError(t, f.store.UpdateResource(ctx, van))

	guestInbox, err := f.svc.ListConversations(ctx, "guest")
	require.NoError(t, err)
	require.Len(t, guestInbox, 1)
	require.Nil(t, guestInbox[0].Resource)

	hostInbox, err := f.svc.ListConversations(ctx, "host")
	require.NoError(t, err)
	require.Len(t, hostInbox, 1)
	require.NotNil(t, hostInbox[0].Resource)
	require.Equal(t, "Camper van", hostInbox[0].Resource.Title)

	_, err = f.svc.OpenConversation(ctx, "stranger", []string{"host"}, "van-1")
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.svc.OpenConversation(ctx, "host", []string{"mechanic"}, "van-1")
	require.NoError(t, err)
}
