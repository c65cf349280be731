package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/repository/memory"

	"github.com/stretchr/testify/require"
)

var (
	alice = model.Identity{UserID: "alice", Name: "Alice", Role: model.RoleCustomer}
	bob   = model.Identity{UserID: "bob", Name: "Bob", Role: model.RoleCustomer}
	sam   = model.Identity{UserID: "sam", Name: "Sam", Role: model.RoleStaff}
	tess  = model.Identity{UserID: "tess", Name: "Tess", Role: model.RoleStaff}
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type published struct {
	chatID       string
	userID       string
	participants []string
	ev           *model.WSEvent
}

type recordingDispatcher struct {
	mu     sync.Mutex
	online map[string]bool
	chat   []published
	user   []published
}

func newRecordingDispatcher(online ...string) *recordingDispatcher {
	d := &recordingDispatcher{online: make(map[string]bool)}
	for _, id := range online {
		d.online[id] = true
	}
	return d
}

func (d *recordingDispatcher) PublishChat(chatID string, participants []string, ev *model.WSEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chat = append(d.chat, published{chatID: chatID, participants: participants, ev: ev})
}

func (d *recordingDispatcher) PublishUser(userID string, ev *model.WSEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.user = append(d.user, published{userID: userID, ev: ev})
}

func (d *recordingDispatcher) IsOnline(userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online[userID]
}

func (d *recordingDispatcher) chatEvents(eventType string) []published {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []published
	for _, p := range d.chat {
		if p.ev.Type == eventType {
			out = append(out, p)
		}
	}
	return out
}

func (d *recordingDispatcher) userEvents(userID, eventType string) []published {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []published
	for _, p := range d.user {
		if p.userID == userID && p.ev.Type == eventType {
			out = append(out, p)
		}
	}
	return out
}

type alert struct {
	chatID, recipientID, messageID string
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []alert
}

func (a *recordingAlerter) AlertOffline(chat *model.Chat, recipientID string, msg *model.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert{chat.ID, recipientID, msg.ID})
}

type testEngine struct {
	*Support
	db       *memory.DB
	clock    *fakeClock
	dispatch *recordingDispatcher
	alerts   *recordingAlerter
}

func newTestEngine(t *testing.T, online ...string) *testEngine {
	t.Helper()
	clock := newFakeClock()
	db := memory.NewWithClock(clock.Now)
	dispatch := newRecordingDispatcher(online...)
	alerts := &recordingAlerter{}
	support := NewSupport(memoryStores(db), dispatch, alerts, clock)
	return &testEngine{Support: support, db: db, clock: clock, dispatch: dispatch, alerts: alerts}
}

func memoryStores(db *memory.DB) Stores {
	return Stores{
		Chats:         db.Chats(),
		Messages:      db.Messages(),
		Notifications: db.Notifications(),
		Staff:         db.Staff(),
	}
}

func (e *testEngine) send(t *testing.T, who model.Identity, chatID, body string) *model.Message {
	t.Helper()
	msg, err := e.Router.Send(context.Background(), ChannelHTTP, who, model.SendMessageRequest{
		ChatID:  chatID,
		Content: body,
		Type:    model.MessageText,
	})
	require.NoError(t, err)
	return msg
}

func (e *testEngine) chat(t *testing.T, id string) *model.Chat {
	t.Helper()
	chat, err := e.db.Chats().GetByID(context.Background(), id)
	require.NoError(t, err)
	return chat
}

func (e *testEngine) history(t *testing.T, chatID string) []model.Message {
	t.Helper()
	msgs, err := e.Messages.History(context.Background(), chatID)
	require.NoError(t, err)
	return msgs
}

func systemMessages(msgs []model.Message) []string {
	var out []string
	for _, m := range msgs {
		if m.Kind == model.MessageSystem {
			out = append(out, m.Body)
		}
	}
	return out
}
