package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cargodesk-backend/internal/config"
	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/realtime"
	"cargodesk-backend/internal/repository/memory"
	"cargodesk-backend/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminKey = "test-admin-key"

var (
	alice = model.Identity{UserID: "alice", Name: "Alice", Role: model.RoleCustomer}
	bob   = model.Identity{UserID: "bob", Name: "Bob", Role: model.RoleCustomer}
	sam   = model.Identity{UserID: "sam", Name: "Sam", Role: model.RoleStaff}
)

type testServer struct {
	app    *fiber.App
	auth   *service.AuthService
	tokens map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := memory.New()
	hub := realtime.NewHub()
	go hub.Run()
	t.Cleanup(hub.Shutdown)

	support := service.NewSupport(service.Stores{
		Chats:         db.Chats(),
		Messages:      db.Messages(),
		Notifications: db.Notifications(),
		Staff:         db.Staff(),
	}, hub, nil, service.SystemClock)
	auth := service.NewAuthService("test-secret")

	app := fiber.New()
	Mount(app, Deps{
		Config:    &config.Config{Env: "test", AdminKey: testAdminKey, WSSendRPS: 5, WSSendBurst: 10},
		Auth:      auth,
		Support:   support,
		Hub:       hub,
		Health:    map[string]Pinger{},
		StartedAt: time.Now(),
	})

	s := &testServer{app: app, auth: auth, tokens: make(map[string]string)}
	for _, id := range []model.Identity{alice, bob, sam} {
		token, err := auth.IssueAccessToken(id, time.Hour)
		require.NoError(t, err)
		s.tokens[id.UserID] = token
	}
	return s
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, v), string(r.body))
}

func (s *testServer) do(t *testing.T, who *model.Identity, method, path string, body any) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if who != nil {
		req.Header.Set("Authorization", "Bearer "+s.tokens[who.UserID])
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, header: resp.Header, body: data}
}

type messagesResponse struct {
	ChatID   *string             `json:"chatId"`
	Messages []model.MessageView `json:"messages"`
}

type chatResponse struct {
	Chat       model.Chat          `json:"chat"`
	Messages   []model.MessageView `json:"messages"`
	Pagination model.Pagination    `json:"pagination"`
}

func TestChatFlow_CustomerAndStaffConverse(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, &alice, "POST", "/api/v1/chat/messages", fiber.Map{"content": "Hello"})
	require.Equal(t, 201, res.status, string(res.body))
	var first model.MessageView
	res.decode(t, &first)
	assert.Equal(t, "Hello", first.Content)
	assert.Equal(t, "sent", first.Status)
	chatID := first.ChatID
	require.NotEmpty(t, chatID)

	res = s.do(t, &sam, "GET", "/api/v1/chat?status=open", nil)
	require.Equal(t, 200, res.status)
	var queue struct {
		Chats []model.Chat `json:"chats"`
	}
	res.decode(t, &queue)
	require.Len(t, queue.Chats, 1)
	assert.Equal(t, chatID, queue.Chats[0].ID)
	assert.Equal(t, "Hello", queue.Chats[0].LastMessage)

	res = s.do(t, &sam, "POST", "/api/v1/chat/messages", fiber.Map{"chatId": chatID, "content": "Hi Alice"})
	require.Equal(t, 201, res.status, string(res.body))

	res = s.do(t, &alice, "GET", "/api/v1/chat/messages", nil)
	require.Equal(t, 200, res.status)
	var history messagesResponse
	res.decode(t, &history)
	require.NotNil(t, history.ChatID)
	assert.Equal(t, chatID, *history.ChatID)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "Hi Alice", history.Messages[1].Content)
	assert.Equal(t, model.RoleStaff, history.Messages[1].SenderRole)

	// Alice was offline, so the reply left a persisted notification.
	res = s.do(t, &alice, "GET", "/api/v1/notifications?unread=true", nil)
	require.Equal(t, 200, res.status)
	var notes struct {
		Notifications []model.Notification `json:"notifications"`
	}
	res.decode(t, &notes)
	require.Len(t, notes.Notifications, 1)
	assert.Equal(t, chatID, notes.Notifications[0].ChatID)

	// Opening the chat marks it read.
	res = s.do(t, &alice, "GET", "/api/v1/chat/"+chatID, nil)
	require.Equal(t, 200, res.status, string(res.body))
	var opened chatResponse
	res.decode(t, &opened)
	assert.Equal(t, model.Pagination{Page: 1, Limit: service.DefaultPageSize, Total: 2}, opened.Pagination)
	require.Len(t, opened.Messages, 2)
	assert.Equal(t, "read", opened.Messages[1].Status)
	assert.Equal(t, "sent", opened.Messages[0].Status, "own messages are not marked by the author")

	res = s.do(t, &alice, "GET", "/api/v1/notifications?unread=true", nil)
	res.decode(t, &notes)
	assert.Empty(t, notes.Notifications)

	// Staff see recent support traffic across chats.
	res = s.do(t, &sam, "GET", "/api/v1/chat/messages", nil)
	require.Equal(t, 200, res.status)
	var recent messagesResponse
	res.decode(t, &recent)
	assert.Nil(t, recent.ChatID)
	assert.Len(t, recent.Messages, 2)
}

func TestChatFlow_StatusLifecycle(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, &alice, "POST", "/api/v1/chat/messages", fiber.Map{"content": "My parcel is lost"})
	require.Equal(t, 201, res.status)
	var first model.MessageView
	res.decode(t, &first)
	chatID := first.ChatID

	for _, status := range []string{"pending", "closed"} {
		res = s.do(t, &sam, "PUT", "/api/v1/chat/"+chatID+"/status", fiber.Map{"status": status})
		require.Equal(t, 200, res.status, string(res.body))
		var chat model.Chat
		res.decode(t, &chat)
		assert.Equal(t, model.ChatStatus(status), chat.Status)
	}

	res = s.do(t, &sam, "PUT", "/api/v1/chat/"+chatID+"/status", fiber.Map{"status": "pending"})
	assert.Equal(t, 400, res.status, "closed chats can only reopen")

	res = s.do(t, &alice, "POST", "/api/v1/chat/messages", fiber.Map{"chatId": chatID, "content": "Any news?"})
	require.Equal(t, 201, res.status)

	res = s.do(t, &sam, "GET", "/api/v1/chat/"+chatID, nil)
	require.Equal(t, 200, res.status)
	var opened chatResponse
	res.decode(t, &opened)
	assert.Equal(t, model.ChatOpen, opened.Chat.Status)

	var system []string
	for _, m := range opened.Messages {
		if m.Type == model.MessageSystem {
			system = append(system, m.Content)
		}
	}
	assert.Equal(t, []string{
		"Chat status changed to pending",
		"Chat status changed to closed",
		"Chat status changed to open",
	}, system)
}

func TestChatRoutes_Errors(t *testing.T) {
	s := newTestServer(t)
	res := s.do(t, &alice, "POST", "/api/v1/chat/messages", fiber.Map{"content": "Hello"})
	require.Equal(t, 201, res.status)
	var first model.MessageView
	res.decode(t, &first)
	chatID := first.ChatID

	tests := []struct {
		name   string
		who    *model.Identity
		method string
		path   string
		body   any
		want   int
	}{
		{"no token", nil, "GET", "/api/v1/chat/messages", nil, 401},
		{"foreign chat", &bob, "GET", "/api/v1/chat/" + chatID, nil, 404},
		{"unknown chat", &sam, "GET", "/api/v1/chat/00000000-0000-0000-0000-000000000000", nil, 404},
		{"customer status edit", &alice, "PUT", "/api/v1/chat/" + chatID + "/status", fiber.Map{"status": "closed"}, 403},
		{"customer export", &alice, "GET", "/api/v1/chat/" + chatID + "/export", nil, 403},
		{"bad status", &sam, "PUT", "/api/v1/chat/" + chatID + "/status", fiber.Map{"status": "archived"}, 400},
		{"empty message", &alice, "POST", "/api/v1/chat/messages", fiber.Map{"content": "  "}, 400},
		{"staff without chat", &sam, "POST", "/api/v1/chat/messages", fiber.Map{"content": "hi"}, 400},
		{"foreign send", &bob, "POST", "/api/v1/chat/messages", fiber.Map{"chatId": chatID, "content": "hi"}, 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.do(t, tt.who, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, res.status, string(res.body))
		})
	}
}

func TestChatRoutes_NewCustomerHasNoHistory(t *testing.T) {
	s := newTestServer(t)
	res := s.do(t, &bob, "GET", "/api/v1/chat/messages", nil)
	require.Equal(t, 200, res.status)
	assert.JSONEq(t, `{"chatId":null,"messages":[]}`, string(res.body))
}

func TestChatRoutes_OrderChat(t *testing.T) {
	s := newTestServer(t)
	res := s.do(t, &alice, "POST", "/api/v1/chat/orders/ORD-9", nil)
	require.Equal(t, 200, res.status, string(res.body))
	var chat model.Chat
	res.decode(t, &chat)
	assert.Equal(t, model.ChatKindOrder, chat.Kind)
	assert.Equal(t, "Order ORD-9: Alice", chat.Title)

	res = s.do(t, &alice, "POST", "/api/v1/chat/orders/ORD-9", nil)
	var again model.Chat
	res.decode(t, &again)
	assert.Equal(t, chat.ID, again.ID)
}

func TestChatRoutes_Export(t *testing.T) {
	s := newTestServer(t)
	res := s.do(t, &alice, "POST", "/api/v1/chat/messages", fiber.Map{"content": "Hello"})
	var first model.MessageView
	res.decode(t, &first)

	res = s.do(t, &sam, "GET", "/api/v1/chat/"+first.ChatID+"/export", nil)
	require.Equal(t, 200, res.status, string(res.body))
	assert.Equal(t, `attachment; filename="chat-`+first.ChatID+`.json"`, res.header.Get("Content-Disposition"))

	var export model.ChatExport
	res.decode(t, &export)
	assert.Equal(t, first.ChatID, export.Chat.ID)
	assert.Equal(t, []string{"alice"}, export.Participants)
	require.Len(t, export.Messages, 1)
	assert.Equal(t, "sent", export.Messages[0].Status, "export does not mark messages read")
}

func TestNotificationRoutes_MarkRead(t *testing.T) {
	s := newTestServer(t)
	res := s.do(t, &alice, "POST", "/api/v1/chat/messages", fiber.Map{"content": "Hello"})
	var first model.MessageView
	res.decode(t, &first)
	s.do(t, &sam, "POST", "/api/v1/chat/messages", fiber.Map{"chatId": first.ChatID, "content": "one"})
	s.do(t, &sam, "POST", "/api/v1/chat/messages", fiber.Map{"chatId": first.ChatID, "content": "two"})

	res = s.do(t, &alice, "PUT", "/api/v1/notifications/read", nil)
	require.Equal(t, 200, res.status, string(res.body))
	assert.JSONEq(t, `{"ok":true,"updated":2}`, string(res.body))

	res = s.do(t, &alice, "PUT", "/api/v1/notifications/read", fiber.Map{"ids": []string{}})
	assert.JSONEq(t, `{"ok":true,"updated":0}`, string(res.body))
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	s.do(t, &alice, "POST", "/api/v1/chat/messages", fiber.Map{"content": "Hello"})

	req := httptest.NewRequest("GET", "/api/v1/admin/stats", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	req = httptest.NewRequest("GET", "/api/v1/admin/stats", nil)
	req.Header.Set("X-Admin-Key", "not-the-key")
	resp, err = s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)

	req = httptest.NewRequest("GET", "/api/v1/admin/stats", nil)
	req.Header.Set("X-Admin-Key", testAdminKey)
	resp, err = s.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	var stats struct {
		Chats      model.ChatCounts `json:"chats"`
		ChatsTotal string           `json:"chats_total"`
		Online     int              `json:"online"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, model.ChatCounts{Open: 1}, stats.Chats)
	assert.Equal(t, "1", stats.ChatsTotal)
	assert.Zero(t, stats.Online)

	raw, _ := json.Marshal(model.StaffUpdateRequest{DisplayName: "Tess", Active: true})
	req = httptest.NewRequest("PUT", "/api/v1/admin/staff/tess", bytes.NewReader(raw))
	req.Header.Set("X-Admin-Key", testAdminKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	// The next new customer is assigned to the roster.
	res := s.do(t, &bob, "POST", "/api/v1/chat/messages", fiber.Map{"content": "Hi"})
	var msg model.MessageView
	res.decode(t, &msg)
	res = s.do(t, &sam, "GET", "/api/v1/chat/"+msg.ChatID, nil)
	var opened chatResponse
	res.decode(t, &opened)
	require.NotNil(t, opened.Chat.AssignedStaffID)
	assert.Equal(t, "tess", *opened.Chat.AssignedStaffID)
}

func TestHealthRoutes(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/health", "/ready"} {
		resp, err := s.app.Test(httptest.NewRequest("GET", path, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode, path)
	}
}

func TestPublicStatus(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.app.Test(httptest.NewRequest("GET", "/api/v1/support/status", nil), -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"support_status":"offline","staff_online":0,"queue_open":0,"queue_pending":0}`, string(body))
}

func TestValidateTokenForPeers(t *testing.T) {
	s := newTestServer(t)
	check := func(token string) model.ValidateTokenResponse {
		raw, _ := json.Marshal(model.ValidateTokenRequest{Token: token})
		req := httptest.NewRequest("POST", "/api/v1/admin/tokens/validate", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Admin-Key", testAdminKey)
		resp, err := s.app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
		var out model.ValidateTokenResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	assert.Equal(t, model.ValidateTokenResponse{Valid: true, UserID: "sam", Name: "Sam", Role: model.RoleStaff}, check(s.tokens["sam"]))
	assert.Equal(t, model.ValidateTokenResponse{Valid: false}, check("garbage"))
}
