package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmang24/si-opportunity-manager/internal/auth"
	"github.com/zmang24/si-opportunity-manager/internal/config"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/http/handler"
	"github.com/zmang24/si-opportunity-manager/internal/http/middleware"
	"github.com/zmang24/si-opportunity-manager/internal/http/router"
	"github.com/zmang24/si-opportunity-manager/internal/testutil"
	"go.uber.org/zap"
)

type testAPI struct {
	t   *testing.T
	env *testutil.Env
	srv *httptest.Server
}

func newTestAPI(t *testing.T, mutators ...func(*config.Config)) *testAPI {
	t.Helper()
	env := testutil.NewEnv(t, mutators...)
	log := zap.NewNop()
	cfg := env.Config

	rt := router.NewRouter(
		cfg,
		log,
		env.DB,
		auth.NewMiddleware(env.Tokens, env.Core.Users, log),
		middleware.NewRateLimiter(&cfg.RateLimit, log),
		handler.NewTicketHandler(env.Tickets, env.Lifecycle, log),
		handler.NewAttachmentHandler(env.Attachments, cfg.Storage.MaxUploadBytes(), log),
		handler.NewNotificationHandler(env.Notifications, log),
		handler.NewEventsHandler(env.Bus, cfg.CORS.AllowedOrigins, log),
		handler.NewVehicleHandler(env.Vehicles, log),
		handler.NewAuthHandler(env.Users, log),
		handler.NewBlobHandler(env.Blobs, env.Signer, env.Clock, log),
	)
	srv := httptest.NewServer(rt.Setup())
	t.Cleanup(srv.Close)
	return &testAPI{t: t, env: env, srv: srv}
}

func (a *testAPI) token(user *domain.User) string {
	a.t.Helper()
	token, _, err := a.env.Tokens.Issue(user.ID, time.Hour)
	require.NoError(a.t, err)
	return token
}

func (a *testAPI) request(method, path string, user *domain.User, body io.Reader, contentType string) *http.Response {
	a.t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, body)
	require.NoError(a.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(user))
	}
	resp, err := a.srv.Client().Do(req)
	require.NoError(a.t, err)
	a.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (a *testAPI) json(method, path string, user *domain.User, body interface{}) *http.Response {
	a.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		r = bytes.NewReader(raw)
	}
	return a.request(method, path, user, r, "application/json")
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func ticketBody(description string) map[string]interface{} {
	return map[string]interface{}{
		"vehicle":     map[string]interface{}{"year": 2024, "make": "Toyota", "model": "Camry"},
		"systems":     []map[string]interface{}{{"code": "ACC", "affectedPortions": []string{"R&I"}}},
		"description": description,
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, func(c *config.Config) {
		c.Security.FrameOptions = "DENY"
		c.Security.ContentTypeNosniff = true
	})

	resp := api.request(http.MethodGet, "/health", nil, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp = api.request(http.MethodGet, "/health/ready", nil, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]interface{}](t, resp)
	assert.Equal(t, "healthy", body["status"])

	resp = api.request(http.MethodGet, "/health/db", nil, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDIsEchoed(t *testing.T) {
	api := newTestAPI(t)
	req, err := http.NewRequest(http.MethodGet, api.srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	resp, err := api.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get(middleware.RequestIDHeader))
}

func TestAuthentication(t *testing.T) {
	api := newTestAPI(t)
	user := testutil.CreateUser(t, api.env.DB, "alice", domain.RoleUser, "north")

	t.Run("missing token", func(t *testing.T) {
		resp := api.request(http.MethodGet, "/api/v1/tickets", nil, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, api.srv.URL+"/api/v1/auth/me", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		resp, err := api.srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("me", func(t *testing.T) {
		resp := api.request(http.MethodGet, "/api/v1/auth/me", user, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		me := decode[domain.UserDTO](t, resp)
		assert.Equal(t, user.ID, me.ID)
		assert.Equal(t, "north", me.Team)
	})

	t.Run("deactivated user", func(t *testing.T) {
		token := api.token(user)
		require.NoError(t, api.env.Users.SetActive(testutil.As(user), "alice", false))
		t.Cleanup(func() { _ = api.env.Users.SetActive(testutil.As(user), "alice", true) })

		req, err := http.NewRequest(http.MethodGet, api.srv.URL+"/api/v1/auth/me", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := api.srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestTicketEndpoints(t *testing.T) {
	api := newTestAPI(t)
	creator := testutil.CreateUser(t, api.env.DB, "alice", domain.RoleUser, "")
	acceptor := testutil.CreateUser(t, api.env.DB, "bob", domain.RoleUser, "")
	bystander := testutil.CreateUser(t, api.env.DB, "carol", domain.RoleUser, "")
	admin := testutil.CreateUser(t, api.env.DB, "root", domain.RoleAdmin, "")

	resp := api.json(http.MethodPost, "/api/v1/tickets", creator, ticketBody("Camry ACC calibration"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ticket := decode[domain.TicketDTO](t, resp)
	assert.Equal(t, "/api/v1/tickets/"+ticket.ID.String(), resp.Header.Get("Location"))
	assert.Equal(t, "SI-2026-00001", ticket.TicketNumber)
	ticketPath := "/api/v1/tickets/" + ticket.ID.String()

	t.Run("create validation", func(t *testing.T) {
		body := ticketBody("")
		resp := api.json(http.MethodPost, "/api/v1/tickets", creator, body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		apiErr := decode[domain.APIError](t, resp)
		assert.Equal(t, domain.ErrorTypeValidation, apiErr.Type)
		assert.Contains(t, apiErr.Errors, "description")
	})

	t.Run("create rejects unknown fields", func(t *testing.T) {
		body := ticketBody("x")
		body["priority"] = "high"
		resp := api.json(http.MethodPost, "/api/v1/tickets", creator, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("create with unknown system", func(t *testing.T) {
		body := ticketBody("x")
		body["systems"] = []map[string]interface{}{{"code": "NOPE"}}
		resp := api.json(http.MethodPost, "/api/v1/tickets", creator, body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		apiErr := decode[domain.APIError](t, resp)
		assert.Contains(t, apiErr.Errors, "systems[0].code")
	})

	t.Run("get", func(t *testing.T) {
		resp := api.json(http.MethodGet, ticketPath, bystander, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decode[domain.TicketDTO](t, resp)
		assert.Equal(t, ticket.ID, got.ID)

		resp = api.json(http.MethodGet, "/api/v1/tickets/not-a-uuid", bystander, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = api.json(http.MethodGet, "/api/v1/tickets/00000000-0000-0000-0000-000000000001", bystander, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("dashboard", func(t *testing.T) {
		resp := api.json(http.MethodGet, "/api/v1/tickets", acceptor, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var page struct {
			Data  []domain.TicketDTO `json:"data"`
			Total int64              `json:"total"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
		assert.Equal(t, int64(1), page.Total)
		require.Len(t, page.Data, 1)
		assert.Equal(t, ticket.ID, page.Data[0].ID)

		resp = api.json(http.MethodGet, "/api/v1/tickets?flag=created_by_me", acceptor, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
		assert.Zero(t, page.Total)
	})

	t.Run("list filter errors", func(t *testing.T) {
		for _, q := range []string{"status=closed", "creatorId=abc", "createdFrom=yesterday", "flag=mine"} {
			resp := api.json(http.MethodGet, "/api/v1/tickets?"+q, acceptor, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		}
	})

	t.Run("transition", func(t *testing.T) {
		resp := api.json(http.MethodPost, ticketPath+"/transition", acceptor, map[string]string{"to": "in_progress"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decode[domain.TicketDTO](t, resp)
		assert.Equal(t, domain.StatusInProgress, got.Status)

		resp = api.json(http.MethodPost, ticketPath+"/transition", bystander, map[string]string{"to": "completed"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = api.json(http.MethodPost, ticketPath+"/transition", acceptor, map[string]string{"to": "in_progress"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		resp = api.json(http.MethodPost, ticketPath+"/transition", acceptor, map[string]string{"to": "needs_info"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = api.json(http.MethodPost, ticketPath+"/transition", acceptor, `{"to":`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("comment", func(t *testing.T) {
		resp := api.json(http.MethodPost, ticketPath+"/comments", creator, map[string]string{"text": "Trim is XLE"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		comment := decode[domain.CommentDTO](t, resp)
		assert.Equal(t, "Trim is XLE", comment.Text)

		resp = api.json(http.MethodPost, ticketPath+"/comments", bystander, map[string]string{"text": "hi"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = api.json(http.MethodPost, ticketPath+"/comments", creator, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("reassign", func(t *testing.T) {
		body := map[string]interface{}{"acceptorId": bystander.ID, "reason": "coverage"}
		resp := api.json(http.MethodPost, ticketPath+"/reassign", acceptor, body)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = api.json(http.MethodPost, ticketPath+"/reassign", admin, body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decode[domain.TicketDTO](t, resp)
		require.NotNil(t, got.AcceptorID)
		assert.Equal(t, bystander.ID, *got.AcceptorID)
	})

	t.Run("delete", func(t *testing.T) {
		resp := api.json(http.MethodDelete, ticketPath, creator, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = api.json(http.MethodDelete, ticketPath, admin, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = api.json(http.MethodGet, ticketPath, admin, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func upload(t *testing.T, api *testAPI, path string, user *domain.User, name string, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return api.request(http.MethodPost, path, user, &buf, mw.FormDataContentType())
}

func TestAttachmentEndpoints(t *testing.T) {
	api := newTestAPI(t)
	creator := testutil.CreateUser(t, api.env.DB, "alice", domain.RoleUser, "")
	bystander := testutil.CreateUser(t, api.env.DB, "carol", domain.RoleUser, "")
	ticket := api.env.CreateTicket(t, creator, "attach")
	base := "/api/v1/tickets/" + ticket.ID.String() + "/attachments"
	data := []byte("torque table v2")

	resp := upload(t, api, base, creator, "table.txt", data)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	attachment := decode[domain.AttachmentDTO](t, resp)
	assert.Equal(t, "table.txt", attachment.OriginalName)
	require.NotEmpty(t, attachment.URL)

	t.Run("download through the signed link", func(t *testing.T) {
		u, err := url.Parse(attachment.URL)
		require.NoError(t, err)
		resp := api.request(http.MethodGet, u.Path+"?"+u.RawQuery, nil, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, data, got)

		q := u.Query()
		q.Set("sig", strings.Repeat("0", 64))
		resp = api.request(http.MethodGet, u.Path+"?"+q.Encode(), nil, nil, "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("get", func(t *testing.T) {
		resp := api.json(http.MethodGet, base+"/"+attachment.ID.String(), bystander, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("rejections", func(t *testing.T) {
		resp := upload(t, api, base, bystander, "x.txt", []byte("x"))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = upload(t, api, base, creator, "empty.txt", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = upload(t, api, base, creator, "big.bin", bytes.Repeat([]byte{'a'}, 1<<20+10))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("delete", func(t *testing.T) {
		resp := api.json(http.MethodDelete, base+"/"+attachment.ID.String(), bystander, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = api.json(http.MethodDelete, base+"/"+attachment.ID.String(), creator, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = api.json(http.MethodGet, base+"/"+attachment.ID.String(), creator, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestNotificationEndpoints(t *testing.T) {
	api := newTestAPI(t)
	creator := testutil.CreateUser(t, api.env.DB, "alice", domain.RoleUser, "")
	reader := testutil.CreateUser(t, api.env.DB, "bob", domain.RoleUser, "")
	api.env.CreateTicket(t, creator, "one")
	api.env.CreateTicket(t, creator, "two")

	resp := api.json(http.MethodGet, "/api/v1/notifications/count", reader, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), decode[domain.UnreadCountDTO](t, resp).Count)

	resp = api.json(http.MethodGet, "/api/v1/notifications?limit=1", reader, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := decode[[]domain.NotificationDTO](t, resp)
	require.Len(t, rows, 1)

	resp = api.json(http.MethodGet, "/api/v1/notifications?since=yesterday", reader, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.json(http.MethodPost, "/api/v1/notifications/mark_read", reader, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.json(http.MethodPost, "/api/v1/notifications/mark_read", reader, map[string]interface{}{"ids": []string{rows[0].ID.String()}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), decode[domain.MarkReadResultDTO](t, resp).Updated)

	resp = api.json(http.MethodPost, "/api/v1/notifications/mark_read", reader, map[string]interface{}{"all": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), decode[domain.MarkReadResultDTO](t, resp).Updated)
}

func TestVehicleEndpoints(t *testing.T) {
	api := newTestAPI(t)
	user := testutil.CreateUser(t, api.env.DB, "alice", domain.RoleUser, "")
	admin := testutil.CreateUser(t, api.env.DB, "root", domain.RoleAdmin, "")

	resp := api.json(http.MethodPost, "/api/v1/vehicles", user, map[string]interface{}{"year": 2022, "make": "Kia", "model": "EV6"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	vehicle := decode[domain.VehicleDTO](t, resp)

	resp = api.json(http.MethodPost, "/api/v1/vehicles", user, map[string]interface{}{"year": 1800, "make": "Kia", "model": "EV6"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.json(http.MethodGet, "/api/v1/vehicles?year=2022&make=kia", user, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.VehicleDTO](t, resp), 1)

	path := "/api/v1/vehicles/" + vehicle.ID.String()
	update := map[string]interface{}{"year": 2022, "make": "Kia", "model": "EV6 GT"}
	resp = api.json(http.MethodPut, path, user, update)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = api.json(http.MethodPut, path, admin, update)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "EV6 GT", decode[domain.VehicleDTO](t, resp).Model)

	resp = api.json(http.MethodDelete, path, admin, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = api.json(http.MethodGet, "/api/v1/adas-systems", user, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.AdasSystemDTO](t, resp), 10)
}

func TestEventStream(t *testing.T) {
	api := newTestAPI(t)
	creator := testutil.CreateUser(t, api.env.DB, "alice", domain.RoleUser, "")
	acceptor := testutil.CreateUser(t, api.env.DB, "bob", domain.RoleUser, "")
	ticket := api.env.CreateTicket(t, creator, "stream")

	t.Run("requires a token", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(api.srv.URL, "http") + "/api/v1/events"
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	wsURL := "ws" + strings.TrimPrefix(api.srv.URL, "http") + "/api/v1/events?access_token=" + url.QueryEscape(api.token(creator))
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return api.env.Bus.SubscriberCount(creator.ID) == 1
	}, time.Second, 10*time.Millisecond)

	api.env.Transition(t, acceptor, ticket.ID, domain.StatusInProgress, "")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame domain.EventFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, domain.FrameNotification, frame.Type)
	require.NotNil(t, frame.Payload)
	assert.Equal(t, domain.NotificationAssigned, frame.Payload.Kind)

	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, domain.FrameTicketChanged, frame.Type)
	require.NotNil(t, frame.ID)
	assert.Equal(t, ticket.ID, *frame.ID)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool {
		return api.env.Bus.SubscriberCount(creator.ID) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestCORS(t *testing.T) {
	api := newTestAPI(t, func(c *config.Config) {
		c.CORS.AllowedOrigins = []string{"https://app.example.com"}
		c.CORS.AllowedMethods = []string{http.MethodGet, http.MethodPost}
		c.CORS.AllowedHeaders = []string{"Authorization", "Content-Type"}
	})

	preflight := func(origin string) *http.Response {
		req, err := http.NewRequest(http.MethodOptions, api.srv.URL+"/api/v1/tickets", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		resp, err := api.srv.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	assert.Equal(t, "https://app.example.com", preflight("https://app.example.com").Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, preflight("https://evil.example.com").Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	api := newTestAPI(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{
			Enabled:               true,
			RequestsPerMinute:     2,
			RequestsPerMinuteAuth: 100,
			WhitelistPaths:        []string{"/health/ready"},
		}
	})

	for i := 0; i < 2; i++ {
		resp := api.request(http.MethodGet, "/health", nil, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := api.request(http.MethodGet, "/health", nil, nil, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))

	resp = api.request(http.MethodGet, "/health/ready", nil, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "whitelisted paths are not limited")
}
