package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/core/ports"
	"p2p-desk/internal/core/ports/mocks"
	"p2p-desk/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memTokenStore is an in-memory ports.TokenStore.
type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *memTokenStore) Load(_ context.Context, sessionID string, role domain.Role) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[sessionID+"/"+string(role)], nil
}

func (m *memTokenStore) Save(_ context.Context, sessionID string, role domain.Role, token string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[sessionID+"/"+string(role)] = token
	return nil
}

func (m *memTokenStore) Delete(_ context.Context, sessionID string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, sessionID+"/"+string(role))
	return nil
}

type failingChecker struct{}

func (failingChecker) Name() string                   { return "trading-api" }
func (failingChecker) Ping(ctx context.Context) error { return errors.New("connection refused") }

type testDesk struct {
	gw     *mocks.MockGateway
	store  *memTokenStore
	tokens *service.JWTTokenService
	desk   *service.Desk
	router *gin.Engine
}

func setupRouter(t *testing.T, extra func(*RouterDeps)) *testDesk {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := zerolog.New(io.Discard)

	gw := mocks.NewMockGateway(ctrl)
	store := &memTokenStore{tokens: make(map[string]string)}
	tokens := service.NewJWTTokenService("handler-test-secret", time.Hour, "p2p-desk")
	queues := service.NewQueueService(gw, 10)
	desk := service.NewDesk(queues, service.NewPoller(log), time.Minute, log)
	t.Cleanup(desk.Close)

	wallet := service.NewWalletService(gw, nil, 10, log)
	deps := RouterDeps{
		Sessions:   service.NewSessionService(gw, store, tokens, desk, time.Hour, log),
		Queues:     queues,
		Dispatcher: service.NewDispatcher(gw, nil, nil, desk, time.Second, log),
		Desk:       desk,
		Wallet:     wallet,
		Tickets:    service.NewTicketService(gw, nil, 10, log),
		TokenSvc:   tokens,
		Logger:     log,
	}
	if extra != nil {
		extra(&deps)
	}
	return &testDesk{gw: gw, store: store, tokens: tokens, desk: desk, router: SetupRouter(deps)}
}

// signedIn stores backend tokens for roles and returns the desk JWT.
func (d *testDesk) signedIn(t *testing.T, roles ...domain.Role) (string, string) {
	t.Helper()
	sid := uuid.NewString()
	for _, r := range roles {
		require.NoError(t, d.store.Save(context.Background(), sid, r, "backend-"+string(r), time.Hour))
	}
	jwt, _, err := d.tokens.Generate(sid)
	require.NoError(t, err)
	return sid, jwt
}

func (d *testDesk) do(method, path, jwt string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if jwt != "" {
		req.Header.Set("Authorization", "Bearer "+jwt)
	}
	w := httptest.NewRecorder()
	d.router.ServeHTTP(w, req)
	return w
}

func okEnv(t *testing.T, data interface{}) *ports.Envelope {
	t.Helper()
	env := &ports.Envelope{Success: true, Status: http.StatusOK, Message: "ok"}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		env.Data = raw
	}
	return env
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// --- Health ---

func TestHealthCheck(t *testing.T) {
	d := setupRouter(t, nil)
	w := d.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decodeBody(t, w)["status"])

	d = setupRouter(t, func(deps *RouterDeps) { deps.HealthCheckers = []ports.HealthChecker{failingChecker{}} })
	w = d.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "degraded", resp["status"])
	dep := resp["dependencies"].(map[string]interface{})["trading-api"].(map[string]interface{})
	assert.Equal(t, "unhealthy", dep["status"])
}

// --- Sessions ---

func TestSignIn_UserThenListRoles(t *testing.T) {
	d := setupRouter(t, nil)
	d.gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, creds ports.Credentials, req ports.RemoteRequest) (*ports.Envelope, error) {
			assert.Equal(t, ports.PathUserSignin, req.Path)
			assert.True(t, req.Public)
			return okEnv(t, map[string]string{"token": "backend-user"}), nil
		},
	)

	w := d.do(http.MethodPost, "/api/v1/sessions/user/signin", "", map[string]string{
		"email": "alice@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeBody(t, w)["data"].(map[string]interface{})
	jwt := data["session_token"].(string)
	require.NotEmpty(t, jwt)
	assert.Equal(t, false, data["otp_required"])

	w = d.do(http.MethodGet, "/api/v1/sessions", jwt, nil)
	require.Equal(t, http.StatusOK, w.Code)
	roles := decodeBody(t, w)["data"].(map[string]interface{})["roles"].([]interface{})
	assert.Equal(t, []interface{}{"user"}, roles)
}

func TestSignIn_AdminNeedsOTP(t *testing.T) {
	d := setupRouter(t, nil)
	d.gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).Return(
		&ports.Envelope{Success: true, Status: http.StatusOK, Message: "OTP sent to your e-mail"}, nil)

	w := d.do(http.MethodPost, "/api/v1/sessions/admin/signin", "", map[string]string{
		"email": "root@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "OTP sent to your e-mail", resp["message"])
	assert.Equal(t, true, resp["data"].(map[string]interface{})["otp_required"])
}

func TestSignIn_ValidationError(t *testing.T) {
	d := setupRouter(t, nil)

	w := d.do(http.MethodPost, "/api/v1/sessions/user/signin", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_001", decodeBody(t, w)["error_code"])

	w = d.do(http.MethodPost, "/api/v1/sessions/trader/signin", "", map[string]string{
		"email": "alice@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogout_ClearsOnlyThatRole(t *testing.T) {
	d := setupRouter(t, nil)
	sid, jwt := d.signedIn(t, domain.RoleUser, domain.RoleAdmin)

	w := d.do(http.MethodDelete, "/api/v1/sessions/admin", jwt, nil)
	require.Equal(t, http.StatusOK, w.Code)

	tok, _ := d.store.Load(context.Background(), sid, domain.RoleAdmin)
	assert.Empty(t, tok)
	tok, _ = d.store.Load(context.Background(), sid, domain.RoleUser)
	assert.Equal(t, "backend-user", tok)
}

// --- Orders ---

func TestListOrders_RequiresSession(t *testing.T) {
	d := setupRouter(t, nil)
	w := d.do(http.MethodGet, "/api/v1/orders/seller", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_002", decodeBody(t, w)["error_code"])
}

func TestListOrders_BackendRefusesToken(t *testing.T) {
	d := setupRouter(t, nil)
	_, jwt := d.signedIn(t, domain.RoleUser)
	d.gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).Return(&ports.Envelope{
		Status:  http.StatusUnauthorized,
		Message: "jwt expired",
		Failure: ports.FailureUnauthenticated,
		Role:    domain.RoleUser,
	}, nil)

	w := d.do(http.MethodGet, "/api/v1/orders/buyer", jwt, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "AUTH_001", resp["error_code"])
	assert.Equal(t, "user", resp["login_role"])
}

func TestListOrders_FilterAndPage(t *testing.T) {
	d := setupRouter(t, nil)
	_, jwt := d.signedIn(t, domain.RoleUser)
	d.gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, creds ports.Credentials, req ports.RemoteRequest) (*ports.Envelope, error) {
			assert.Equal(t, ports.PathGetRequests, req.Path)
			assert.Equal(t, "PAID", req.Query.Get("status"))
			assert.Equal(t, "2", req.Query.Get("page"))
			env := okEnv(t, []map[string]string{
				{"_id": "o1", "status": "PAID"},
				{"_id": "o2", "status": "PENDING"},
			})
			env.Count, env.HasCount = 12, true
			return env, nil
		},
	)

	w := d.do(http.MethodGet, "/api/v1/orders/seller?status=paid&page=2&limit=5", jwt, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decodeBody(t, w)["data"].(map[string]interface{})
	items := page["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "o1", items[0].(map[string]interface{})["id"])
}

func TestTransition_Success(t *testing.T) {
	d := setupRouter(t, nil)
	_, jwt := d.signedIn(t, domain.RoleUser)
	d.gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, creds ports.Credentials, req ports.RemoteRequest) (*ports.Envelope, error) {
			assert.Equal(t, ports.PathManageDeal, req.Path)
			assert.Equal(t, http.MethodPost, req.Method)
			return &ports.Envelope{Success: true, Status: http.StatusOK, Message: "Request accepted"}, nil
		},
	)

	w := d.do(http.MethodPost, "/api/v1/orders/seller/o-9/transition", jwt, map[string]string{
		"from": "PENDING", "target": "ACCEPTED",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody(t, w)
	assert.Equal(t, "Request accepted", resp["message"])
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "o-9", data["id"])
	assert.Equal(t, "ACCEPTED", data["status"])
}

func TestTransition_RefusedLocally(t *testing.T) {
	d := setupRouter(t, nil)
	_, jwt := d.signedIn(t, domain.RoleUser)

	// Buyers cannot accept their own request; nothing reaches the backend.
	w := d.do(http.MethodPost, "/api/v1/orders/buyer/o-9/transition", jwt, map[string]string{
		"from": "PENDING", "target": "ACCEPTED",
	})
	assert.Equal(t, "LIFE_002", decodeBody(t, w)["error_code"])

	w = d.do(http.MethodPost, "/api/v1/orders/admin/o-9/transition", jwt, map[string]string{
		"from": "COMPLETED", "target": "REJECTED",
	})
	assert.Equal(t, "LIFE_003", decodeBody(t, w)["error_code"])

	w = d.do(http.MethodPost, "/api/v1/orders/seller/o-9/transition", jwt, map[string]string{
		"from": "PENDING", "target": "NOPE",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Wallet ---

func TestWithdraw_InsufficientBalance(t *testing.T) {
	d := setupRouter(t, nil)
	_, jwt := d.signedIn(t, domain.RoleUser)
	d.gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, creds ports.Credentials, req ports.RemoteRequest) (*ports.Envelope, error) {
			assert.Equal(t, ports.PathWalletBalance, req.Path)
			return okEnv(t, map[string]interface{}{"balance": 10, "token": "USDT"}), nil
		},
	)

	w := d.do(http.MethodPost, "/api/v1/wallet/withdraw", jwt, map[string]string{
		"amount": "50", "address": "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "PAY_001", decodeBody(t, w)["error_code"])
}

func TestWithdraw_InvalidAmount(t *testing.T) {
	d := setupRouter(t, nil)
	_, jwt := d.signedIn(t, domain.RoleUser)

	w := d.do(http.MethodPost, "/api/v1/wallet/withdraw", jwt, map[string]string{
		"amount": "-1", "address": "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Tickets ---

func TestManageTicket_UserRoleRefused(t *testing.T) {
	d := setupRouter(t, nil)
	_, jwt := d.signedIn(t, domain.RoleUser)

	w := d.do(http.MethodPatch, "/api/v1/staff/user/tickets/t-1", jwt, map[string]string{"status": "CLOSED", "from": "OPEN"})
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestManageTicket_FromRequired(t *testing.T) {
	d := setupRouter(t, nil)
	_, jwt := d.signedIn(t, domain.RoleAdmin)

	w := d.do(http.MethodPatch, "/api/v1/staff/admin/tickets/t-1", jwt, map[string]string{"status": "CLOSED"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Audit ---

func TestAuditList(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockActionAuditRepository(ctrl)
	d := setupRouter(t, func(deps *RouterDeps) { deps.AuditRepo = repo })
	sid, jwt := d.signedIn(t, domain.RoleUser)

	repo.EXPECT().ListBySession(gomock.Any(), sid, 5).Return([]domain.ActionAudit{
		{ID: uuid.New(), SessionID: sid, Actor: domain.ActorSeller, Action: "transition", SubjectID: "o1", Outcome: domain.OutcomeConfirmed},
	}, nil)

	w := d.do(http.MethodGet, "/api/v1/audit?limit=5", jwt, nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decodeBody(t, w)["data"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "CONFIRMED", items[0].(map[string]interface{})["outcome"])
}

// --- Stream ---

func TestStreamOrders_PushesSnapshot(t *testing.T) {
	d := setupRouter(t, nil)
	_, jwt := d.signedIn(t, domain.RoleUser)
	d.gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).Return(
		okEnv(t, []map[string]string{{"_id": "o1", "status": "PENDING"}}), nil,
	).MinTimes(1)

	srv := httptest.NewServer(d.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream/orders/seller"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+jwt)
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame StreamFrame[domain.Order]
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Contains(t, frame.View, "orders:seller")
	require.Len(t, frame.Snapshot.Page.Items, 1)
	assert.Equal(t, "o1", frame.Snapshot.Page.Items[0].ID)
}

func TestStreamOrders_MountFailureIsHTTPError(t *testing.T) {
	d := setupRouter(t, nil)
	_, jwt := d.signedIn(t, domain.RoleUser)
	d.gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).Return(&ports.Envelope{
		Status: http.StatusUnauthorized, Failure: ports.FailureUnauthenticated, Role: domain.RoleUser,
	}, nil)

	w := d.do(http.MethodGet, "/api/v1/stream/orders/seller", jwt, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
