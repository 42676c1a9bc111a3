package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/core/ports"
	"p2p-desk/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// memTokenStore is an in-memory ports.TokenStore.
type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[string]string)}
}

func (m *memTokenStore) key(sessionID string, role domain.Role) string {
	return sessionID + "/" + string(role)
}

func (m *memTokenStore) Load(_ context.Context, sessionID string, role domain.Role) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[m.key(sessionID, role)], nil
}

func (m *memTokenStore) Save(_ context.Context, sessionID string, role domain.Role, token string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[m.key(sessionID, role)] = token
	return nil
}

func (m *memTokenStore) Delete(_ context.Context, sessionID string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, m.key(sessionID, role))
	return nil
}

// newTestSession returns a session signed in with every given role.
func newTestSession(t *testing.T, roles ...domain.Role) *Session {
	t.Helper()
	sess := NewSession("sess-"+t.Name(), newMemTokenStore())
	for _, r := range roles {
		require.NoError(t, sess.save(context.Background(), r, "tok-"+string(r), time.Hour))
	}
	return sess
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

func okListEnv(t *testing.T, data interface{}, count int) *ports.Envelope {
	t.Helper()
	env := okEnv(t, data)
	env.Count = count
	env.HasCount = true
	return env
}

func rejectedEnv(message string) *ports.Envelope {
	return &ports.Envelope{Status: http.StatusBadRequest, Message: message, Failure: ports.FailureRejected}
}

func unauthEnv(role domain.Role) *ports.Envelope {
	return &ports.Envelope{Status: http.StatusUnauthorized, Message: "Session expired", Failure: ports.FailureUnauthenticated, Role: role}
}

func transientEnv() *ports.Envelope {
	return &ports.Envelope{Status: http.StatusBadGateway, Message: "Network error, please try again.", Failure: ports.FailureTransient}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code, appErr.Message)
}
