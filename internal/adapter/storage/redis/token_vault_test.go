package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/core/ports/mocks"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// reverseCipher is a reversible stand-in for the token cipher.
type reverseCipher struct{}

func (reverseCipher) Encrypt(s string) (string, error) { return "sealed:" + reverse(s), nil }
func (reverseCipher) Decrypt(s string) (string, error) {
	if !strings.HasPrefix(s, "sealed:") {
		return "", errors.New("not sealed")
	}
	return reverse(strings.TrimPrefix(s, "sealed:")), nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func newVault(t *testing.T) (*TokenVault, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	return NewTokenVault(client, reverseCipher{}), s
}

func TestTokenVault_SaveLoad(t *testing.T) {
	vault, s := newVault(t)
	ctx := context.Background()

	require.NoError(t, vault.Save(ctx, "sid-1", domain.RoleAdmin, "admin-token", time.Hour))

	raw, err := s.Get("session:sid-1:token:admin")
	require.NoError(t, err)
	assert.NotContains(t, raw, "admin-token", "token is stored sealed")

	token, err := vault.Load(ctx, "sid-1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "admin-token", token)
}

func TestTokenVault_LoadMissing(t *testing.T) {
	vault, _ := newVault(t)

	token, err := vault.Load(context.Background(), "sid-1", domain.RoleUser)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestTokenVault_DeleteOnlyThatRole(t *testing.T) {
	vault, _ := newVault(t)
	ctx := context.Background()

	for _, role := range domain.Roles {
		require.NoError(t, vault.Save(ctx, "sid-1", role, string(role)+"-token", time.Hour))
	}

	require.NoError(t, vault.Delete(ctx, "sid-1", domain.RoleSubAdmin))

	token, err := vault.Load(ctx, "sid-1", domain.RoleSubAdmin)
	require.NoError(t, err)
	assert.Empty(t, token)

	token, err = vault.Load(ctx, "sid-1", domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "user-token", token)

	token, err = vault.Load(ctx, "sid-1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "admin-token", token)
}

func TestTokenVault_SessionsAreIsolated(t *testing.T) {
	vault, _ := newVault(t)
	ctx := context.Background()

	require.NoError(t, vault.Save(ctx, "sid-1", domain.RoleUser, "a", time.Hour))

	token, err := vault.Load(ctx, "sid-2", domain.RoleUser)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestTokenVault_Expiry(t *testing.T) {
	vault, s := newVault(t)
	ctx := context.Background()

	require.NoError(t, vault.Save(ctx, "sid-1", domain.RoleUser, "a", time.Minute))
	s.FastForward(2 * time.Minute)

	token, err := vault.Load(ctx, "sid-1", domain.RoleUser)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestTokenVault_EncryptFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	enc := mocks.NewMockEncryptionService(ctrl)
	enc.EXPECT().Encrypt("a").Return("", errors.New("no entropy"))

	s := miniredis.RunT(t)
	vault := NewTokenVault(goredis.NewClient(&goredis.Options{Addr: s.Addr()}), enc)

	err := vault.Save(context.Background(), "sid-1", domain.RoleUser, "a", time.Minute)
	assert.Error(t, err)
	assert.False(t, s.Exists("session:sid-1:token:user"))
}

func TestTokenVault_CorruptValue(t *testing.T) {
	vault, s := newVault(t)
	require.NoError(t, s.Set("session:sid-1:token:user", "garbage"))

	_, err := vault.Load(context.Background(), "sid-1", domain.RoleUser)
	assert.Error(t, err)
}

func TestTokenVault_RedisDown(t *testing.T) {
	vault, s := newVault(t)
	s.Close()

	_, err := vault.Load(context.Background(), "sid-1", domain.RoleUser)
	assert.Error(t, err)
}
