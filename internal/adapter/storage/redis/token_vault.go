package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// TokenVault implements ports.TokenStore. Each role of a desk session owns
// one key and tokens are sealed before they are written.
type TokenVault struct {
	client *goredis.Client
	enc    ports.EncryptionService
	prefix string
}

// NewTokenVault creates a Redis-backed token vault.
func NewTokenVault(client *goredis.Client, enc ports.EncryptionService) *TokenVault {
	return &TokenVault{
		client: client,
		enc:    enc,
		prefix: "session:",
	}
}

func (v *TokenVault) key(sessionID string, role domain.Role) string {
	return v.prefix + sessionID + ":token:" + string(role)
}

// Load returns the token of role, or "" if none is stored.
func (v *TokenVault) Load(ctx context.Context, sessionID string, role domain.Role) (string, error) {
	sealed, err := v.client.Get(ctx, v.key(sessionID, role)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis token load: %w", err)
	}
	token, err := v.enc.Decrypt(sealed)
	if err != nil {
		return "", fmt.Errorf("opening %s token: %w", role, err)
	}
	return token, nil
}

// Save stores the token of role with a TTL.
func (v *TokenVault) Save(ctx context.Context, sessionID string, role domain.Role, token string, ttl time.Duration) error {
	sealed, err := v.enc.Encrypt(token)
	if err != nil {
		return fmt.Errorf("sealing %s token: %w", role, err)
	}
	if err := v.client.Set(ctx, v.key(sessionID, role), sealed, ttl).Err(); err != nil {
		return fmt.Errorf("redis token save: %w", err)
	}
	return nil
}

// Delete removes the token of role only.
func (v *TokenVault) Delete(ctx context.Context, sessionID string, role domain.Role) error {
	if err := v.client.Del(ctx, v.key(sessionID, role)).Err(); err != nil {
		return fmt.Errorf("redis token delete: %w", err)
	}
	return nil
}
