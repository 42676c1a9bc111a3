package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports the action journal healthy when the database answers
// and the journal table exists.
type HealthCheck struct {
	pool Pool
}

// NewHealthCheck creates a journal health checker.
func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping checks connectivity and the journal schema.
func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		return err
	}
	var present bool
	if err := h.pool.QueryRow(ctx, `SELECT to_regclass('action_audit_logs') IS NOT NULL`).Scan(&present); err != nil {
		return fmt.Errorf("checking journal table: %w", err)
	}
	if !present {
		return errors.New("action_audit_logs table missing")
	}
	return nil
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "action-journal"
}
