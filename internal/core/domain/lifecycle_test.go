package domain

import (
	"testing"

	"p2p-desk/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTransition_Legal(t *testing.T) {
	tests := []struct {
		name  string
		actor Actor
		from  OrderStatus
		to    OrderStatus
	}{
		{"seller accepts", ActorSeller, OrderStatusPending, OrderStatusAccepted},
		{"seller rejects pending", ActorSeller, OrderStatusPending, OrderStatusRejected},
		{"buyer pays", ActorBuyer, OrderStatusAccepted, OrderStatusPaid},
		{"seller confirms payment", ActorSeller, OrderStatusPaid, OrderStatusSellerConfirmed},
		{"seller rejects payment", ActorSeller, OrderStatusPaid, OrderStatusRejected},
		{"sub-admin completes", ActorSubAdmin, OrderStatusSellerConfirmed, OrderStatusCompleted},
		{"admin completes", ActorAdmin, OrderStatusSellerConfirmed, OrderStatusCompleted},
		{"buyer disputes", ActorBuyer, OrderStatusSellerConfirmed, OrderStatusDispute},
		{"sub-admin disputes", ActorSubAdmin, OrderStatusSellerConfirmed, OrderStatusDispute},
		{"admin resolves dispute", ActorAdmin, OrderStatusDispute, OrderStatusCompleted},
		{"admin rejects dispute", ActorAdmin, OrderStatusDispute, OrderStatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, CheckTransition(tt.actor, tt.from, tt.to))
		})
	}
}

func TestCheckTransition_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		actor    Actor
		from     OrderStatus
		to       OrderStatus
		wantCode string
	}{
		{"skip a hop", ActorSeller, OrderStatusPending, OrderStatusPaid, "LIFE_001"},
		{"backwards", ActorSeller, OrderStatusPaid, OrderStatusAccepted, "LIFE_001"},
		{"pending to completed", ActorAdmin, OrderStatusPending, OrderStatusCompleted, "LIFE_001"},
		{"buyer cannot accept", ActorBuyer, OrderStatusPending, OrderStatusAccepted, "LIFE_002"},
		{"seller cannot pay", ActorSeller, OrderStatusAccepted, OrderStatusPaid, "LIFE_002"},
		{"sub-admin cannot resolve dispute", ActorSubAdmin, OrderStatusDispute, OrderStatusCompleted, "LIFE_002"},
		{"seller cannot complete", ActorSeller, OrderStatusSellerConfirmed, OrderStatusCompleted, "LIFE_002"},
		{"completed is terminal", ActorAdmin, OrderStatusCompleted, OrderStatusDispute, "LIFE_003"},
		{"rejected is terminal", ActorAdmin, OrderStatusRejected, OrderStatusCompleted, "LIFE_003"},
		{"cancelled is terminal", ActorSeller, OrderStatusCancelled, OrderStatusAccepted, "LIFE_003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTransition(tt.actor, tt.from, tt.to)
			require.Error(t, err)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, apperror.KindValidation, appErr.Kind)
			assert.NotEmpty(t, appErr.Message)
		})
	}
}

func TestCheckTransition_NonAdjacentNeverLegal(t *testing.T) {
	actors := []Actor{ActorBuyer, ActorSeller, ActorSubAdmin, ActorAdmin}
	for _, from := range lifecycleOrder {
		for _, to := range lifecycleOrder {
			if _, adjacent := transitions[transition{from, to}]; adjacent {
				continue
			}
			for _, a := range actors {
				assert.Error(t, CheckTransition(a, from, to), "%s: %s -> %s", a, from, to)
			}
		}
	}
}

func TestAllowedTargets(t *testing.T) {
	assert.Equal(t,
		[]OrderStatus{OrderStatusAccepted, OrderStatusRejected},
		AllowedTargets(ActorSeller, OrderStatusPending))
	assert.Equal(t,
		[]OrderStatus{OrderStatusDispute, OrderStatusCompleted},
		AllowedTargets(ActorAdmin, OrderStatusSellerConfirmed))
	assert.Equal(t,
		[]OrderStatus{OrderStatusDispute},
		AllowedTargets(ActorBuyer, OrderStatusSellerConfirmed))
	assert.Empty(t, AllowedTargets(ActorAdmin, OrderStatusCompleted))
	assert.Empty(t, AllowedTargets(ActorBuyer, OrderStatusPending))
}
