package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/core/ports"
	"p2p-desk/internal/core/ports/mocks"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type dispatcherTestDeps struct {
	svc   *Dispatcher
	gw    *mocks.MockGateway
	guard *mocks.MockSubmissionGuard
	audit *mocks.MockAuditService
	desk  *Desk
	ctrl  *gomock.Controller
}

func setupDispatcher(t *testing.T) *dispatcherTestDeps {
	ctrl := gomock.NewController(t)
	d := &dispatcherTestDeps{
		gw:    mocks.NewMockGateway(ctrl),
		guard: mocks.NewMockSubmissionGuard(ctrl),
		audit: mocks.NewMockAuditService(ctrl),
		ctrl:  ctrl,
	}
	d.desk = NewDesk(NewQueueService(d.gw, 10), NewPoller(newTestLogger()), time.Hour, newTestLogger())
	t.Cleanup(d.desk.Close)
	d.svc = NewDispatcher(d.gw, d.guard, d.audit, d.desk, time.Minute, newTestLogger())
	return d
}

func (d *dispatcherTestDeps) expectGuard(key string) {
	d.guard.EXPECT().Acquire(gomock.Any(), key, time.Minute).Return(true, nil)
	d.guard.EXPECT().Release(gomock.Any(), key).Return(nil)
}

func (d *dispatcherTestDeps) expectAudit(t *testing.T, outcome domain.ActionOutcome) {
	d.audit.EXPECT().Record(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.ActionAudit) {
		assert.Equal(t, outcome, entry.Outcome)
	})
}

func TestDispatcher_IllegalTransition_NoNetworkCall(t *testing.T) {
	cases := []struct {
		name   string
		actor  domain.Actor
		from   domain.OrderStatus
		target domain.OrderStatus
		code   string
	}{
		{"skip a hop", domain.ActorSubAdmin, domain.OrderStatusAccepted, domain.OrderStatusCompleted, "LIFE_001"},
		{"buyer accepts", domain.ActorBuyer, domain.OrderStatusPending, domain.OrderStatusAccepted, "LIFE_002"},
		{"sub-admin settles dispute", domain.ActorSubAdmin, domain.OrderStatusDispute, domain.OrderStatusCompleted, "LIFE_002"},
		{"terminal", domain.ActorAdmin, domain.OrderStatusCompleted, domain.OrderStatusDispute, "LIFE_003"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := setupDispatcher(t)
			sess := newTestSession(t, tc.actor.Role())

			// No gateway, guard or audit expectations: any call fails the test.
			_, err := d.svc.Transition(context.Background(), sess, TransitionRequest{
				Actor:   tc.actor,
				OrderID: "o1",
				From:    tc.from,
				Target:  tc.target,
			})
			assertCode(t, err, tc.code)
		})
	}
}

func TestDispatcher_BoardStatusTakesPrecedence(t *testing.T) {
	d := setupDispatcher(t)
	sess := newTestSession(t, domain.RoleUser)
	board := NewBoard(orderKey, nil)
	board.Upsert(domain.Order{ID: "o1", Status: domain.OrderStatusCompleted})

	_, err := d.svc.Transition(context.Background(), sess, TransitionRequest{
		Actor:   domain.ActorSeller,
		OrderID: "o1",
		From:    domain.OrderStatusPending,
		Target:  domain.OrderStatusAccepted,
	}, board)
	assertCode(t, err, "LIFE_003")
}

func TestDispatcher_MissingInput(t *testing.T) {
	d := setupDispatcher(t)
	sess := newTestSession(t, domain.RoleUser)

	_, err := d.svc.Transition(context.Background(), sess, TransitionRequest{Actor: domain.ActorSeller, Target: domain.OrderStatusAccepted})
	assertCode(t, err, "VAL_001")

	_, err = d.svc.Transition(context.Background(), sess, TransitionRequest{Actor: domain.ActorSeller, OrderID: "o1", Target: domain.OrderStatusAccepted})
	assertCode(t, err, "VAL_001")

	_, err = d.svc.Transition(context.Background(), sess, TransitionRequest{
		Actor: domain.ActorBuyer, OrderID: "o1", From: domain.OrderStatusAccepted, Target: domain.OrderStatusPaid,
	})
	assertCode(t, err, "VAL_001")
}

func TestDispatcher_SubAdminCompletes_OrderLeavesConfirmedBoard(t *testing.T) {
	d := setupDispatcher(t)
	sess := newTestSession(t, domain.RoleSubAdmin)

	confirmed := statusBoard(domain.OrderStatusSellerConfirmed)
	all := NewBoard(orderKey, nil)
	for _, b := range []*Board[domain.Order]{confirmed, all} {
		require.True(t, b.Apply(b.Begin(), orderPage(
			domain.Order{ID: "o1", Status: domain.OrderStatusSellerConfirmed, TokenAmount: decimal.NewFromInt(500)},
			domain.Order{ID: "o2", Status: domain.OrderStatusSellerConfirmed},
		)))
	}

	d.expectGuard(sess.ID() + ":o1:COMPLETED")
	d.expectAudit(t, domain.OutcomeConfirmed)
	d.gw.EXPECT().Do(gomock.Any(), sess, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ ports.Credentials, req ports.RemoteRequest) (*ports.Envelope, error) {
			assert.Equal(t, domain.RoleSubAdmin, req.Role)
			assert.Equal(t, ports.PathSubAdminManageOrder, req.Path)
			assert.Equal(t, map[string]string{"orderId": "o1", "action": "COMPLETED", "remark": "verified"}, req.Body)
			return okEnv(t, nil), nil
		})

	res, err := d.svc.Transition(context.Background(), sess, TransitionRequest{
		Actor:   domain.ActorSubAdmin,
		OrderID: "o1",
		Target:  domain.OrderStatusCompleted,
		Remark:  "verified",
	}, confirmed, all)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, res.Order.Status)
	assert.True(t, res.Order.TokenAmount.Equal(decimal.NewFromInt(500)))

	_, still := confirmed.Get("o1")
	assert.False(t, still, "completed order must leave the confirmed queue")
	assert.Equal(t, 1, confirmed.Snapshot().Page.Count)

	got, ok := all.Get("o1")
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusCompleted, got.Status)
}

func TestDispatcher_Routes(t *testing.T) {
	cases := []struct {
		name string
		req  TransitionRequest
		path string
		body map[string]string
	}{
		{
			"buyer pays",
			TransitionRequest{Actor: domain.ActorBuyer, OrderID: "o1", From: domain.OrderStatusAccepted, Target: domain.OrderStatusPaid, Receipt: "https://cdn.example/r.png"},
			ports.PathSubmitPayment,
			map[string]string{"orderId": "o1", "receipt": "https://cdn.example/r.png"},
		},
		{
			"buyer disputes",
			TransitionRequest{Actor: domain.ActorBuyer, OrderID: "o1", From: domain.OrderStatusSellerConfirmed, Target: domain.OrderStatusDispute, Remark: "no tokens"},
			ports.PathRaiseDispute,
			map[string]string{"orderId": "o1", "reason": "no tokens"},
		},
		{
			"seller accepts",
			TransitionRequest{Actor: domain.ActorSeller, OrderID: "o1", From: domain.OrderStatusPending, Target: domain.OrderStatusAccepted},
			ports.PathManageDeal,
			map[string]string{"requestId": "o1", "status": "ACCEPTED"},
		},
		{
			"admin settles dispute",
			TransitionRequest{Actor: domain.ActorAdmin, OrderID: "o1", From: domain.OrderStatusDispute, Target: domain.OrderStatusRejected, Remark: "refund"},
			ports.PathAdminManageOrder,
			map[string]string{"id": "o1", "status": "REJECTED", "remark": "refund"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := setupDispatcher(t)
			sess := newTestSession(t, tc.req.Actor.Role())

			d.expectGuard(sess.ID() + ":o1:" + string(tc.req.Target))
			d.expectAudit(t, domain.OutcomeConfirmed)
			d.gw.EXPECT().Do(gomock.Any(), sess, gomock.Any()).DoAndReturn(
				func(_ context.Context, _ ports.Credentials, req ports.RemoteRequest) (*ports.Envelope, error) {
					assert.Equal(t, tc.req.Actor.Role(), req.Role)
					assert.Equal(t, tc.path, req.Path)
					assert.Equal(t, tc.body, req.Body)
					return okEnv(t, nil), nil
				})

			res, err := d.svc.Transition(context.Background(), sess, tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.req.Target, res.Order.Status)
		})
	}
}

func TestDispatcher_ConfirmedOrderFromResponseWins(t *testing.T) {
	d := setupDispatcher(t)
	sess := newTestSession(t, domain.RoleUser)
	board := NewBoard(orderKey, nil)
	board.Upsert(domain.Order{ID: "o1", Status: domain.OrderStatusPaid})

	d.expectGuard(sess.ID() + ":o1:SELLER_CONFIRMED")
	d.expectAudit(t, domain.OutcomeConfirmed)
	d.gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).Return(okEnv(t, map[string]interface{}{
		"order": map[string]string{"_id": "o1", "status": "CONFIRMED", "completedAt": "2026-01-02T03:04:05Z"},
	}), nil)

	res, err := d.svc.Transition(context.Background(), sess, TransitionRequest{
		Actor: domain.ActorSeller, OrderID: "o1", Target: domain.OrderStatusSellerConfirmed,
	}, board)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusSellerConfirmed, res.Order.Status)
	require.NotNil(t, res.Order.CompletedAt)
}

func TestDispatcher_Rejection_LeavesBoardAndSurfacesMessage(t *testing.T) {
	d := setupDispatcher(t)
	sess := newTestSession(t, domain.RoleUser)
	board := NewBoard(orderKey, nil)
	board.Upsert(domain.Order{ID: "o1", Status: domain.OrderStatusPending})

	d.expectGuard(sess.ID() + ":o1:ACCEPTED")
	d.expectAudit(t, domain.OutcomeRejected)
	d.gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(rejectedEnv("Request already handled"), nil)

	_, err := d.svc.Transition(context.Background(), sess, TransitionRequest{
		Actor: domain.ActorSeller, OrderID: "o1", Target: domain.OrderStatusAccepted,
	}, board)
	assertCode(t, err, "BIZ_001")
	assert.Contains(t, err.Error(), "Request already handled")

	got, _ := board.Get("o1")
	assert.Equal(t, domain.OrderStatusPending, got.Status)
}

func TestDispatcher_Rejection_ResyncsFromEmbeddedOrder(t *testing.T) {
	d := setupDispatcher(t)
	sess := newTestSession(t, domain.RoleUser)
	board := NewBoard(orderKey, nil)
	board.Upsert(domain.Order{ID: "o1", Status: domain.OrderStatusPending, BuyerID: "b1"})

	d.expectGuard(sess.ID() + ":o1:ACCEPTED")
	d.expectAudit(t, domain.OutcomeRejected)
	env := rejectedEnv("Order was cancelled")
	env.Data = []byte(`{"order":{"_id":"o1","status":"CANCELED"}}`)
	d.gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).Return(env, nil)

	_, err := d.svc.Transition(context.Background(), sess, TransitionRequest{
		Actor: domain.ActorSeller, OrderID: "o1", Target: domain.OrderStatusAccepted,
	}, board)
	assertCode(t, err, "BIZ_001")

	got, ok := board.Get("o1")
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)
	assert.Equal(t, "b1", got.BuyerID)
}

func TestDispatcher_ExpiredSession(t *testing.T) {
	d := setupDispatcher(t)
	sess := newTestSession(t, domain.RoleAdmin)

	d.expectGuard(sess.ID() + ":o1:COMPLETED")
	d.expectAudit(t, domain.OutcomeUnauthenticated)
	d.gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).Return(unauthEnv(domain.RoleAdmin), nil)

	_, err := d.svc.Transition(context.Background(), sess, TransitionRequest{
		Actor: domain.ActorAdmin, OrderID: "o1", From: domain.OrderStatusDispute, Target: domain.OrderStatusCompleted,
	})
	assertCode(t, err, "AUTH_001")
}

func TestDispatcher_DuplicateSubmissionRefused(t *testing.T) {
	d := setupDispatcher(t)
	sess := newTestSession(t, domain.RoleUser)

	d.guard.EXPECT().Acquire(gomock.Any(), sess.ID()+":o1:ACCEPTED", time.Minute).Return(false, nil)

	_, err := d.svc.Transition(context.Background(), sess, TransitionRequest{
		Actor: domain.ActorSeller, OrderID: "o1", From: domain.OrderStatusPending, Target: domain.OrderStatusAccepted,
	})
	assertCode(t, err, "ACT_001")
}

func TestDispatcher_GuardFailure(t *testing.T) {
	d := setupDispatcher(t)
	sess := newTestSession(t, domain.RoleUser)

	d.guard.EXPECT().Acquire(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))

	_, err := d.svc.Transition(context.Background(), sess, TransitionRequest{
		Actor: domain.ActorSeller, OrderID: "o1", From: domain.OrderStatusPending, Target: domain.OrderStatusAccepted,
	})
	assertCode(t, err, "SYS_002")
}

func TestDispatcher_CancelledContext(t *testing.T) {
	d := setupDispatcher(t)
	sess := newTestSession(t, domain.RoleUser)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.expectGuard(sess.ID() + ":o1:ACCEPTED")
	d.expectAudit(t, domain.OutcomeFailed)
	d.gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, context.Canceled)

	_, err := d.svc.Transition(ctx, sess, TransitionRequest{
		Actor: domain.ActorSeller, OrderID: "o1", From: domain.OrderStatusPending, Target: domain.OrderStatusAccepted,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatcher_PickDeal_MovesDealIntoBuyerQueue(t *testing.T) {
	d := setupDispatcher(t)
	sess := newTestSession(t, domain.RoleUser)
	ctx := context.Background()

	d.gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ ports.Credentials, req ports.RemoteRequest) (*ports.Envelope, error) {
			switch req.Path {
			case ports.PathAllDeals:
				return okEnv(t, []map[string]string{
					{"_id": "D1", "sellerId": "s1", "price": "1.5", "quantity": "500", "status": "OPEN"},
					{"_id": "D2", "sellerId": "s2", "price": "1.4", "quantity": "20", "status": "OPEN"},
				}), nil
			case ports.PathMyDeals:
				return okEnv(t, []domain.Order{}), nil
			}
			t.Errorf("unexpected path %s", req.Path)
			return nil, nil
		}).Times(2)

	deals, _, err := d.desk.MountOpenDeals(ctx, sess, PageQuery{})
	require.NoError(t, err)
	orders, _, err := d.desk.MountOrders(ctx, sess, domain.ActorBuyer, OrderFilter{}, PageQuery{})
	require.NoError(t, err)

	d.expectGuard(sess.ID() + ":pick:D1")
	d.audit.EXPECT().Record(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.ActionAudit) {
		assert.Equal(t, "pick_deal", entry.Action)
		assert.Equal(t, "D1", entry.SubjectID)
		assert.Equal(t, domain.OutcomeConfirmed, entry.Outcome)
	})
	d.gw.EXPECT().Do(gomock.Any(), sess, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ ports.Credentials, req ports.RemoteRequest) (*ports.Envelope, error) {
			assert.Equal(t, ports.PathPickDeal, req.Path)
			assert.Equal(t, map[string]string{"dealId": "D1"}, req.Body)
			return okEnv(t, map[string]interface{}{"order": map[string]string{"_id": "O-77", "status": "PENDING"}}), nil
		})

	res, err := d.svc.PickDeal(ctx, sess, "D1")
	require.NoError(t, err)
	assert.Equal(t, "O-77", res.Order.ID)

	_, stillOpen := deals.Board().Get("D1")
	assert.False(t, stillOpen)
	assert.Len(t, deals.Board().Snapshot().Page.Items, 1)

	got, ok := orders.Board().Get("O-77")
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Equal(t, "D1", got.DealID)
	assert.Equal(t, "s1", got.SellerID)
	assert.True(t, got.TokenAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, got.FiatAmount.Equal(decimal.NewFromInt(750)))
}

func TestDispatcher_PickDeal_NotOpenLocally(t *testing.T) {
	d := setupDispatcher(t)
	sess := newTestSession(t, domain.RoleUser)

	d.gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(okEnv(t, []map[string]string{{"_id": "D1", "price": "1", "quantity": "0"}}), nil)
	_, _, err := d.desk.MountOpenDeals(context.Background(), sess, PageQuery{})
	require.NoError(t, err)

	_, err = d.svc.PickDeal(context.Background(), sess, "D1")
	assertCode(t, err, "VAL_001")

	_, err = d.svc.PickDeal(context.Background(), sess, "")
	assertCode(t, err, "VAL_001")
}

func TestDispatcher_PickDeal_Rejected(t *testing.T) {
	d := setupDispatcher(t)
	sess := newTestSession(t, domain.RoleUser)

	d.expectGuard(sess.ID() + ":pick:D9")
	d.expectAudit(t, domain.OutcomeRejected)
	d.gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).Return(rejectedEnv("Deal already picked"), nil)

	_, err := d.svc.PickDeal(context.Background(), sess, "D9")
	assertCode(t, err, "BIZ_001")
	assert.Contains(t, err.Error(), "Deal already picked")
}

func TestDispatcher_WithoutGuardOrAudit(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	svc := NewDispatcher(gw, nil, nil, nil, 0, newTestLogger())
	sess := newTestSession(t, domain.RoleUser)

	gw.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).Return(okEnv(t, nil), nil)

	res, err := svc.Transition(context.Background(), sess, TransitionRequest{
		Actor: domain.ActorSeller, OrderID: "o1", From: domain.OrderStatusPending, Target: domain.OrderStatusRejected,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRejected, res.Order.Status)
}
