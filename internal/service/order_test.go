package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrderService(t *testing.T, env *testEnv) OrderService {
	t.Helper()
	svc, err := NewOrderService(env.deps())
	require.NoError(t, err)
	return svc
}

func TestNewOrderService_RequiresRepositories(t *testing.T) {
	env := newTestEnv()
	deps := env.deps()
	deps.Orders = nil
	_, err := NewOrderService(deps)
	assert.ErrorIs(t, err, ErrMissingOrderRepository)

	deps = env.deps()
	deps.Inventory = nil
	_, err = NewOrderService(deps)
	assert.ErrorIs(t, err, ErrMissingInventoryService)
}

func TestOrderService_SetOrderStatus_Guards(t *testing.T) {
	tests := []struct {
		name    string
		current domain.OrderStatus
		next    domain.OrderStatus
		wantErr error
	}{
		{
			name:    "cancelled order cannot change",
			current: domain.OrderStatusCancelled,
			next:    domain.OrderStatusProcessing,
			wantErr: domain.ErrOrderCancelled,
		},
		{
			name:    "same status is rejected as already there",
			current: domain.OrderStatusProcessing,
			next:    domain.OrderStatusProcessing,
			wantErr: domain.ErrOrderAlreadyInStatus,
		},
		{
			name:    "backwards move is rejected",
			current: domain.OrderStatusComplete,
			next:    domain.OrderStatusPending,
			wantErr: domain.ErrOrderStatusTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			order := testOrder()
			order.OrderStatus = tt.current
			env.withOrder(order)
			svc := newTestOrderService(t, env)

			_, err := svc.SetOrderStatus(context.Background(), order.ID, tt.next, true)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, env.orders.Updated, "guard failures must not persist")
			assert.Empty(t, env.events.Events)
		})
	}
}

func TestOrderService_SetOrderStatus_CompleteAwardsPointsOnce(t *testing.T) {
	env := newTestEnv()
	order := testOrder()
	order.OrderStatus = domain.OrderStatusProcessing
	env.withOrder(order)
	svc := newTestOrderService(t, env)

	updated, err := svc.SetOrderStatus(context.Background(), order.ID, domain.OrderStatusComplete, true)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusComplete, updated.OrderStatus)
	assert.True(t, updated.LoyaltyPointsWereAdded)
	// (110 total - 10 shipping) * 2 / 10
	assert.Equal(t, 20, updated.CalcLoyaltyPoints)
	require.Len(t, env.orders.Updated, 1)
	assert.Equal(t, 1, env.ledger.count())
	assert.Contains(t, env.notifier.Sent, "completed")
	assert.Contains(t, env.events.names(), "order.status_changed")
}

func TestOrderService_SetOrderStatus_ActivatesGiftVouchers(t *testing.T) {
	env := newTestEnv()
	order := testOrder()
	order.OrderStatus = domain.OrderStatusProcessing
	order.Items[1].IsGiftVoucher = true
	env.withOrder(order)
	env.vouchers.byItem["item-b"] = []domain.GiftVoucher{
		{ID: "gv-1"},
		{ID: "gv-2", IsGiftVoucherActivated: true},
	}
	deps := env.deps()
	deps.OrderSettings.GiftVouchersActivatedStatus = domain.OrderStatusComplete
	svc, err := NewOrderService(deps)
	require.NoError(t, err)

	_, err = svc.SetOrderStatus(context.Background(), order.ID, domain.OrderStatusComplete, false)
	require.NoError(t, err)

	// gv-2 was already active
	require.Len(t, env.vouchers.Updated, 1)
	assert.Equal(t, "gv-1", env.vouchers.Updated[0].ID)
	assert.True(t, env.vouchers.Updated[0].IsGiftVoucherActivated)
}

func TestOrderService_CheckOrderStatus_NoChangeDoesNotPersist(t *testing.T) {
	env := newTestEnv()
	order := testOrder()
	env.withOrder(order)
	svc := newTestOrderService(t, env)

	got, err := svc.CheckOrderStatus(context.Background(), order.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, got.OrderStatus)
	assert.Empty(t, env.orders.Updated)
	assert.Empty(t, env.events.Events)
	assert.Zero(t, env.tx.Calls)
}

func TestOrderService_CheckOrderStatus_PaidWithoutShippingCompletes(t *testing.T) {
	env := newTestEnv()
	order := testOrder()
	order.PaymentStatus = domain.PaymentStatusPaid
	order.ShippingStatus = domain.ShippingStatusNotRequired
	env.withOrder(order)
	svc := newTestOrderService(t, env)

	got, err := svc.CheckOrderStatus(context.Background(), order.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusComplete, got.OrderStatus)
	assert.NotNil(t, got.PaidAt)
	require.Len(t, env.orders.Updated, 1)
	assert.Equal(t, []string{"order.paid", "order.status_changed"}, env.events.names())

	// A second run finds nothing to do.
	_, err = svc.CheckOrderStatus(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, env.orders.Updated, 1)
	assert.Equal(t, 1, env.ledger.count(), "points are awarded once")
}

func TestOrderService_CheckOrderStatus_CompleteOrderWhenDelivered(t *testing.T) {
	tests := []struct {
		name              string
		whenDelivered     bool
		shipping          domain.ShippingStatus
		payment           domain.PaymentStatus
		wantStatus        domain.OrderStatus
		wantPersisted     bool
		wantStatusChanged bool
	}{
		{
			name:          "shipped waits for delivery",
			whenDelivered: true,
			shipping:      domain.ShippingStatusShipped,
			payment:       domain.PaymentStatusPaid,
			wantStatus:    domain.OrderStatusProcessing,
			wantPersisted: true,
		},
		{
			name:          "shipped completes when delivery is not required",
			whenDelivered: false,
			shipping:      domain.ShippingStatusShipped,
			payment:       domain.PaymentStatusPaid,
			wantStatus:    domain.OrderStatusComplete,
			wantPersisted: true,
		},
		{
			name:          "delivered completes",
			whenDelivered: true,
			shipping:      domain.ShippingStatusDelivered,
			payment:       domain.PaymentStatusPaid,
			wantStatus:    domain.OrderStatusComplete,
			wantPersisted: true,
		},
		{
			name:          "authorized payment only starts processing",
			whenDelivered: true,
			shipping:      domain.ShippingStatusNotYetShipped,
			payment:       domain.PaymentStatusAuthorized,
			wantStatus:    domain.OrderStatusProcessing,
			wantPersisted: true,
		},
		{
			name:          "partial shipment starts processing",
			whenDelivered: true,
			shipping:      domain.ShippingStatusPartiallyShipped,
			payment:       domain.PaymentStatusPending,
			wantStatus:    domain.OrderStatusProcessing,
			wantPersisted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			order := testOrder()
			order.ShippingStatus = tt.shipping
			order.PaymentStatus = tt.payment
			env.withOrder(order)

			deps := env.deps()
			deps.OrderSettings.CompleteOrderWhenDelivered = tt.whenDelivered
			svc, err := NewOrderService(deps)
			require.NoError(t, err)

			got, err := svc.CheckOrderStatus(context.Background(), order.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.OrderStatus)
			assert.Equal(t, tt.wantPersisted, len(env.orders.Updated) == 1)
		})
	}
}

func TestOrderService_SetOrderStatus_StaleVersionConflicts(t *testing.T) {
	env := newTestEnv()
	order := testOrder()
	env.withOrder(order)
	env.orders.UpdateFunc = func(ctx context.Context, o *domain.Order) error {
		return domain.ErrVersionConflict
	}
	svc := newTestOrderService(t, env)

	_, err := svc.SetOrderStatus(context.Background(), order.ID, domain.OrderStatusProcessing, false)

	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.Empty(t, env.events.Events)
}

func TestOrderService_DeletedOrderIsGone(t *testing.T) {
	env := newTestEnv()
	order := testOrder()
	order.Deleted = true
	env.withOrder(order)
	svc := newTestOrderService(t, env)

	_, err := svc.SetOrderStatus(context.Background(), order.ID, domain.OrderStatusProcessing, false)
	assert.Equal(t, domain.EGONE, domain.ErrorCode(err))
}

func TestOrderService_GetOrder_NotFound(t *testing.T) {
	env := newTestEnv()
	svc := newTestOrderService(t, env)

	_, err := svc.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.GetOrder(context.Background(), "")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestOrderService_SearchOrders_ClampsPaging(t *testing.T) {
	env := newTestEnv()
	var seen domain.OrderFilter
	env.orders.SearchOrdersFunc = func(ctx context.Context, filter domain.OrderFilter) (domain.Page[domain.Order], error) {
		seen = filter
		return domain.Page[domain.Order]{PageSize: filter.PageSize, TotalCount: 41}, nil
	}
	svc := newTestOrderService(t, env)

	page, err := svc.SearchOrders(context.Background(), domain.OrderFilter{PageIndex: -1, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 0, seen.PageIndex)
	assert.Equal(t, maxPageSize, seen.PageSize)
	assert.Equal(t, 1, page.TotalPages())

	_, err = svc.SearchOrders(context.Background(), domain.OrderFilter{OrderStatus: "shipped"})
	assert.True(t, domain.IsValidationError(err))
}

func TestOrderService_PrepareOrderCode(t *testing.T) {
	env := newTestEnv()
	deps := env.deps()
	deps.OrderSettings.LengthCode = 6
	svc, err := NewOrderService(deps)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		code, err := svc.PrepareOrderCode(context.Background())
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			require.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected character %q", r)
		}
	}
}

func TestOrderService_PrepareOrderCode_RetriesTakenCodes(t *testing.T) {
	env := newTestEnv()
	calls := 0
	env.orders.GetByCodeFunc = func(ctx context.Context, code string) (*domain.Order, error) {
		calls++
		if calls < 3 {
			return &domain.Order{Code: code}, nil
		}
		return nil, domain.NotFound("order.get_by_code", "order", code)
	}
	svc := newTestOrderService(t, env)

	code, err := svc.PrepareOrderCode(context.Background())
	require.NoError(t, err)
	assert.Len(t, code, 8)
	assert.Equal(t, 3, calls)

	env.orders.GetByCodeFunc = func(ctx context.Context, code string) (*domain.Order, error) {
		return &domain.Order{Code: code}, nil
	}
	_, err = svc.PrepareOrderCode(context.Background())
	assert.ErrorIs(t, err, ErrOrderCodeUnavailable)
}

func TestOrderService_NextOrderNumber(t *testing.T) {
	env := newTestEnv()
	highest := 0
	env.orders.NextOrderNumberFunc = func(ctx context.Context, floor int) (int, error) {
		next := highest + 1
		if floor > next {
			next = floor
		}
		highest = next
		return next, nil
	}
	svc := newTestOrderService(t, env)
	ctx := context.Background()

	n, err := svc.NextOrderNumber(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, n, "empty order set starts at the floor")

	n, err = svc.NextOrderNumber(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	n, err = svc.NextOrderNumber(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 12, n, "a lower floor never regresses")

	n, err = svc.NextOrderNumber(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 13, n)
}

func TestOrderService_CancelOrderItem(t *testing.T) {
	t.Run("partial cancel releases stock", func(t *testing.T) {
		env := newTestEnv()
		order := testOrder()
		env.withOrder(order)
		svc := newTestOrderService(t, env)

		got, err := svc.CancelOrderItem(context.Background(), order.ID, "item-a", 1)
		require.NoError(t, err)

		item, err := got.Item("item-a")
		require.NoError(t, err)
		assert.Equal(t, 1, item.OpenQty)
		assert.Equal(t, 1, item.CancelQty)
		assert.Equal(t, domain.OrderItemStatusOpen, item.Status)
		assert.True(t, item.QuantityConsistent())
		assert.Equal(t, []adjustCall{{ProductID: "product-a", Quantity: 1}}, env.inventory.Calls)
		assert.Len(t, env.orders.Updated, 1)
	})

	t.Run("zero quantity cancels every open unit", func(t *testing.T) {
		env := newTestEnv()
		order := testOrder()
		env.withOrder(order)
		svc := newTestOrderService(t, env)

		got, err := svc.CancelOrderItem(context.Background(), order.ID, "item-a", 0)
		require.NoError(t, err)

		item, _ := got.Item("item-a")
		assert.Equal(t, 0, item.OpenQty)
		assert.Equal(t, 2, item.CancelQty)
		assert.Equal(t, domain.OrderItemStatusCancelled, item.Status)
	})

	t.Run("more than open is rejected without side effects", func(t *testing.T) {
		env := newTestEnv()
		order := testOrder()
		env.withOrder(order)
		svc := newTestOrderService(t, env)

		_, err := svc.CancelOrderItem(context.Background(), order.ID, "item-a", 3)
		assert.ErrorIs(t, err, domain.ErrItemQuantityExceedsOpen)
		assert.Empty(t, env.inventory.Calls)
		assert.Empty(t, env.orders.Updated)
	})

	t.Run("cancelled item is not open", func(t *testing.T) {
		env := newTestEnv()
		order := testOrder()
		require.NoError(t, order.Items[1].Cancel(1))
		env.withOrder(order)
		svc := newTestOrderService(t, env)

		_, err := svc.CancelOrderItem(context.Background(), order.ID, "item-b", 1)
		assert.ErrorIs(t, err, domain.ErrOrderItemNotOpen)
	})

	t.Run("inventory failure aborts", func(t *testing.T) {
		env := newTestEnv()
		order := testOrder()
		env.withOrder(order)
		env.inventory.AdjustReservedFunc = func(ctx context.Context, productID string, qty int, attrs []domain.CustomAttribute, warehouseID string) error {
			return errors.New("inventory unavailable")
		}
		svc := newTestOrderService(t, env)

		_, err := svc.CancelOrderItem(context.Background(), order.ID, "item-a", 1)
		assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
		assert.Empty(t, env.orders.Updated)
	})
}

func TestOrderService_InsertOrderItem(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		env := newTestEnv()
		svc := newTestOrderService(t, env)

		_, err := svc.InsertOrderItem(context.Background(), "id", InsertOrderItemParams{ProductID: "p", Quantity: 0})
		require.Error(t, err)
		assert.True(t, domain.IsValidationError(err))
		assert.Contains(t, domain.GetValidationFields(err), "quantity")
	})

	t.Run("reserves stock and recalculates totals", func(t *testing.T) {
		env := newTestEnv()
		order := testOrder()
		env.withOrder(order)
		svc := newTestOrderService(t, env)

		got, err := svc.InsertOrderItem(context.Background(), order.ID, InsertOrderItemParams{
			ProductID:        "product-c",
			Quantity:         3,
			UnitPriceInclTax: decimal.NewFromInt(12),
			UnitPriceExclTax: decimal.NewFromInt(10),
		})
		require.NoError(t, err)

		require.Len(t, got.Items, 3)
		assert.Equal(t, []adjustCall{{ProductID: "product-c", Quantity: -3}}, env.inventory.Calls)
		assert.True(t, got.OrderTotal.Equal(decimal.NewFromInt(146)), "got %s", got.OrderTotal)
		assert.Contains(t, env.events.names(), "order_item.inserted")
	})

	t.Run("gift voucher item creates one voucher per unit", func(t *testing.T) {
		env := newTestEnv()
		order := testOrder()
		env.withOrder(order)
		svc := newTestOrderService(t, env)

		_, err := svc.InsertOrderItem(context.Background(), order.ID, InsertOrderItemParams{
			ProductID:        "voucher-25",
			Quantity:         2,
			UnitPriceInclTax: decimal.NewFromInt(25),
			UnitPriceExclTax: decimal.NewFromInt(25),
			IsGiftVoucher:    true,
		})
		require.NoError(t, err)

		require.Len(t, env.vouchers.Inserted, 2)
		for _, v := range env.vouchers.Inserted {
			assert.True(t, v.Amount.Equal(decimal.NewFromInt(25)))
			assert.False(t, v.IsGiftVoucherActivated)
			assert.Len(t, v.Code, giftVoucherCodeLength)
		}
		assert.Equal(t, 2, countEvents(env.events.names(), "gift_voucher.inserted"))
	})

	t.Run("vouchers of a failed save are not announced", func(t *testing.T) {
		env := newTestEnv()
		order := testOrder()
		env.withOrder(order)
		env.orders.UpdateFunc = func(ctx context.Context, o *domain.Order) error {
			return domain.ErrVersionConflict
		}
		svc := newTestOrderService(t, env)

		_, err := svc.InsertOrderItem(context.Background(), order.ID, InsertOrderItemParams{
			ProductID:        "voucher-25",
			Quantity:         1,
			UnitPriceInclTax: decimal.NewFromInt(25),
			UnitPriceExclTax: decimal.NewFromInt(25),
			IsGiftVoucher:    true,
		})
		require.Error(t, err)
		assert.Zero(t, countEvents(env.events.names(), "gift_voucher.inserted"))
	})

	t.Run("save failure gives the reservation back", func(t *testing.T) {
		env := newTestEnv()
		order := testOrder()
		env.withOrder(order)
		env.orders.UpdateFunc = func(ctx context.Context, o *domain.Order) error {
			return errors.New("connection reset")
		}
		svc := newTestOrderService(t, env)

		_, err := svc.InsertOrderItem(context.Background(), order.ID, InsertOrderItemParams{ProductID: "product-c", Quantity: 3})
		require.Error(t, err)
		assert.Equal(t, []adjustCall{
			{ProductID: "product-c", Quantity: -3},
			{ProductID: "product-c", Quantity: 3},
		}, env.inventory.Calls)
	})
}

func TestOrderService_UpdateOrderItem(t *testing.T) {
	t.Run("raising quantity reserves the difference", func(t *testing.T) {
		env := newTestEnv()
		order := testOrder()
		env.withOrder(order)
		svc := newTestOrderService(t, env)

		price := decimal.NewFromInt(20)
		got, err := svc.UpdateOrderItem(context.Background(), order.ID, "item-a", UpdateOrderItemParams{
			Quantity:         5,
			UnitPriceInclTax: &price,
		})
		require.NoError(t, err)

		item, _ := got.Item("item-a")
		assert.Equal(t, 5, item.Quantity)
		assert.Equal(t, 5, item.OpenQty)
		assert.True(t, item.PriceInclTax.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, []adjustCall{{ProductID: "product-a", Quantity: -3}}, env.inventory.Calls)
	})

	t.Run("cannot drop below processed units", func(t *testing.T) {
		env := newTestEnv()
		order := testOrder()
		require.NoError(t, order.Items[0].Ship(2))
		env.withOrder(order)
		svc := newTestOrderService(t, env)

		_, err := svc.UpdateOrderItem(context.Background(), order.ID, "item-a", UpdateOrderItemParams{Quantity: 1})
		assert.ErrorIs(t, err, domain.ErrItemQuantityBelowProcessed)
		assert.Empty(t, env.inventory.Calls)
	})
}
