package service

import (
	"context"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/shopspring/decimal"
)

// Test doubles for the service interfaces, used by handler tests. Each
// method delegates to its Func field; an unset field fails with ENOTIMPL.

func notConfigured(method string) error {
	return domain.Errorf(domain.ENOTIMPL, "mock."+method, "%s not configured", method)
}

// MockOrderService is a test implementation of OrderService.
type MockOrderService struct {
	GetOrderFunc         func(ctx context.Context, orderID string) (*domain.Order, error)
	GetOrderByGUIDFunc   func(ctx context.Context, orderGUID string) (*domain.Order, error)
	SearchOrdersFunc     func(ctx context.Context, filter domain.OrderFilter) (domain.Page[domain.Order], error)
	SetOrderStatusFunc   func(ctx context.Context, orderID string, status domain.OrderStatus, notify bool) (*domain.Order, error)
	CheckOrderStatusFunc func(ctx context.Context, orderID string) (*domain.Order, error)
	CancelOrderFunc      func(ctx context.Context, orderID string, notify bool) (*domain.Order, error)
	DeleteOrderFunc      func(ctx context.Context, orderID string) error
	CancelOrderItemFunc  func(ctx context.Context, orderID, itemID string, quantity int) (*domain.Order, error)
	InsertOrderItemFunc  func(ctx context.Context, orderID string, params InsertOrderItemParams) (*domain.Order, error)
	UpdateOrderItemFunc  func(ctx context.Context, orderID, itemID string, params UpdateOrderItemParams) (*domain.Order, error)
	PrepareOrderCodeFunc func(ctx context.Context) (string, error)
	NextOrderNumberFunc  func(ctx context.Context, floor int) (int, error)
}

var _ OrderService = (*MockOrderService)(nil)

func (m *MockOrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if m.GetOrderFunc == nil {
		return nil, notConfigured("GetOrder")
	}
	return m.GetOrderFunc(ctx, orderID)
}

func (m *MockOrderService) GetOrderByGUID(ctx context.Context, orderGUID string) (*domain.Order, error) {
	if m.GetOrderByGUIDFunc == nil {
		return nil, notConfigured("GetOrderByGUID")
	}
	return m.GetOrderByGUIDFunc(ctx, orderGUID)
}

func (m *MockOrderService) SearchOrders(ctx context.Context, filter domain.OrderFilter) (domain.Page[domain.Order], error) {
	if m.SearchOrdersFunc == nil {
		return domain.Page[domain.Order]{}, notConfigured("SearchOrders")
	}
	return m.SearchOrdersFunc(ctx, filter)
}

func (m *MockOrderService) SetOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, notify bool) (*domain.Order, error) {
	if m.SetOrderStatusFunc == nil {
		return nil, notConfigured("SetOrderStatus")
	}
	return m.SetOrderStatusFunc(ctx, orderID, status, notify)
}

func (m *MockOrderService) CheckOrderStatus(ctx context.Context, orderID string) (*domain.Order, error) {
	if m.CheckOrderStatusFunc == nil {
		return nil, notConfigured("CheckOrderStatus")
	}
	return m.CheckOrderStatusFunc(ctx, orderID)
}

func (m *MockOrderService) CancelOrder(ctx context.Context, orderID string, notify bool) (*domain.Order, error) {
	if m.CancelOrderFunc == nil {
		return nil, notConfigured("CancelOrder")
	}
	return m.CancelOrderFunc(ctx, orderID, notify)
}

func (m *MockOrderService) DeleteOrder(ctx context.Context, orderID string) error {
	if m.DeleteOrderFunc == nil {
		return notConfigured("DeleteOrder")
	}
	return m.DeleteOrderFunc(ctx, orderID)
}

func (m *MockOrderService) CancelOrderItem(ctx context.Context, orderID, itemID string, quantity int) (*domain.Order, error) {
	if m.CancelOrderItemFunc == nil {
		return nil, notConfigured("CancelOrderItem")
	}
	return m.CancelOrderItemFunc(ctx, orderID, itemID, quantity)
}

func (m *MockOrderService) InsertOrderItem(ctx context.Context, orderID string, params InsertOrderItemParams) (*domain.Order, error) {
	if m.InsertOrderItemFunc == nil {
		return nil, notConfigured("InsertOrderItem")
	}
	return m.InsertOrderItemFunc(ctx, orderID, params)
}

func (m *MockOrderService) UpdateOrderItem(ctx context.Context, orderID, itemID string, params UpdateOrderItemParams) (*domain.Order, error) {
	if m.UpdateOrderItemFunc == nil {
		return nil, notConfigured("UpdateOrderItem")
	}
	return m.UpdateOrderItemFunc(ctx, orderID, itemID, params)
}

func (m *MockOrderService) PrepareOrderCode(ctx context.Context) (string, error) {
	if m.PrepareOrderCodeFunc == nil {
		return "", notConfigured("PrepareOrderCode")
	}
	return m.PrepareOrderCodeFunc(ctx)
}

func (m *MockOrderService) NextOrderNumber(ctx context.Context, floor int) (int, error) {
	if m.NextOrderNumberFunc == nil {
		return 0, notConfigured("NextOrderNumber")
	}
	return m.NextOrderNumberFunc(ctx, floor)
}

// MockPaymentTransactionService is a test implementation of PaymentTransactionService.
// Calls records the name and transaction id of every state-changing call.
type MockPaymentTransactionService struct {
	GetTransactionFunc                  func(ctx context.Context, id string) (*domain.PaymentTransaction, error)
	GetByAuthorizationTransactionIDFunc func(ctx context.Context, authorizationID string) (*domain.PaymentTransaction, error)
	ListByOrderGUIDFunc                 func(ctx context.Context, orderGUID string) ([]domain.PaymentTransaction, error)
	GuardSummaryFunc                    func(ctx context.Context, id string) (domain.TransactionGuards, error)

	// ActionFunc backs every operation without an amount.
	ActionFunc func(ctx context.Context, action, id string) (*domain.PaymentTransaction, error)
	// AmountFunc backs the partial operations.
	AmountFunc func(ctx context.Context, action, id string, amount decimal.Decimal) (*domain.PaymentTransaction, error)
	// MarkAsAuthorizedFunc records gateway authorizations.
	MarkAsAuthorizedFunc func(ctx context.Context, id, authorizationID string) (*domain.PaymentTransaction, error)
	// MarkAsCapturedFunc records captures made outside the engine.
	MarkAsCapturedFunc func(ctx context.Context, id, captureID string) (*domain.PaymentTransaction, error)

	Calls []string
}

var _ PaymentTransactionService = (*MockPaymentTransactionService)(nil)

func (m *MockPaymentTransactionService) GetTransaction(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	if m.GetTransactionFunc == nil {
		return nil, notConfigured("GetTransaction")
	}
	return m.GetTransactionFunc(ctx, id)
}

func (m *MockPaymentTransactionService) GetByAuthorizationTransactionID(ctx context.Context, authorizationID string) (*domain.PaymentTransaction, error) {
	if m.GetByAuthorizationTransactionIDFunc == nil {
		return nil, notConfigured("GetByAuthorizationTransactionID")
	}
	return m.GetByAuthorizationTransactionIDFunc(ctx, authorizationID)
}

func (m *MockPaymentTransactionService) ListByOrderGUID(ctx context.Context, orderGUID string) ([]domain.PaymentTransaction, error) {
	if m.ListByOrderGUIDFunc == nil {
		return nil, notConfigured("ListByOrderGUID")
	}
	return m.ListByOrderGUIDFunc(ctx, orderGUID)
}

func (m *MockPaymentTransactionService) GuardSummary(ctx context.Context, id string) (domain.TransactionGuards, error) {
	if m.GuardSummaryFunc == nil {
		return domain.TransactionGuards{}, notConfigured("GuardSummary")
	}
	return m.GuardSummaryFunc(ctx, id)
}

func (m *MockPaymentTransactionService) action(ctx context.Context, name, id string) (*domain.PaymentTransaction, error) {
	m.Calls = append(m.Calls, name+":"+id)
	if m.ActionFunc == nil {
		return nil, notConfigured(name)
	}
	return m.ActionFunc(ctx, name, id)
}

func (m *MockPaymentTransactionService) amount(ctx context.Context, name, id string, amount decimal.Decimal) (*domain.PaymentTransaction, error) {
	m.Calls = append(m.Calls, name+":"+id+":"+amount.String())
	if m.AmountFunc == nil {
		return nil, notConfigured(name)
	}
	return m.AmountFunc(ctx, name, id, amount)
}

func (m *MockPaymentTransactionService) Capture(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	return m.action(ctx, "Capture", id)
}

func (m *MockPaymentTransactionService) Void(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	return m.action(ctx, "Void", id)
}

func (m *MockPaymentTransactionService) Refund(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	return m.action(ctx, "Refund", id)
}

func (m *MockPaymentTransactionService) PartiallyRefund(ctx context.Context, id string, amount decimal.Decimal) (*domain.PaymentTransaction, error) {
	return m.amount(ctx, "PartiallyRefund", id, amount)
}

func (m *MockPaymentTransactionService) MarkAsPaid(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	return m.action(ctx, "MarkAsPaid", id)
}

func (m *MockPaymentTransactionService) PartiallyPaidOffline(ctx context.Context, id string, amount decimal.Decimal) (*domain.PaymentTransaction, error) {
	return m.amount(ctx, "PartiallyPaidOffline", id, amount)
}

func (m *MockPaymentTransactionService) VoidOffline(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	return m.action(ctx, "VoidOffline", id)
}

func (m *MockPaymentTransactionService) RefundOffline(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	return m.action(ctx, "RefundOffline", id)
}

func (m *MockPaymentTransactionService) PartiallyRefundOffline(ctx context.Context, id string, amount decimal.Decimal) (*domain.PaymentTransaction, error) {
	return m.amount(ctx, "PartiallyRefundOffline", id, amount)
}

func (m *MockPaymentTransactionService) MarkAsAuthorized(ctx context.Context, id, authorizationID string) (*domain.PaymentTransaction, error) {
	m.Calls = append(m.Calls, "MarkAsAuthorized:"+id+":"+authorizationID)
	if m.MarkAsAuthorizedFunc == nil {
		return nil, notConfigured("MarkAsAuthorized")
	}
	return m.MarkAsAuthorizedFunc(ctx, id, authorizationID)
}

func (m *MockPaymentTransactionService) MarkAsCaptured(ctx context.Context, id, captureID string) (*domain.PaymentTransaction, error) {
	m.Calls = append(m.Calls, "MarkAsCaptured:"+id+":"+captureID)
	if m.MarkAsCapturedFunc == nil {
		return nil, notConfigured("MarkAsCaptured")
	}
	return m.MarkAsCapturedFunc(ctx, id, captureID)
}

// MockFulfillmentService is a test implementation of FulfillmentService.
type MockFulfillmentService struct {
	CreateShipmentFunc        func(ctx context.Context, params CreateShipmentParams) (*domain.Shipment, error)
	GetShipmentFunc           func(ctx context.Context, shipmentID string) (*domain.Shipment, error)
	ListShipmentsForOrderFunc func(ctx context.Context, orderID string) ([]domain.Shipment, error)
	MarkShippedFunc           func(ctx context.Context, shipmentID string) (*domain.Shipment, error)
	MarkDeliveredFunc         func(ctx context.Context, shipmentID string) (*domain.Shipment, error)
	ReturnOrderItemFunc       func(ctx context.Context, orderID, itemID string, quantity int) (*domain.Order, error)
}

var _ FulfillmentService = (*MockFulfillmentService)(nil)

func (m *MockFulfillmentService) CreateShipment(ctx context.Context, params CreateShipmentParams) (*domain.Shipment, error) {
	if m.CreateShipmentFunc == nil {
		return nil, notConfigured("CreateShipment")
	}
	return m.CreateShipmentFunc(ctx, params)
}

func (m *MockFulfillmentService) GetShipment(ctx context.Context, shipmentID string) (*domain.Shipment, error) {
	if m.GetShipmentFunc == nil {
		return nil, notConfigured("GetShipment")
	}
	return m.GetShipmentFunc(ctx, shipmentID)
}

func (m *MockFulfillmentService) ListShipmentsForOrder(ctx context.Context, orderID string) ([]domain.Shipment, error) {
	if m.ListShipmentsForOrderFunc == nil {
		return nil, notConfigured("ListShipmentsForOrder")
	}
	return m.ListShipmentsForOrderFunc(ctx, orderID)
}

func (m *MockFulfillmentService) MarkShipped(ctx context.Context, shipmentID string) (*domain.Shipment, error) {
	if m.MarkShippedFunc == nil {
		return nil, notConfigured("MarkShipped")
	}
	return m.MarkShippedFunc(ctx, shipmentID)
}

func (m *MockFulfillmentService) MarkDelivered(ctx context.Context, shipmentID string) (*domain.Shipment, error) {
	if m.MarkDeliveredFunc == nil {
		return nil, notConfigured("MarkDelivered")
	}
	return m.MarkDeliveredFunc(ctx, shipmentID)
}

func (m *MockFulfillmentService) ReturnOrderItem(ctx context.Context, orderID, itemID string, quantity int) (*domain.Order, error) {
	if m.ReturnOrderItemFunc == nil {
		return nil, notConfigured("ReturnOrderItem")
	}
	return m.ReturnOrderItemFunc(ctx, orderID, itemID, quantity)
}

// MockLoyaltyService is a test implementation of LoyaltyService.
type MockLoyaltyService struct {
	PointsFunc  func(ctx context.Context, action, orderID string) (int, error)
	BalanceFunc func(ctx context.Context, customerID, storeID string) (int, error)
	HistoryFunc func(ctx context.Context, customerID, storeID string) ([]domain.LoyaltyPointsHistory, error)
}

var _ LoyaltyService = (*MockLoyaltyService)(nil)

func (m *MockLoyaltyService) CalculateLoyaltyPoints(customer *domain.Customer, amount decimal.Decimal) int {
	return 0
}

func (m *MockLoyaltyService) points(ctx context.Context, action, orderID string) (int, error) {
	if m.PointsFunc == nil {
		return 0, notConfigured(action)
	}
	return m.PointsFunc(ctx, action, orderID)
}

func (m *MockLoyaltyService) AwardLoyaltyPoints(ctx context.Context, orderID string) (int, error) {
	return m.points(ctx, "AwardLoyaltyPoints", orderID)
}

func (m *MockLoyaltyService) ReduceLoyaltyPoints(ctx context.Context, orderID string) (int, error) {
	return m.points(ctx, "ReduceLoyaltyPoints", orderID)
}

func (m *MockLoyaltyService) ReturnBackRedeemedLoyaltyPoints(ctx context.Context, orderID string) (int, error) {
	return m.points(ctx, "ReturnBackRedeemedLoyaltyPoints", orderID)
}

func (m *MockLoyaltyService) Balance(ctx context.Context, customerID, storeID string) (int, error) {
	if m.BalanceFunc == nil {
		return 0, notConfigured("Balance")
	}
	return m.BalanceFunc(ctx, customerID, storeID)
}

func (m *MockLoyaltyService) History(ctx context.Context, customerID, storeID string) ([]domain.LoyaltyPointsHistory, error) {
	if m.HistoryFunc == nil {
		return nil, notConfigured("History")
	}
	return m.HistoryFunc(ctx, customerID, storeID)
}
