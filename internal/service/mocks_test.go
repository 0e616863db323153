package service

import (
	"context"
	"sync"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/shopspring/decimal"
)

// mockOrderRepository implements domain.OrderRepository for testing.
// Updated records a copy of every order passed to Update.
type mockOrderRepository struct {
	GetByIDFunc         func(ctx context.Context, id string) (*domain.Order, error)
	GetByGUIDFunc       func(ctx context.Context, guid string) (*domain.Order, error)
	GetByCodeFunc       func(ctx context.Context, code string) (*domain.Order, error)
	InsertFunc          func(ctx context.Context, order *domain.Order) error
	UpdateFunc          func(ctx context.Context, order *domain.Order) error
	SearchOrdersFunc    func(ctx context.Context, filter domain.OrderFilter) (domain.Page[domain.Order], error)
	NextOrderNumberFunc func(ctx context.Context, floor int) (int, error)

	mu      sync.Mutex
	Updated []domain.Order
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.NotFound("order.get", "order", id)
}

func (m *mockOrderRepository) GetByGUID(ctx context.Context, guid string) (*domain.Order, error) {
	if m.GetByGUIDFunc != nil {
		return m.GetByGUIDFunc(ctx, guid)
	}
	return nil, domain.NotFound("order.get_by_guid", "order", guid)
}

func (m *mockOrderRepository) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	if m.GetByCodeFunc != nil {
		return m.GetByCodeFunc(ctx, code)
	}
	return nil, domain.NotFound("order.get_by_code", "order", code)
}

func (m *mockOrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, order)
	}
	return nil
}

func (m *mockOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	if m.UpdateFunc != nil {
		if err := m.UpdateFunc(ctx, order); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updated = append(m.Updated, *order)
	return nil
}

func (m *mockOrderRepository) SearchOrders(ctx context.Context, filter domain.OrderFilter) (domain.Page[domain.Order], error) {
	if m.SearchOrdersFunc != nil {
		return m.SearchOrdersFunc(ctx, filter)
	}
	return domain.Page[domain.Order]{PageIndex: filter.PageIndex, PageSize: filter.PageSize}, nil
}

func (m *mockOrderRepository) NextOrderNumber(ctx context.Context, floor int) (int, error) {
	if m.NextOrderNumberFunc != nil {
		return m.NextOrderNumberFunc(ctx, floor)
	}
	return floor, nil
}

// mockTransactionRepository implements domain.PaymentTransactionRepository.
type mockTransactionRepository struct {
	GetByIDFunc                         func(ctx context.Context, id string) (*domain.PaymentTransaction, error)
	GetByAuthorizationTransactionIDFunc func(ctx context.Context, authorizationID string) (*domain.PaymentTransaction, error)
	ListByOrderGUIDFunc                 func(ctx context.Context, orderGUID string) ([]domain.PaymentTransaction, error)
	UpdateFunc                          func(ctx context.Context, tx *domain.PaymentTransaction) error

	Updated []domain.PaymentTransaction
}

func (m *mockTransactionRepository) GetByID(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.NotFound("payment_transaction.get", "payment transaction", id)
}

func (m *mockTransactionRepository) GetByAuthorizationTransactionID(ctx context.Context, authorizationID string) (*domain.PaymentTransaction, error) {
	if m.GetByAuthorizationTransactionIDFunc != nil {
		return m.GetByAuthorizationTransactionIDFunc(ctx, authorizationID)
	}
	return nil, domain.NotFound("payment_transaction.get", "payment transaction", authorizationID)
}

func (m *mockTransactionRepository) ListByOrderGUID(ctx context.Context, orderGUID string) ([]domain.PaymentTransaction, error) {
	if m.ListByOrderGUIDFunc != nil {
		return m.ListByOrderGUIDFunc(ctx, orderGUID)
	}
	return nil, nil
}

func (m *mockTransactionRepository) Insert(ctx context.Context, tx *domain.PaymentTransaction) error {
	return nil
}

func (m *mockTransactionRepository) Update(ctx context.Context, tx *domain.PaymentTransaction) error {
	if m.UpdateFunc != nil {
		if err := m.UpdateFunc(ctx, tx); err != nil {
			return err
		}
	}
	m.Updated = append(m.Updated, *tx)
	return nil
}

// mockShipmentRepository implements domain.ShipmentRepository.
type mockShipmentRepository struct {
	GetByIDFunc       func(ctx context.Context, id string) (*domain.Shipment, error)
	ListByOrderIDFunc func(ctx context.Context, orderID string) ([]domain.Shipment, error)
	DeleteFunc        func(ctx context.Context, id string) error

	Inserted []domain.Shipment
	Updated  []domain.Shipment
	Deleted  []string
}

func (m *mockShipmentRepository) GetByID(ctx context.Context, id string) (*domain.Shipment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.NotFound("shipment.get", "shipment", id)
}

func (m *mockShipmentRepository) ListByOrderID(ctx context.Context, orderID string) ([]domain.Shipment, error) {
	if m.ListByOrderIDFunc != nil {
		return m.ListByOrderIDFunc(ctx, orderID)
	}
	return nil, nil
}

func (m *mockShipmentRepository) Insert(ctx context.Context, shipment *domain.Shipment) error {
	m.Inserted = append(m.Inserted, *shipment)
	return nil
}

func (m *mockShipmentRepository) Update(ctx context.Context, shipment *domain.Shipment) error {
	m.Updated = append(m.Updated, *shipment)
	return nil
}

func (m *mockShipmentRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		if err := m.DeleteFunc(ctx, id); err != nil {
			return err
		}
	}
	m.Deleted = append(m.Deleted, id)
	return nil
}

// memoryLedger is an in-memory domain.LoyaltyPointsRepository that computes
// balances the way the Postgres ledger does: from the previous snapshot.
type memoryLedger struct {
	AppendErr error

	mu      sync.Mutex
	entries []domain.LoyaltyPointsHistory
}

func (m *memoryLedger) Append(ctx context.Context, entry domain.NewLoyaltyEntry) (*domain.LoyaltyPointsHistory, error) {
	if m.AppendErr != nil {
		return nil, m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := 0
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].CustomerID == entry.CustomerID && m.entries[i].StoreID == entry.StoreID {
			prev = m.entries[i].PointsBalance
			break
		}
	}
	h := domain.LoyaltyPointsHistory{
		ID:              entry.CustomerID + "-" + string(rune('a'+len(m.entries))),
		CustomerID:      entry.CustomerID,
		StoreID:         entry.StoreID,
		Points:          entry.Points,
		PointsBalance:   prev + entry.Points,
		UsedAmount:      entry.UsedAmount,
		Message:         entry.Message,
		UsedWithOrderID: entry.UsedWithOrderID,
	}
	m.entries = append(m.entries, h)
	return &h, nil
}

func (m *memoryLedger) Balance(ctx context.Context, customerID, storeID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].CustomerID == customerID && m.entries[i].StoreID == storeID {
			return m.entries[i].PointsBalance, nil
		}
	}
	return 0, nil
}

func (m *memoryLedger) History(ctx context.Context, customerID, storeID string) ([]domain.LoyaltyPointsHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LoyaltyPointsHistory
	for _, e := range m.entries {
		if e.CustomerID == customerID && e.StoreID == storeID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryLedger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *memoryLedger) truncate(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = m.entries[:n]
}

// mockGiftVoucherRepository implements domain.GiftVoucherRepository.
type mockGiftVoucherRepository struct {
	byItem   map[string][]domain.GiftVoucher
	Inserted []domain.GiftVoucher
	Updated  []domain.GiftVoucher
}

func (m *mockGiftVoucherRepository) GetByPurchasedWithOrderItemID(ctx context.Context, orderItemID string) ([]domain.GiftVoucher, error) {
	return append([]domain.GiftVoucher(nil), m.byItem[orderItemID]...), nil
}

func (m *mockGiftVoucherRepository) Insert(ctx context.Context, voucher *domain.GiftVoucher) error {
	m.Inserted = append(m.Inserted, *voucher)
	return nil
}

func (m *mockGiftVoucherRepository) Update(ctx context.Context, voucher *domain.GiftVoucher) error {
	m.Updated = append(m.Updated, *voucher)
	return nil
}

// mockCustomerRepository implements domain.CustomerRepository.
type mockCustomerRepository struct {
	GetByIDFunc func(ctx context.Context, id string) (*domain.Customer, error)
}

func (m *mockCustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return &domain.Customer{ID: id, Active: true}, nil
}

// mockCurrencyService converts by multiplying with Rate (1 when zero).
type mockCurrencyService struct {
	Rate decimal.Decimal
}

func (m *mockCurrencyService) ConvertToPrimary(ctx context.Context, amount decimal.Decimal, currencyCode string) (decimal.Decimal, error) {
	if m.Rate.IsZero() {
		return amount, nil
	}
	return amount.Mul(m.Rate), nil
}

// adjustCall records one InventoryService.AdjustReserved call.
type adjustCall struct {
	ProductID string
	Quantity  int
}

type mockInventoryService struct {
	AdjustReservedFunc func(ctx context.Context, productID string, quantityToChange int, attributes []domain.CustomAttribute, warehouseID string) error
	Calls              []adjustCall
}

func (m *mockInventoryService) AdjustReserved(ctx context.Context, productID string, quantityToChange int, attributes []domain.CustomAttribute, warehouseID string) error {
	if m.AdjustReservedFunc != nil {
		if err := m.AdjustReservedFunc(ctx, productID, quantityToChange, attributes, warehouseID); err != nil {
			return err
		}
	}
	m.Calls = append(m.Calls, adjustCall{ProductID: productID, Quantity: quantityToChange})
	return nil
}

// mockOrderCollaborators implements the reservation, auction and discount
// services with per-method call counters.
type mockOrderCollaborators struct {
	CancelReservationsErr error
	CancelBidErr          error
	CancelDiscountErr     error

	ReservationCalls []string
	BidCalls         []string
	DiscountCalls    []string
}

func (m *mockOrderCollaborators) CancelReservationsByOrderID(ctx context.Context, orderID string) error {
	m.ReservationCalls = append(m.ReservationCalls, orderID)
	return m.CancelReservationsErr
}

func (m *mockOrderCollaborators) CancelBidByOrder(ctx context.Context, orderID string) error {
	m.BidCalls = append(m.BidCalls, orderID)
	return m.CancelBidErr
}

func (m *mockOrderCollaborators) CancelDiscount(ctx context.Context, orderID string) error {
	m.DiscountCalls = append(m.DiscountCalls, orderID)
	return m.CancelDiscountErr
}

// mockNotifier records which notifications were sent.
type mockNotifier struct {
	Sent []string
	Err  error
}

func (m *mockNotifier) OrderCompleted(ctx context.Context, order *domain.Order, invoiceURL string) error {
	m.Sent = append(m.Sent, "completed")
	return m.Err
}

func (m *mockNotifier) OrderCancelled(ctx context.Context, order *domain.Order) error {
	m.Sent = append(m.Sent, "cancelled")
	return m.Err
}

func (m *mockNotifier) OrderPaid(ctx context.Context, order *domain.Order) error {
	m.Sent = append(m.Sent, "paid")
	return m.Err
}

func (m *mockNotifier) OrderRefunded(ctx context.Context, order *domain.Order, amount decimal.Decimal) error {
	m.Sent = append(m.Sent, "refunded:"+amount.String())
	return m.Err
}

func (m *mockNotifier) PaymentVoided(ctx context.Context, order *domain.Order, tx *domain.PaymentTransaction) error {
	m.Sent = append(m.Sent, "voided")
	return m.Err
}

// mockEventPublisher records published event names.
type mockEventPublisher struct {
	Events []domain.Event
}

func (m *mockEventPublisher) Publish(ctx context.Context, event domain.Event) error {
	m.Events = append(m.Events, event)
	return nil
}

func (m *mockEventPublisher) names() []string {
	names := make([]string, len(m.Events))
	for i, e := range m.Events {
		names[i] = e.EventName()
	}
	return names
}

func countEvents(names []string, name string) int {
	n := 0
	for _, got := range names {
		if got == name {
			n++
		}
	}
	return n
}

// countingTx counts transactions and runs fn inline. When fn fails it
// rolls back the ledger entries and voucher writes fn made, nested calls
// included, the way a savepoint does.
type countingTx struct {
	Calls int

	ledger   *memoryLedger
	vouchers *mockGiftVoucherRepository
}

func (m *countingTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.Calls++
	var entries, inserted, updated int
	if m.ledger != nil {
		entries = m.ledger.count()
	}
	if m.vouchers != nil {
		inserted, updated = len(m.vouchers.Inserted), len(m.vouchers.Updated)
	}

	err := fn(ctx)
	if err == nil {
		return nil
	}
	if m.ledger != nil {
		m.ledger.truncate(entries)
	}
	if m.vouchers != nil {
		m.vouchers.Inserted = m.vouchers.Inserted[:inserted]
		m.vouchers.Updated = m.vouchers.Updated[:updated]
	}
	return err
}

// testEnv bundles every collaborator with sensible defaults.
type testEnv struct {
	orders        *mockOrderRepository
	transactions  *mockTransactionRepository
	shipments     *mockShipmentRepository
	ledger        *memoryLedger
	vouchers      *mockGiftVoucherRepository
	customers     *mockCustomerRepository
	inventory     *mockInventoryService
	collaborators *mockOrderCollaborators
	notifier      *mockNotifier
	events        *mockEventPublisher
	tx            *countingTx
}

func newTestEnv() *testEnv {
	ledger := &memoryLedger{}
	vouchers := &mockGiftVoucherRepository{byItem: map[string][]domain.GiftVoucher{}}
	return &testEnv{
		orders:        &mockOrderRepository{},
		transactions:  &mockTransactionRepository{},
		shipments:     &mockShipmentRepository{},
		ledger:        ledger,
		vouchers:      vouchers,
		customers:     &mockCustomerRepository{},
		inventory:     &mockInventoryService{},
		collaborators: &mockOrderCollaborators{},
		notifier:      &mockNotifier{},
		events:        &mockEventPublisher{},
		tx:            &countingTx{ledger: ledger, vouchers: vouchers},
	}
}

func (e *testEnv) deps() Dependencies {
	return Dependencies{
		Orders:          e.orders,
		Transactions:    e.transactions,
		Shipments:       e.shipments,
		Loyalty:         e.ledger,
		GiftVouchers:    e.vouchers,
		Customers:       e.customers,
		Currencies:      &mockCurrencyService{},
		Inventory:       e.inventory,
		Reservations:    e.collaborators,
		Auctions:        e.collaborators,
		Discounts:       e.collaborators,
		Notifier:        e.notifier,
		Events:          e.events,
		Tx:              e.tx,
		OrderSettings:   domain.DefaultOrderSettings(),
		LoyaltySettings: testLoyaltySettings(),
	}
}

// withOrder stores order in the mock repository. GetByID and GetByGUID
// return copies of the latest stored state; Update enforces the version
// token and stores the new state.
func (e *testEnv) withOrder(order domain.Order) {
	current := cloneOrder(order)
	e.orders.GetByIDFunc = func(ctx context.Context, id string) (*domain.Order, error) {
		if id != current.ID {
			return nil, domain.NotFound("order.get", "order", id)
		}
		o := cloneOrder(current)
		return &o, nil
	}
	e.orders.GetByGUIDFunc = func(ctx context.Context, guid string) (*domain.Order, error) {
		if guid != current.OrderGUID {
			return nil, domain.NotFound("order.get_by_guid", "order", guid)
		}
		o := cloneOrder(current)
		return &o, nil
	}
	e.orders.UpdateFunc = func(ctx context.Context, o *domain.Order) error {
		if o.Version != current.Version {
			return domain.ErrVersionConflict
		}
		o.Version++
		current = cloneOrder(*o)
		return nil
	}
}

// withTransaction does the same for a payment transaction.
func (e *testEnv) withTransaction(tx domain.PaymentTransaction) {
	current := tx
	e.transactions.GetByIDFunc = func(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
		if id != current.ID {
			return nil, domain.NotFound("payment_transaction.get", "payment transaction", id)
		}
		t := current
		return &t, nil
	}
	e.transactions.UpdateFunc = func(ctx context.Context, t *domain.PaymentTransaction) error {
		if t.Version != current.Version {
			return domain.ErrVersionConflict
		}
		t.Version++
		current = *t
		return nil
	}
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	o.Notes = append([]domain.OrderNote(nil), o.Notes...)
	o.Tags = append([]string(nil), o.Tags...)
	o.Taxes = append([]domain.OrderTax(nil), o.Taxes...)
	return o
}

func testLoyaltySettings() domain.LoyaltyPointsSettings {
	return domain.LoyaltyPointsSettings{
		Enabled:                  true,
		PointsForPurchasesAmount: decimal.NewFromInt(10),
		PointsForPurchasesPoints: 2,
		ExchangeRate:             decimal.RequireFromString("0.1"),
	}
}

// testOrder is a pending order with two open items.
func testOrder() domain.Order {
	itemA := domain.NewOrderItem("product-a", 2, decimal.NewFromInt(30), decimal.NewFromInt(25))
	itemA.ID = "item-a"
	itemB := domain.NewOrderItem("product-b", 1, decimal.NewFromInt(40), decimal.NewFromInt(40))
	itemB.ID = "item-b"

	o := domain.Order{
		ID:             "id",
		OrderGUID:      "guid-1",
		OrderNumber:    1001,
		Code:           "ABCD2345",
		CustomerID:     "customer-1",
		StoreID:        "store-1",
		CurrencyCode:   "USD",
		OrderStatus:    domain.OrderStatusPending,
		ShippingStatus: domain.ShippingStatusNotYetShipped,
		PaymentStatus:  domain.PaymentStatusPending,
		OrderShipping:  decimal.NewFromInt(10),
		Items:          []domain.OrderItem{itemA, itemB},
		Version:        1,
	}
	o.RecalculateTotals()
	return o
}

// recordingLocker is a domain.OrderLocker that records the keys it hands out.
type recordingLocker struct {
	mu   sync.Mutex
	keys []string
	held int
}

func (l *recordingLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	l.held++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held--
	}, nil
}
