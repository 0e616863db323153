package postgres

import (
	"context"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/shopspring/decimal"
)

type CustomerRepository struct {
	db *DB
}

func NewCustomerRepository(db *DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

var _ domain.CustomerRepository = (*CustomerRepository)(nil)

func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	const op = "customer.get"
	var c domain.Customer
	err := r.db.conn(ctx).QueryRow(ctx, `
		SELECT id, email, first_name, last_name, store_id, active
		FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.StoreID, &c.Active)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "customer", id)
		}
		return nil, domain.Internal(err, op, "failed to load customer")
	}
	return &c, nil
}

// CurrencyService converts through the rates table. Rates are units of the
// currency per one unit of the primary currency.
type CurrencyService struct {
	db *DB
}

func NewCurrencyService(db *DB) *CurrencyService {
	return &CurrencyService{db: db}
}

var _ domain.CurrencyService = (*CurrencyService)(nil)

func (s *CurrencyService) ConvertToPrimary(ctx context.Context, amount decimal.Decimal, currencyCode string) (decimal.Decimal, error) {
	const op = "currency.convert_to_primary"
	if currencyCode == "" {
		return amount, nil
	}

	var (
		rate      decimal.Decimal
		isPrimary bool
	)
	err := s.db.conn(ctx).QueryRow(ctx,
		`SELECT rate, is_primary FROM currencies WHERE code = $1`, currencyCode).Scan(&rate, &isPrimary)
	if err != nil {
		if isNoRows(err) {
			return decimal.Zero, domain.NotFound(op, "currency", currencyCode)
		}
		return decimal.Zero, domain.Internal(err, op, "failed to load currency rate")
	}
	if isPrimary {
		return amount, nil
	}
	if !rate.IsPositive() {
		return decimal.Zero, domain.Invalid(op, "currency rate must be positive")
	}
	return amount.Div(rate), nil
}
