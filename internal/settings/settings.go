// Package settings loads the store settings that shape the order lifecycle
// from an optional config file overlaid with VERDANDI_* environment variables.
package settings

import (
	"errors"
	"reflect"
	"strings"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. VERDANDI_ORDER_LENGTH_CODE.
const EnvPrefix = "VERDANDI"

// Settings groups the store-level switches.
type Settings struct {
	Order   domain.OrderSettings         `mapstructure:"order"`
	Loyalty domain.LoyaltyPointsSettings `mapstructure:"loyalty"`
}

// Load reads path (yaml, json or toml by extension) when it is non-empty and
// applies environment overrides. Missing keys keep their defaults.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, domain.WrapError(err, domain.EINVALID, "settings.load", "failed to read settings file "+path)
		}
	}

	var s Settings
	hook := mapstructure.ComposeDecodeHookFunc(
		decimalHook,
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&s, viper.DecodeHook(hook)); err != nil {
		return nil, domain.WrapError(err, domain.EINVALID, "settings.load", "failed to decode settings")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Defaults returns the settings of a freshly installed store.
func Defaults() Settings {
	return Settings{
		Order: domain.DefaultOrderSettings(),
		Loyalty: domain.LoyaltyPointsSettings{
			PointsForPurchasesAmount: decimal.NewFromInt(10),
			PointsForPurchasesPoints: 1,
			ExchangeRate:             decimal.RequireFromString("0.01"),
		},
	}
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	d := Defaults()
	o, l := d.Order, d.Loyalty

	v.SetDefault("order.complete_order_when_delivered", o.CompleteOrderWhenDelivered)
	v.SetDefault("order.length_code", o.LengthCode)
	v.SetDefault("order.order_number_floor", o.OrderNumberFloor)
	v.SetDefault("order.deactivate_gift_vouchers_on_cancel", o.DeactivateGiftVouchersOnCancel)
	v.SetDefault("order.deactivate_gift_vouchers_on_delete", o.DeactivateGiftVouchersOnDelete)
	v.SetDefault("order.gift_vouchers_activated_status", string(o.GiftVouchersActivatedStatus))
	v.SetDefault("order.gift_vouchers_deactivated_status", string(o.GiftVouchersDeactivatedStatus))
	v.SetDefault("order.unlink_open_shipments_on_cancel", o.UnlinkOpenShipmentsOnCancel)
	v.SetDefault("order.attach_invoice_to_completed_email", o.AttachInvoiceToCompletedEmail)

	v.SetDefault("loyalty.enabled", l.Enabled)
	v.SetDefault("loyalty.points_for_purchases_amount", l.PointsForPurchasesAmount.String())
	v.SetDefault("loyalty.points_for_purchases_points", l.PointsForPurchasesPoints)
	v.SetDefault("loyalty.exchange_rate", l.ExchangeRate.String())
	v.SetDefault("loyalty.reduce_after_cancel_order", l.ReduceLoyaltyPointsAfterCancelOrder)
	v.SetDefault("loyalty.accumulated_for_all_stores", l.PointsAccumulatedForAllStores)
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decimalHook decodes strings and numbers into decimal.Decimal.
func decimalHook(from, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		if v == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(v)
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case decimal.Decimal:
		return v, nil
	}
	return nil, errors.New("cannot decode " + from.String() + " into decimal")
}

// Validate rejects settings the engine cannot run with.
func (s *Settings) Validate() error {
	fields := map[string]string{}
	if s.Order.LengthCode < 4 || s.Order.LengthCode > 32 {
		fields["order.length_code"] = "must be between 4 and 32"
	}
	if s.Order.OrderNumberFloor < 1 {
		fields["order.order_number_floor"] = "must be at least 1"
	}
	for key, st := range map[string]domain.OrderStatus{
		"order.gift_vouchers_activated_status":   s.Order.GiftVouchersActivatedStatus,
		"order.gift_vouchers_deactivated_status": s.Order.GiftVouchersDeactivatedStatus,
	} {
		if st != "" && !st.Valid() {
			fields[key] = "unknown order status " + string(st)
		}
	}
	if s.Loyalty.Enabled {
		if !s.Loyalty.PointsForPurchasesAmount.IsPositive() {
			fields["loyalty.points_for_purchases_amount"] = "must be greater than 0"
		}
		if s.Loyalty.PointsForPurchasesPoints <= 0 {
			fields["loyalty.points_for_purchases_points"] = "must be greater than 0"
		}
		if s.Loyalty.ExchangeRate.IsNegative() {
			fields["loyalty.exchange_rate"] = "must not be negative"
		}
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Op: "settings.validate", Fields: fields}
	}
	return nil
}
