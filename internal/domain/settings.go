package domain

// OrderSettings are the store-level switches that shape lifecycle side effects.
type OrderSettings struct {
	// CompleteOrderWhenDelivered requires delivery, not just dispatch, before
	// a paid order auto-completes.
	CompleteOrderWhenDelivered bool `mapstructure:"complete_order_when_delivered"`

	// LengthCode is the length of generated display codes.
	LengthCode int `mapstructure:"length_code"`

	// OrderNumberFloor is the lowest order number handed out.
	OrderNumberFloor int `mapstructure:"order_number_floor"`

	DeactivateGiftVouchersOnCancel bool `mapstructure:"deactivate_gift_vouchers_on_cancel"`
	DeactivateGiftVouchersOnDelete bool `mapstructure:"deactivate_gift_vouchers_on_delete"`

	// GiftVouchersActivatedStatus and GiftVouchersDeactivatedStatus toggle
	// vouchers purchased with the order when it reaches that status. Empty
	// disables the behavior.
	GiftVouchersActivatedStatus   OrderStatus `mapstructure:"gift_vouchers_activated_status"`
	GiftVouchersDeactivatedStatus OrderStatus `mapstructure:"gift_vouchers_deactivated_status"`

	// UnlinkOpenShipmentsOnCancel returns the quantities of undispatched
	// shipments to the order and deletes them during cancellation.
	UnlinkOpenShipmentsOnCancel bool `mapstructure:"unlink_open_shipments_on_cancel"`

	AttachInvoiceToCompletedEmail bool `mapstructure:"attach_invoice_to_completed_email"`
}

// DefaultOrderSettings mirrors a freshly installed store.
func DefaultOrderSettings() OrderSettings {
	return OrderSettings{
		CompleteOrderWhenDelivered:     true,
		LengthCode:                     8,
		OrderNumberFloor:               1,
		DeactivateGiftVouchersOnCancel: true,
		DeactivateGiftVouchersOnDelete: true,
		UnlinkOpenShipmentsOnCancel:    true,
		AttachInvoiceToCompletedEmail:  true,
	}
}
