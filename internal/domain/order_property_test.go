//go:build property
// +build property

package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// itemOp is one randomly chosen mutation: kind selects the method, qty its argument.
type itemOp struct {
	kind int
	qty  int
}

func genItemOp() gopter.Gen {
	return gopter.CombineGens(gen.IntRange(0, 4), gen.IntRange(-2, 12)).
		Map(func(v []interface{}) itemOp {
			return itemOp{kind: v[0].(int), qty: v[1].(int)}
		})
}

func applyItemOp(item *OrderItem, op itemOp) {
	switch op.kind {
	case 0:
		_ = item.Cancel(op.qty)
	case 1:
		_ = item.Ship(op.qty)
	case 2:
		_ = item.Unship(op.qty)
	case 3:
		_ = item.Return(op.qty)
	case 4:
		_, _ = item.SetQuantity(op.qty)
	}
}

// Property: open + shipped + cancelled + returned == quantity after any
// sequence of item mutations, and no bucket goes negative.
func TestOrderItemQuantityInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("quantity buckets always add up", prop.ForAll(
		func(initial int, ops []itemOp) bool {
			item := NewOrderItem("p", initial, decimal.NewFromInt(10), decimal.NewFromInt(8))
			for _, op := range ops {
				applyItemOp(&item, op)
				if !item.QuantityConsistent() {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 10),
		gen.SliceOf(genItemOp()),
	))

	properties.Property("a failed mutation changes nothing", prop.ForAll(
		func(initial int, op itemOp) bool {
			item := NewOrderItem("p", initial, decimal.NewFromInt(10), decimal.NewFromInt(8))
			before := item
			var err error
			switch op.kind {
			case 0:
				err = item.Cancel(op.qty)
			case 1:
				err = item.Ship(op.qty)
			case 2:
				err = item.Unship(op.qty)
			case 3:
				err = item.Return(op.qty)
			case 4:
				_, err = item.SetQuantity(op.qty)
			}
			if err == nil {
				return true
			}
			return item.Quantity == before.Quantity && item.OpenQty == before.OpenQty &&
				item.ShipQty == before.ShipQty && item.CancelQty == before.CancelQty &&
				item.ReturnQty == before.ReturnQty && item.Status == before.Status
		},
		gen.IntRange(1, 10),
		genItemOp(),
	))

	properties.TestingRun(t)
}
