//go:build property
// +build property

package service

import (
	"context"
	"testing"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: the balance read from the ledger equals the sum of the deltas
// appended, and every snapshot equals the fold of the entries up to it.
func TestLedgerBalanceIsFoldOfDeltas(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("balance equals fold of deltas", prop.ForAll(
		func(deltas []int) bool {
			env := newTestEnv()
			svc, err := NewLoyaltyService(env.deps())
			if err != nil {
				return false
			}
			ctx := context.Background()

			for _, d := range deltas {
				if _, err := env.ledger.Append(ctx, domain.NewLoyaltyEntry{
					CustomerID: "customer-1",
					StoreID:    "store-1",
					Points:     d,
				}); err != nil {
					return false
				}
			}

			history, err := svc.History(ctx, "customer-1", "store-1")
			if err != nil {
				return false
			}
			for i := range history {
				if history[i].PointsBalance != domain.FoldBalance(history[:i+1]) {
					return false
				}
			}

			balance, err := svc.Balance(ctx, "customer-1", "store-1")
			return err == nil && balance == domain.FoldBalance(history)
		},
		gen.SliceOf(gen.IntRange(-500, 500)),
	))

	properties.TestingRun(t)
}
