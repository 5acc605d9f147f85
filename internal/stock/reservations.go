// Package stock tracks provisional holds on product stock in a shared
// atomic counter store. Holds are best-effort: losing them on a cache
// restart is accepted, the ledger keeps the durable numbers.
package stock

import (
	"context"
	"fmt"

	"github.com/scenting/mums/internal/orders"
)

// Counter is an atomic integer store keyed by string. IncrBy must
// initialize absent keys to the increment, the way redis INCRBY does.
type Counter interface {
	Get(ctx context.Context, key string) (int, error)
	IncrBy(ctx context.Context, key string, n int) (int, error)
	DecrBy(ctx context.Context, key string, n int) (int, error)
}

// Key returns the per-product reservation token.
func Key(productID string) string { return fmt.Sprintf("product_#%s", productID) }

// Reservations implements orders.Reserver over a Counter.
//
// Reserve checks against real stock before incrementing; the check and
// the increment are not one atomic step. The ledger is only mutated at
// confirmation, so a lost race over-reserves transiently instead of
// corrupting stock.
type Reservations struct {
	Counter Counter
}

func (r *Reservations) Reserved(ctx context.Context, productID string) (int, error) {
	return r.Counter.Get(ctx, Key(productID))
}

func (r *Reservations) Reserve(ctx context.Context, productID string, qty, committed int) error {
	if qty <= 0 {
		return &orders.InvalidQuantityError{ProductID: productID, Qty: qty}
	}
	reserved, err := r.Counter.Get(ctx, Key(productID))
	if err != nil {
		return err
	}
	if available := committed - reserved; available < qty {
		return &orders.InsufficientStockError{
			ProductID: productID, Requested: qty, Available: available,
		}
	}
	_, err = r.Counter.IncrBy(ctx, Key(productID), qty)
	return err
}

func (r *Reservations) Release(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return &orders.InvalidQuantityError{ProductID: productID, Qty: qty}
	}
	reserved, err := r.Counter.Get(ctx, Key(productID))
	if err != nil {
		return err
	}
	if qty > reserved {
		return &orders.ExcessReleaseError{
			ProductID: productID, Requested: qty, Reserved: reserved,
		}
	}
	_, err = r.Counter.DecrBy(ctx, Key(productID), qty)
	return err
}

var _ orders.Reserver = (*Reservations)(nil)
