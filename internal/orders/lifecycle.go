package orders

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Store is the durable ledger: products, orders and their lines.
// Implementations must make CompleteOrder and DeleteOrder conditional
// single-row writes so that a confirm and a deadline racing on the same
// order resolve to exactly one winner.
type Store interface {
	Product(ctx context.Context, id string) (Product, error)
	Products(ctx context.Context, limit, offset int) ([]Product, error)
	CreateOrder(ctx context.Context, o Order) error
	Order(ctx context.Context, id string) (Order, error)
	// CompleteOrder flips complete=false -> true. Returns true only for
	// the call that performed the flip.
	CompleteOrder(ctx context.Context, id string) (bool, error)
	// DeleteOrder removes the order and its lines if it is still
	// pending, returning the deleted lines. A missing or already
	// complete order yields (nil, false, nil).
	DeleteOrder(ctx context.Context, id string) ([]Line, bool, error)
	DeductStock(ctx context.Context, productID string, qty int) error
	RestockAll(ctx context.Context, qty int) error
}

// Reserver is the volatile reservation cache holding in-flight stock.
type Reserver interface {
	Reserved(ctx context.Context, productID string) (int, error)
	// Reserve adds qty to the product's hold after checking it against
	// committed minus already reserved.
	Reserve(ctx context.Context, productID string, qty, committed int) error
	Release(ctx context.Context, productID string, qty int) error
}

// Scheduler delivers OnDeadline(orderID) once the delay elapses.
// At-least-once delivery is acceptable; OnDeadline is idempotent.
type Scheduler interface {
	Schedule(ctx context.Context, orderID string, delay time.Duration) error
}

// Publisher emits lifecycle events. A nil Publisher disables events.
type Publisher interface {
	Publish(topic string, key, value []byte)
}

// Manager drives the order state machine: Pending -> Complete (kept) or
// Pending -> released by deadline (deleted).
type Manager struct {
	Store     Store
	Holds     Reserver
	Scheduler Scheduler
	Publisher Publisher
	Timeout   time.Duration
	Service   string
	Logger    *log.Entry
}

func (m *Manager) logger() *log.Entry {
	if m.Logger == nil {
		m.Logger = log.WithField("component", "orders")
	}
	return m.Logger
}

// CreateOrder validates every line against real stock, persists the
// order, reserves the stock and schedules the payment deadline. No
// mutation happens unless all lines validate.
func (m *Manager) CreateOrder(ctx context.Context, lines []Line) (Order, float64, error) {
	if len(lines) == 0 {
		return Order{}, 0, ErrEmptyOrder
	}

	priced := make([]PricedLine, 0, len(lines))
	for _, l := range lines {
		if l.Qty <= 0 {
			return Order{}, 0, &InvalidQuantityError{ProductID: l.ProductID, Qty: l.Qty}
		}
		p, err := m.Store.Product(ctx, l.ProductID)
		if err != nil {
			return Order{}, 0, err
		}
		reserved, err := m.Holds.Reserved(ctx, p.ID)
		if err != nil {
			return Order{}, 0, err
		}
		if available := p.Stock - reserved; available < l.Qty {
			return Order{}, 0, &InsufficientStockError{
				ProductID: p.ID, Requested: l.Qty, Available: available,
			}
		}
		priced = append(priced, PricedLine{Product: p, Qty: l.Qty})
	}

	ord := Order{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Lines:     lines,
	}
	if err := m.Store.CreateOrder(ctx, ord); err != nil {
		return Order{}, 0, err
	}

	for _, pl := range priced {
		if err := m.Holds.Reserve(ctx, pl.Product.ID, pl.Qty, pl.Product.Stock); err != nil {
			// The order is persisted but only partially reserved (a
			// concurrent order raced past validation). Schedule the
			// deadline anyway so the stuck order rides the normal
			// release path, then surface the failure.
			m.logger().WithError(err).WithField("order_id", ord.ID).
				Warn("reservation failed after persist, scheduling cleanup")
			if serr := m.Scheduler.Schedule(ctx, ord.ID, m.Timeout); serr != nil {
				m.logger().WithError(serr).WithField("order_id", ord.ID).
					Error("cleanup schedule failed, order may leak holds")
			}
			return Order{}, 0, err
		}
	}

	if err := m.Scheduler.Schedule(ctx, ord.ID, m.Timeout); err != nil {
		m.logger().WithError(err).WithField("order_id", ord.ID).
			Error("deadline schedule failed, order may leak holds")
		return Order{}, 0, err
	}

	total := Total(priced)
	m.publish(TopicOrderCreated, EventOrderCreated, ord.ID, OrderCreatedPayload{
		OrderID: ord.ID, Lines: lineQtys(lines), Total: total,
	})
	m.logger().WithField("order_id", ord.ID).Info("order created")
	return ord, total, nil
}

// ConfirmOrder marks the order complete and consolidates its holds into
// committed stock deductions. Confirming an already complete order is a
// no-op; a payload without complete=true mutates nothing.
func (m *Manager) ConfirmOrder(ctx context.Context, orderID string, complete bool) (Order, error) {
	ord, err := m.Store.Order(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !complete || ord.Complete {
		return ord, nil
	}

	won, err := m.Store.CompleteOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !won {
		// Lost the race: either a concurrent confirm completed it or
		// the deadline deleted it.
		ord, err := m.Store.Order(ctx, orderID)
		if err != nil {
			return Order{}, err
		}
		return ord, nil
	}
	ord.Complete = true

	for _, l := range ord.Lines {
		if err := m.Holds.Release(ctx, l.ProductID, l.Qty); err != nil {
			// Holds can be lost on a cache restart; the deduction must
			// still happen.
			m.logger().WithError(err).WithFields(log.Fields{
				"order_id": orderID, "product_id": l.ProductID,
			}).Warn("release on confirm failed")
		}
		if err := m.Store.DeductStock(ctx, l.ProductID, l.Qty); err != nil {
			return Order{}, err
		}
	}

	m.publish(TopicOrderCompleted, EventOrderCompleted, ord.ID, OrderCompletedPayload{
		OrderID: ord.ID, Lines: lineQtys(ord.Lines),
	})
	m.logger().WithField("order_id", orderID).Info("order completed")
	return ord, nil
}

// OnDeadline releases a still-pending order: its holds go back to the
// pool and the order record is deleted. An order already completed or
// already gone is expected and a no-op.
func (m *Manager) OnDeadline(ctx context.Context, orderID string) error {
	lines, won, err := m.Store.DeleteOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !won {
		m.logger().WithField("order_id", orderID).Debug("deadline for resolved order, skipping")
		return nil
	}

	for _, l := range lines {
		if err := m.Holds.Release(ctx, l.ProductID, l.Qty); err != nil {
			var excess *ExcessReleaseError
			if errors.As(err, &excess) {
				// Partial reservation or lost cache; nothing left to
				// give back for this line.
				m.logger().WithFields(log.Fields{
					"order_id": orderID, "product_id": l.ProductID,
				}).Warn("hold already gone on deadline release")
				continue
			}
			return err
		}
	}

	m.publish(TopicOrderExpired, EventOrderExpired, orderID, OrderExpiredPayload{
		OrderID: orderID, Lines: lineQtys(lines),
	})
	m.logger().WithField("order_id", orderID).Info("order expired, holds released")
	return nil
}

// Price computes the current total of an order from the live catalog.
func (m *Manager) Price(ctx context.Context, ord Order) (float64, error) {
	priced := make([]PricedLine, 0, len(ord.Lines))
	for _, l := range ord.Lines {
		p, err := m.Store.Product(ctx, l.ProductID)
		if err != nil {
			return 0, err
		}
		priced = append(priced, PricedLine{Product: p, Qty: l.Qty})
	}
	return Total(priced), nil
}

func (m *Manager) publish(topic, eventType, orderID string, payload any) {
	if m.Publisher == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		m.logger().WithError(err).Error("marshal event payload")
		return
	}
	env := Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     m.Service,
		OrderID:      orderID,
		Payload:      body,
	}
	value, err := json.Marshal(env)
	if err != nil {
		m.logger().WithError(err).Error("marshal event envelope")
		return
	}
	m.Publisher.Publish(topic, PartitionKey(orderID), value)
}

func lineQtys(lines []Line) []LineQty {
	out := make([]LineQty, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineQty{ProductID: l.ProductID, Qty: l.Qty})
	}
	return out
}
