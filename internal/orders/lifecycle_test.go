package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scenting/mums/internal/memory"
	"github.com/scenting/mums/internal/orders"
	"github.com/scenting/mums/internal/stock"
)

type recordedSchedule struct {
	OrderID string
	Delay   time.Duration
}

type fakeScheduler struct {
	mu    sync.Mutex
	calls []recordedSchedule
	fail  error
}

func (f *fakeScheduler) Schedule(_ context.Context, orderID string, delay time.Duration) error {
	if f.fail != nil {
		return f.fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedSchedule{OrderID: orderID, Delay: delay})
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (f *fakePublisher) Publish(topic string, _, _ []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
}

type fixture struct {
	store     *memory.Store
	holds     *stock.Reservations
	scheduler *fakeScheduler
	publisher *fakePublisher
	manager   *orders.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(),
		holds:     &stock.Reservations{Counter: memory.NewCounter()},
		scheduler: &fakeScheduler{},
		publisher: &fakePublisher{},
	}
	f.manager = &orders.Manager{
		Store:     f.store,
		Holds:     f.holds,
		Scheduler: f.scheduler,
		Publisher: f.publisher,
		Timeout:   5 * time.Minute,
		Service:   "test",
	}
	return f
}

func (f *fixture) product(t *testing.T, id string, unitaryStock int) orders.Product {
	t.Helper()
	p := orders.Product{
		ID: id, Name: id, Price: 1, Category: orders.CategoryPrincipal,
		Unitary: true, Stock: unitaryStock,
	}
	f.store.PutProduct(p)
	return p
}

func (f *fixture) realStock(t *testing.T, productID string) int {
	t.Helper()
	ctx := context.Background()
	p, err := f.store.Product(ctx, productID)
	require.NoError(t, err)
	reserved, err := f.holds.Reserved(ctx, productID)
	require.NoError(t, err)
	return p.Stock - reserved
}

func TestCreateOrderReservesStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 10)

	ord, price, err := f.manager.CreateOrder(ctx, []orders.Line{{ProductID: "p1", Qty: 1}})
	require.NoError(t, err)
	require.NotEmpty(t, ord.ID)
	require.False(t, ord.Complete)
	require.Equal(t, 1.0, price)

	// Committed stock untouched, hold in place: real stock drops to 9.
	require.Equal(t, 9, f.realStock(t, "p1"))
	p, err := f.store.Product(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 10, p.Stock)

	require.Len(t, f.scheduler.calls, 1)
	require.Equal(t, ord.ID, f.scheduler.calls[0].OrderID)
	require.Equal(t, 5*time.Minute, f.scheduler.calls[0].Delay)
	require.Equal(t, []string{orders.TopicOrderCreated}, f.publisher.topics)
}

func TestCreateOrderOutOfStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 0)

	_, _, err := f.manager.CreateOrder(ctx, []orders.Line{{ProductID: "p1", Qty: 1}})
	var insufficient *orders.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	require.Equal(t, "p1", insufficient.ProductID)
	require.Equal(t, 1, insufficient.Requested)
	require.Equal(t, 0, insufficient.Available)

	// Nothing was mutated or scheduled.
	require.Equal(t, 0, f.realStock(t, "p1"))
	require.Empty(t, f.scheduler.calls)
	require.Empty(t, f.publisher.topics)
}

func TestCreateOrderExactlyAvailableSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 3)

	_, _, err := f.manager.CreateOrder(ctx, []orders.Line{{ProductID: "p1", Qty: 3}})
	require.NoError(t, err)
	require.Equal(t, 0, f.realStock(t, "p1"))
}

func TestCreateOrderEmpty(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.manager.CreateOrder(context.Background(), nil)
	require.ErrorIs(t, err, orders.ErrEmptyOrder)
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.manager.CreateOrder(context.Background(), []orders.Line{{ProductID: "ghost", Qty: 1}})
	var notFound *orders.ProductNotFoundError
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, "ghost", notFound.ProductID)
}

func TestCreateOrderInvalidQuantity(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", 10)

	_, _, err := f.manager.CreateOrder(context.Background(), []orders.Line{{ProductID: "p1", Qty: 0}})
	var invalid *orders.InvalidQuantityError
	require.True(t, errors.As(err, &invalid))
}

func TestCreateOrderValidatesAllBeforeMutating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 10)
	f.product(t, "p2", 0)

	_, _, err := f.manager.CreateOrder(ctx, []orders.Line{
		{ProductID: "p1", Qty: 1},
		{ProductID: "p2", Qty: 1},
	})
	var insufficient *orders.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	require.Equal(t, "p2", insufficient.ProductID)

	// The valid line must not have been reserved.
	require.Equal(t, 10, f.realStock(t, "p1"))
	require.Empty(t, f.scheduler.calls)
}

func TestConfirmOrderConsolidatesStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 10)

	ord, _, err := f.manager.CreateOrder(ctx, []orders.Line{{ProductID: "p1", Qty: 4}})
	require.NoError(t, err)

	confirmed, err := f.manager.ConfirmOrder(ctx, ord.ID, true)
	require.NoError(t, err)
	require.True(t, confirmed.Complete)

	// Hold released, committed stock deducted: no double counting.
	p, err := f.store.Product(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 6, p.Stock)
	reserved, err := f.holds.Reserved(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 0, reserved)
}

func TestConfirmOrderIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 10)

	ord, _, err := f.manager.CreateOrder(ctx, []orders.Line{{ProductID: "p1", Qty: 4}})
	require.NoError(t, err)

	_, err = f.manager.ConfirmOrder(ctx, ord.ID, true)
	require.NoError(t, err)
	again, err := f.manager.ConfirmOrder(ctx, ord.ID, true)
	require.NoError(t, err)
	require.True(t, again.Complete)

	// Deducted exactly once.
	p, err := f.store.Product(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 6, p.Stock)
}

func TestConfirmOrderWithoutCompleteIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 10)

	ord, _, err := f.manager.CreateOrder(ctx, []orders.Line{{ProductID: "p1", Qty: 4}})
	require.NoError(t, err)

	got, err := f.manager.ConfirmOrder(ctx, ord.ID, false)
	require.NoError(t, err)
	require.False(t, got.Complete)

	p, err := f.store.Product(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 10, p.Stock)
	require.Equal(t, 6, f.realStock(t, "p1"))
}

func TestConfirmUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.ConfirmOrder(context.Background(), "nope", true)
	require.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func TestDeadlineReleasesPendingOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 10)

	ord, _, err := f.manager.CreateOrder(ctx, []orders.Line{{ProductID: "p1", Qty: 3}})
	require.NoError(t, err)
	require.Equal(t, 7, f.realStock(t, "p1"))

	require.NoError(t, f.manager.OnDeadline(ctx, ord.ID))

	// Order gone, hold released, committed stock untouched.
	_, err = f.store.Order(ctx, ord.ID)
	require.ErrorIs(t, err, orders.ErrOrderNotFound)
	require.Equal(t, 10, f.realStock(t, "p1"))
	p, err := f.store.Product(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 10, p.Stock)
}

func TestDeadlineOnCompletedOrderIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 10)

	ord, _, err := f.manager.CreateOrder(ctx, []orders.Line{{ProductID: "p1", Qty: 3}})
	require.NoError(t, err)
	_, err = f.manager.ConfirmOrder(ctx, ord.ID, true)
	require.NoError(t, err)

	require.NoError(t, f.manager.OnDeadline(ctx, ord.ID))

	// The completed order survives and stock stays consolidated.
	kept, err := f.store.Order(ctx, ord.ID)
	require.NoError(t, err)
	require.True(t, kept.Complete)
	p, err := f.store.Product(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 7, p.Stock)
}

func TestDeadlineOnMissingOrderIsNoop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.OnDeadline(context.Background(), "never-existed"))
}

func TestDeadlineFiresTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 10)

	ord, _, err := f.manager.CreateOrder(ctx, []orders.Line{{ProductID: "p1", Qty: 3}})
	require.NoError(t, err)

	require.NoError(t, f.manager.OnDeadline(ctx, ord.ID))
	require.NoError(t, f.manager.OnDeadline(ctx, ord.ID))
	require.Equal(t, 10, f.realStock(t, "p1"))
}

func TestConfirmAfterDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 10)

	ord, _, err := f.manager.CreateOrder(ctx, []orders.Line{{ProductID: "p1", Qty: 3}})
	require.NoError(t, err)
	require.NoError(t, f.manager.OnDeadline(ctx, ord.ID))

	_, err = f.manager.ConfirmOrder(ctx, ord.ID, true)
	require.ErrorIs(t, err, orders.ErrOrderNotFound)

	// The losing confirm must not have touched stock.
	p, err := f.store.Product(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 10, p.Stock)
	require.Equal(t, 10, f.realStock(t, "p1"))
}

func TestDeadlineToleratesLostHolds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 10)

	ord, _, err := f.manager.CreateOrder(ctx, []orders.Line{{ProductID: "p1", Qty: 3}})
	require.NoError(t, err)

	// Simulate a cache restart wiping the hold.
	require.NoError(t, f.holds.Release(ctx, "p1", 3))

	require.NoError(t, f.manager.OnDeadline(ctx, ord.ID))
	_, err = f.store.Order(ctx, ord.ID)
	require.ErrorIs(t, err, orders.ErrOrderNotFound)
}

type failingReserver struct {
	orders.Reserver
	failOn string
}

func (f *failingReserver) Reserve(ctx context.Context, productID string, qty, committed int) error {
	if productID == f.failOn {
		return &orders.InsufficientStockError{ProductID: productID, Requested: qty}
	}
	return f.Reserver.Reserve(ctx, productID, qty, committed)
}

func TestPartialReservationSchedulesCleanup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 10)
	f.product(t, "p2", 10)
	f.manager.Holds = &failingReserver{Reserver: f.holds, failOn: "p2"}

	_, _, err := f.manager.CreateOrder(ctx, []orders.Line{
		{ProductID: "p1", Qty: 2},
		{ProductID: "p2", Qty: 2},
	})
	require.Error(t, err)

	// The stuck order rides the deadline path: a cleanup was scheduled
	// and firing it releases the partial hold.
	require.Len(t, f.scheduler.calls, 1)
	require.NoError(t, f.manager.OnDeadline(ctx, f.scheduler.calls[0].OrderID))
	require.Equal(t, 10, f.realStock(t, "p1"))
}

func TestCreateOrderScheduleFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 10)
	f.scheduler.fail = errors.New("redis down")

	_, _, err := f.manager.CreateOrder(ctx, []orders.Line{{ProductID: "p1", Qty: 1}})
	require.ErrorContains(t, err, "redis down")
}

func TestPriceUsesLiveCatalog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 10)

	ord, price, err := f.manager.CreateOrder(ctx, []orders.Line{{ProductID: "p1", Qty: 8}})
	require.NoError(t, err)
	require.Equal(t, 6.0, price)

	got, err := f.manager.Price(ctx, ord)
	require.NoError(t, err)
	require.Equal(t, price, got)
}

func TestLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", 10)
	f.product(t, "p2", 10)

	ord, _, err := f.manager.CreateOrder(ctx, []orders.Line{{ProductID: "p1", Qty: 1}})
	require.NoError(t, err)
	_, err = f.manager.ConfirmOrder(ctx, ord.ID, true)
	require.NoError(t, err)

	expired, _, err := f.manager.CreateOrder(ctx, []orders.Line{{ProductID: "p2", Qty: 1}})
	require.NoError(t, err)
	require.NoError(t, f.manager.OnDeadline(ctx, expired.ID))

	require.Equal(t, []string{
		orders.TopicOrderCreated,
		orders.TopicOrderCompleted,
		orders.TopicOrderCreated,
		orders.TopicOrderExpired,
	}, f.publisher.topics)
}
