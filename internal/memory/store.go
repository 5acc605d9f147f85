// Package memory holds in-memory implementations of the ledger store
// and the reservation counter, used by tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/scenting/mums/internal/orders"
)

type Store struct {
	mu       sync.RWMutex
	products map[string]orders.Product
	orders   map[string]orders.Order
}

func NewStore() *Store {
	return &Store{
		products: make(map[string]orders.Product),
		orders:   make(map[string]orders.Order),
	}
}

// PutProduct inserts or replaces a catalog entry.
func (s *Store) PutProduct(p orders.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) Product(_ context.Context, id string) (orders.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return orders.Product{}, &orders.ProductNotFoundError{ProductID: id}
	}
	return p, nil
}

func (s *Store) Products(_ context.Context, limit, offset int) ([]orders.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]orders.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateOrder(_ context.Context, o orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Copy lines so callers cannot mutate stored state.
	o.Lines = append([]orders.Line(nil), o.Lines...)
	s.orders[o.ID] = o
	return nil
}

func (s *Store) Order(_ context.Context, id string) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	o.Lines = append([]orders.Line(nil), o.Lines...)
	return o, nil
}

func (s *Store) CompleteOrder(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Complete {
		return false, nil
	}
	o.Complete = true
	s.orders[id] = o
	return true, nil
}

func (s *Store) DeleteOrder(_ context.Context, id string) ([]orders.Line, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Complete {
		return nil, false, nil
	}
	delete(s.orders, id)
	return o.Lines, true, nil
}

func (s *Store) DeductStock(_ context.Context, productID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return &orders.ProductNotFoundError{ProductID: productID}
	}
	p.Stock -= qty
	if p.Stock < 0 {
		p.Stock = 0
	}
	p.UpdatedAt = time.Now().UTC()
	s.products[productID] = p
	return nil
}

func (s *Store) RestockAll(_ context.Context, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.products {
		if p.Unitary {
			p.Stock = qty
		} else {
			p.Stock = qty * 100
		}
		p.UpdatedAt = time.Now().UTC()
		s.products[id] = p
	}
	return nil
}

var _ orders.Store = (*Store)(nil)
