package reconcile

import (
	"context"
	"sync"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
)

// MemoryLedger is an OrderLedger over a fixed order list, used by the CLI's
// --ledger-json mode and by tests.
type MemoryLedger struct {
	mu     sync.RWMutex
	orders []entity.OrderRecord
}

func NewMemoryLedger(orders []entity.OrderRecord) *MemoryLedger {
	return &MemoryLedger{orders: append([]entity.OrderRecord(nil), orders...)}
}

// GetOrders returns every order; partner filtering happens in the join.
func (l *MemoryLedger) GetOrders(_ context.Context, _ constants.Partner) ([]entity.OrderRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]entity.OrderRecord(nil), l.orders...), nil
}

// Replace swaps the snapshot.
func (l *MemoryLedger) Replace(orders []entity.OrderRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders = append([]entity.OrderRecord(nil), orders...)
}
