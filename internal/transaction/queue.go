package transaction

import (
	"sync"

	"yumex/pkg/types"
)

// Queue is the ordered set of packages queued for the next transaction.
// A package appears at most once; queuing it again replaces its action.
type Queue struct {
	mu    sync.Mutex
	items []types.QueueItem
}

func (q *Queue) Add(item types.QueueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].PkgID == item.PkgID {
			q.items[i] = item
			return
		}
	}
	q.items = append(q.items, item)
}

// Remove drops pkgID and reports whether it was queued.
func (q *Queue) Remove(pkgID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].PkgID == pkgID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) Contains(pkgID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it.PkgID == pkgID {
			return true
		}
	}
	return false
}

// Items returns a copy of the queued items in insertion order.
func (q *Queue) Items() []types.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]types.QueueItem(nil), q.items...)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}
