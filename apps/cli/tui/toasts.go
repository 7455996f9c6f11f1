package tui

import (
	"sync"

	"github.com/trezcool/admissions/core"
)

// ToastQueue collects the board's toasts until the model renders them.
type ToastQueue struct {
	mu   sync.Mutex
	list []core.Toast
}

var _ core.Notifier = (*ToastQueue)(nil)

func NewToastQueue() *ToastQueue { return &ToastQueue{} }

func (q *ToastQueue) Notify(t core.Toast) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.list = append(q.list, t)
}

// Drain returns and forgets the queued toasts.
func (q *ToastQueue) Drain() []core.Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.list
	q.list = nil
	return list
}
