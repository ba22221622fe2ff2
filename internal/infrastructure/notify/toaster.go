package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/casestar/casestar-client/internal/core/domain"
	"github.com/casestar/casestar-client/internal/core/ports"
)

const DefaultCapacity = 50

// Toaster keeps the most recent toasts in memory for presentation surfaces
// that poll, and forwards each one to any attached notifiers.
type Toaster struct {
	mu       sync.Mutex
	capacity int
	toasts   []domain.Toast
	forward  []ports.Notifier
	now      func() time.Time
}

func NewToaster(capacity int, forward ...ports.Notifier) *Toaster {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Toaster{
		capacity: capacity,
		forward:  forward,
		now:      time.Now,
	}
}

func (t *Toaster) Notify(ctx context.Context, toast domain.Toast) {
	if toast.At.IsZero() {
		toast.At = t.now().UTC()
	}
	if toast.Level == "" {
		toast.Level = domain.ToastInfo
	}

	t.mu.Lock()
	t.toasts = append(t.toasts, toast)
	if over := len(t.toasts) - t.capacity; over > 0 {
		t.toasts = append(t.toasts[:0:0], t.toasts[over:]...)
	}
	forward := t.forward
	t.mu.Unlock()

	attrs := []any{"level", toast.Level, "message", toast.Message}
	switch toast.Level {
	case domain.ToastError:
		slog.Error("toast", attrs...)
	case domain.ToastWarning:
		slog.Warn("toast", attrs...)
	default:
		slog.Info("toast", attrs...)
	}

	for _, n := range forward {
		n.Notify(ctx, toast)
	}
}

// Recent returns up to limit toasts, newest last. A non-positive limit returns all.
func (t *Toaster) Recent(limit int) []domain.Toast {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := 0
	if limit > 0 && len(t.toasts) > limit {
		start = len(t.toasts) - limit
	}
	out := make([]domain.Toast, len(t.toasts)-start)
	copy(out, t.toasts[start:])
	return out
}
