package notify

import (
	"context"
	"testing"
	"time"

	"github.com/casestar/casestar-client/internal/core/domain"
)

type forwardRecorder struct {
	toasts []domain.Toast
}

func (f *forwardRecorder) Notify(_ context.Context, toast domain.Toast) {
	f.toasts = append(f.toasts, toast)
}

func TestToasterKeepsNewestWithinCapacity(t *testing.T) {
	toaster := NewToaster(2)
	ctx := context.Background()
	toaster.Notify(ctx, domain.Toast{Level: domain.ToastInfo, Message: "one"})
	toaster.Notify(ctx, domain.Toast{Level: domain.ToastWarning, Message: "two"})
	toaster.Notify(ctx, domain.Toast{Level: domain.ToastError, Message: "three"})

	recent := toaster.Recent(0)
	if len(recent) != 2 || recent[0].Message != "two" || recent[1].Message != "three" {
		t.Fatalf("unexpected toasts %+v", recent)
	}
	if last := toaster.Recent(1); len(last) != 1 || last[0].Message != "three" {
		t.Fatalf("unexpected limited toasts %+v", last)
	}
}

func TestToasterStampsAndForwards(t *testing.T) {
	fwd := &forwardRecorder{}
	toaster := NewToaster(0, fwd)
	fixed := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	toaster.now = func() time.Time { return fixed }

	toaster.Notify(context.Background(), domain.Toast{Message: "hello"})
	if len(fwd.toasts) != 1 {
		t.Fatalf("expected forwarded toast")
	}
	got := fwd.toasts[0]
	if got.Level != domain.ToastInfo || !got.At.Equal(fixed) {
		t.Fatalf("expected stamped info toast, got %+v", got)
	}
}
