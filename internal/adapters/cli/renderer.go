package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/casestar/casestar-client/internal/core/domain"
)

var stageLabels = map[domain.Stage]string{
	domain.StageIdle:      "Ready",
	domain.StageUploading: "Uploading document",
	domain.StageReading:   "Reading document",
	domain.StageAnalyzing: "Analyzing with AI",
	domain.StageComplete:  "Analysis complete",
	domain.StageError:     "Failed",
}

// Renderer prints stage transitions and toasts to a terminal. It satisfies
// both ports.StageObserver and ports.Notifier.
type Renderer struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool

	active  *color.Color
	done    *color.Color
	failed  *color.Color
	warning *color.Color
	muted   *color.Color
}

func NewRenderer(w io.Writer, noColor, verbose bool) *Renderer {
	r := &Renderer{
		w:       w,
		verbose: verbose,
		active:  color.New(color.FgCyan, color.Bold),
		done:    color.New(color.FgGreen, color.Bold),
		failed:  color.New(color.FgRed, color.Bold),
		warning: color.New(color.FgYellow),
		muted:   color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{r.active, r.done, r.failed, r.warning, r.muted} {
			c.DisableColor()
		}
	}
	return r
}

func (r *Renderer) OnStage(_ context.Context, event domain.StageEvent) {
	if event.Stage == domain.StageIdle && !r.verbose {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	label := stageLabels[event.Stage]
	if label == "" {
		label = string(event.Stage)
	}
	switch event.Stage {
	case domain.StageComplete:
		fmt.Fprintf(r.w, "%s %s\n", r.done.Sprint("✔"), label)
	case domain.StageError:
		fmt.Fprintf(r.w, "%s %s: %s\n", r.failed.Sprint("✖"), label, event.Message)
	case domain.StageIdle:
		fmt.Fprintf(r.w, "%s\n", r.muted.Sprint(label))
	default:
		fmt.Fprintf(r.w, "%s %s...\n", r.active.Sprint("›"), label)
	}
	if r.verbose && event.CaseID != "" {
		fmt.Fprintf(r.w, "  %s\n", r.muted.Sprintf("case %s", event.CaseID))
	}
}

func (r *Renderer) Notify(_ context.Context, toast domain.Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch toast.Level {
	case domain.ToastError:
		fmt.Fprintf(r.w, "%s %s\n", r.failed.Sprint("error:"), toast.Message)
	case domain.ToastWarning:
		fmt.Fprintf(r.w, "%s %s\n", r.warning.Sprint("warning:"), toast.Message)
	default:
		fmt.Fprintf(r.w, "%s %s\n", r.muted.Sprint("info:"), toast.Message)
	}
}
