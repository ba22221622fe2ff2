package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casestar/casestar-client/internal/core/domain"
	"github.com/casestar/casestar-client/internal/core/ports"
)

type PipelineOptions struct {
	// ReadingDelay holds the reading stage on screen before analysis starts.
	ReadingDelay time.Duration
	Now          func() time.Time
}

type ProcessDocumentUseCase struct {
	api          ports.BackendAPI
	tracker      ports.StageTracker
	notifier     ports.Notifier
	readingDelay time.Duration
	now          func() time.Time
}

func NewProcessDocumentUseCase(
	api ports.BackendAPI,
	tracker ports.StageTracker,
	notifier ports.Notifier,
	opts PipelineOptions,
) *ProcessDocumentUseCase {
	if tracker == nil {
		tracker = noopTracker{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ProcessDocumentUseCase{
		api:          api,
		tracker:      tracker,
		notifier:     notifier,
		readingDelay: opts.ReadingDelay,
		now:          now,
	}
}

// ProcessDocument uploads the file, resolves its text and analyzes it.
// Every failure after the run has begun moves the tracker to error and is
// surfaced as an error toast. Nothing is retried.
func (uc *ProcessDocumentUseCase) ProcessDocument(ctx context.Context, file domain.DocumentFile) (*domain.AnalysisResult, error) {
	if err := uc.begin(file); err != nil {
		return nil, err
	}
	return uc.finish(ctx, file)
}

// StartDocument validates the file and claims the stage machine before
// returning, then runs the rest of the pipeline in the background. The
// channel receives exactly one outcome. ctx must outlive the caller's
// request if the run should too.
func (uc *ProcessDocumentUseCase) StartDocument(ctx context.Context, file domain.DocumentFile) (<-chan domain.PipelineOutcome, error) {
	if err := uc.begin(file); err != nil {
		return nil, err
	}
	done := make(chan domain.PipelineOutcome, 1)
	go func() {
		defer close(done)
		result, err := uc.finish(ctx, file)
		done <- domain.PipelineOutcome{Result: result, Err: err}
	}()
	return done, nil
}

func (uc *ProcessDocumentUseCase) begin(file domain.DocumentFile) error {
	if err := domain.ValidateDocument(file); err != nil {
		return err
	}
	return uc.tracker.Begin()
}

func (uc *ProcessDocumentUseCase) finish(ctx context.Context, file domain.DocumentFile) (*domain.AnalysisResult, error) {
	start := uc.now()
	result, err := uc.runPipeline(ctx, file)
	if err != nil {
		if failErr := uc.tracker.Fail(err); failErr != nil {
			slog.Warn("pipeline_fail_transition", "filename", file.Name, "error", failErr)
		}
		slog.Error("pipeline_failed",
			"filename", file.Name,
			"duration_ms", float64(uc.now().Sub(start).Microseconds())/1000.0,
			"error", err,
		)
		uc.notify(ctx, domain.ToastError, domain.DisplayMessage(err))
		return nil, err
	}

	if err := uc.tracker.Complete(result); err != nil {
		return nil, fmt.Errorf("set stage=complete: %w", err)
	}
	slog.Info("pipeline_completed",
		"filename", file.Name,
		"case_id", result.CaseID,
		"key_points", len(result.KeyPoints),
		"entities", len(result.Entities),
		"duration_ms", float64(uc.now().Sub(start).Microseconds())/1000.0,
	)
	return result, nil
}

func (uc *ProcessDocumentUseCase) runPipeline(ctx context.Context, file domain.DocumentFile) (*domain.AnalysisResult, error) {
	upload, err := uc.api.Upload(ctx, file)
	if err != nil {
		return nil, err
	}
	if err := uc.tracker.Advance(domain.StageReading); err != nil {
		return nil, err
	}

	text := uc.resolveText(ctx, file, upload)
	if err := sleepContext(ctx, uc.readingDelay); err != nil {
		return nil, err
	}
	if err := uc.tracker.Advance(domain.StageAnalyzing); err != nil {
		return nil, err
	}

	caseID := domain.NewCaseID(uc.now())
	result, err := uc.api.Analyze(ctx, text, caseID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, &domain.RemoteError{
			Kind:   domain.ErrAnalysis,
			Detail: domain.AnalysisFailedMessage,
			Err:    errors.New("empty analysis response"),
		}
	}
	if result.CaseID != caseID {
		if result.CaseID != "" {
			slog.Warn("case_id_mismatch", "sent", caseID, "received", result.CaseID)
		}
		result.CaseID = caseID
	}
	return result, nil
}

// resolveText prefers the backend's extracted text and otherwise falls back
// to a placeholder naming the file. The fallback is a warning, not a failure.
func (uc *ProcessDocumentUseCase) resolveText(ctx context.Context, file domain.DocumentFile, upload *domain.UploadResult) string {
	if upload.HasText() {
		return upload.ExtractedText
	}
	slog.Warn("no_text_extracted", "filename", file.Name)
	uc.notify(ctx, domain.ToastWarning, fmt.Sprintf("No text could be extracted from %s; analyzing without document text", file.Name))
	return domain.FallbackAnalysisText(file.Name)
}

func (uc *ProcessDocumentUseCase) notify(ctx context.Context, level domain.ToastLevel, message string) {
	uc.notifier.Notify(ctx, domain.Toast{
		Level:   level,
		Message: message,
		At:      uc.now().UTC(),
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noopTracker struct{}

func (noopTracker) Begin() error                          { return nil }
func (noopTracker) Advance(domain.Stage) error            { return nil }
func (noopTracker) Complete(*domain.AnalysisResult) error { return nil }
func (noopTracker) Fail(error) error                      { return nil }

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, domain.Toast) {}
