package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/casestar/casestar-client/internal/core/domain"
)

type backendFake struct {
	upload    *domain.UploadResult
	uploadErr error

	analysis      *domain.AnalysisResult
	analyzeErr    error
	analyzedText  string
	analyzedCase  string
	analyzeCalls  int
	uploadCalls   int
	echoCaseID    bool
	searchResults []domain.SearchResult
	searchQuery   string
	searchLimit   int
	searchErr     error
	cases         *domain.CaseList
}

func (f *backendFake) Upload(context.Context, domain.DocumentFile) (*domain.UploadResult, error) {
	f.uploadCalls++
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return f.upload, nil
}

func (f *backendFake) Analyze(_ context.Context, text, caseID string) (*domain.AnalysisResult, error) {
	f.analyzeCalls++
	f.analyzedText = text
	f.analyzedCase = caseID
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	out := *f.analysis
	if f.echoCaseID {
		out.CaseID = caseID
	}
	return &out, nil
}

func (f *backendFake) Search(_ context.Context, query string, limit int) ([]domain.SearchResult, error) {
	f.searchQuery = query
	f.searchLimit = limit
	return f.searchResults, f.searchErr
}

func (f *backendFake) Health(context.Context) (*domain.HealthStatus, error) {
	return &domain.HealthStatus{Status: "healthy", Services: map[string]bool{"api": true}}, nil
}

func (f *backendFake) ListCases(context.Context) (*domain.CaseList, error) {
	if f.cases == nil {
		return &domain.CaseList{Cases: []domain.Case{}}, nil
	}
	return f.cases, nil
}

type notifierFake struct {
	mu     sync.Mutex
	toasts []domain.Toast
}

func (f *notifierFake) Notify(_ context.Context, toast domain.Toast) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, toast)
}

func (f *notifierFake) levels() []domain.ToastLevel {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ToastLevel, 0, len(f.toasts))
	for _, t := range f.toasts {
		out = append(out, t.Level)
	}
	return out
}

type stageRecorder struct {
	mu     sync.Mutex
	events []domain.StageEvent
}

func (r *stageRecorder) OnStage(_ context.Context, event domain.StageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *stageRecorder) stages() []domain.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Stage, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Stage)
	}
	return out
}

func newPipelineForTest(api *backendFake) (*ProcessDocumentUseCase, *StageMachine, *stageRecorder, *notifierFake) {
	recorder := &stageRecorder{}
	stages := NewStageMachine(time.Hour, recorder)
	notifier := &notifierFake{}
	fixed := time.UnixMilli(1700000000123)
	uc := NewProcessDocumentUseCase(api, stages, notifier, PipelineOptions{
		Now: func() time.Time { return fixed },
	})
	return uc, stages, recorder, notifier
}

func sampleFile() domain.DocumentFile {
	return domain.DocumentFile{Name: "lease agreement.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4")}
}

func TestProcessDocumentSuccessVisitsStagesInOrder(t *testing.T) {
	api := &backendFake{
		upload:     &domain.UploadResult{Filename: "lease agreement.pdf", Size: 8, Status: "uploaded", ExtractedText: "The tenant shall pay rent."},
		analysis:   &domain.AnalysisResult{Summary: "Lease", KeyPoints: []string{"rent"}},
		echoCaseID: true,
	}
	uc, stages, recorder, notifier := newPipelineForTest(api)
	defer stages.Stop()

	result, err := uc.ProcessDocument(context.Background(), sampleFile())
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}

	want := []domain.Stage{domain.StageUploading, domain.StageReading, domain.StageAnalyzing, domain.StageComplete}
	got := recorder.stages()
	if len(got) != len(want) {
		t.Fatalf("expected stages %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected stages %v, got %v", want, got)
		}
	}
	if result.CaseID != "case-1700000000123" {
		t.Fatalf("expected generated case id, got %q", result.CaseID)
	}
	if api.analyzedCase != result.CaseID {
		t.Fatalf("expected analyze call with %q, got %q", result.CaseID, api.analyzedCase)
	}
	if api.analyzedText != "The tenant shall pay rent." {
		t.Fatalf("expected extracted text forwarded verbatim, got %q", api.analyzedText)
	}
	if snap := stages.Snapshot(); !snap.ResultReady || snap.Result == nil {
		t.Fatalf("expected retained result after completion, got %+v", snap)
	}
	for _, level := range notifier.levels() {
		if level == domain.ToastError || level == domain.ToastWarning {
			t.Fatalf("unexpected %s toast on success path", level)
		}
	}
}

func TestProcessDocumentBackfillsMissingCaseID(t *testing.T) {
	api := &backendFake{
		upload:   &domain.UploadResult{Filename: "a.txt", ExtractedText: "text"},
		analysis: &domain.AnalysisResult{Summary: "s"},
	}
	uc, stages, _, _ := newPipelineForTest(api)
	defer stages.Stop()

	result, err := uc.ProcessDocument(context.Background(), domain.DocumentFile{Name: "a.txt", Content: []byte("x")})
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if result.CaseID == "" || result.CaseID != api.analyzedCase {
		t.Fatalf("expected case id %q, got %q", api.analyzedCase, result.CaseID)
	}
}

func TestProcessDocumentFallsBackWhenNoTextExtracted(t *testing.T) {
	api := &backendFake{
		upload:     &domain.UploadResult{Filename: "scan.png"},
		analysis:   &domain.AnalysisResult{Summary: "s"},
		echoCaseID: true,
	}
	uc, stages, recorder, notifier := newPipelineForTest(api)

	_, err := uc.ProcessDocument(context.Background(), domain.DocumentFile{Name: "scan.png", Content: []byte{0x89}})
	stages.Stop()
	if err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if !strings.Contains(api.analyzedText, "scan.png") || !strings.Contains(api.analyzedText, domain.NoTextExtractedMarker) {
		t.Fatalf("expected fallback text with filename and marker, got %q", api.analyzedText)
	}
	levels := notifier.levels()
	if len(levels) == 0 || levels[0] != domain.ToastWarning {
		t.Fatalf("expected warning toast, got %v", levels)
	}
	for _, stage := range recorder.stages() {
		if stage == domain.StageError {
			t.Fatalf("fallback must not fail the pipeline")
		}
	}
}

func TestProcessDocumentForwardsWhitespaceTextVerbatim(t *testing.T) {
	api := &backendFake{
		upload:     &domain.UploadResult{Filename: "scan.png", ExtractedText: " \n "},
		analysis:   &domain.AnalysisResult{Summary: "s"},
		echoCaseID: true,
	}
	uc, stages, _, notifier := newPipelineForTest(api)
	defer stages.Stop()

	if _, err := uc.ProcessDocument(context.Background(), domain.DocumentFile{Name: "scan.png", Content: []byte{0x89}}); err != nil {
		t.Fatalf("ProcessDocument() error = %v", err)
	}
	if api.analyzedText != " \n " {
		t.Fatalf("expected extracted text forwarded as returned, got %q", api.analyzedText)
	}
	for _, level := range notifier.levels() {
		if level == domain.ToastWarning {
			t.Fatalf("present text must not trigger the no-text warning")
		}
	}
}

func TestProcessDocumentUploadRejectionCarriesDetail(t *testing.T) {
	api := &backendFake{
		uploadErr: &domain.RemoteError{Kind: domain.ErrUpload, StatusCode: 400, Detail: "Only PDF, TXT, and DOCX files are supported"},
	}
	uc, stages, recorder, notifier := newPipelineForTest(api)

	_, err := uc.ProcessDocument(context.Background(), sampleFile())
	if err == nil {
		t.Fatalf("expected error")
	}
	if err.Error() != "Only PDF, TXT, and DOCX files are supported" {
		t.Fatalf("expected exact detail message, got %q", err.Error())
	}
	if !domain.IsKind(err, domain.ErrUpload) {
		t.Fatalf("expected upload error kind, got %v", err)
	}
	if api.analyzeCalls != 0 {
		t.Fatalf("analyze must not run after upload failure")
	}

	got := recorder.stages()
	if len(got) != 2 || got[0] != domain.StageUploading || got[1] != domain.StageError {
		t.Fatalf("expected uploading -> error, got %v", got)
	}
	snap := stages.Snapshot()
	if snap.Stage != domain.StageError || snap.Message != "Only PDF, TXT, and DOCX files are supported" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	levels := notifier.levels()
	if len(levels) != 1 || levels[0] != domain.ToastError {
		t.Fatalf("expected one error toast, got %v", levels)
	}
}

func TestProcessDocumentAnalyzeFailureMovesToError(t *testing.T) {
	api := &backendFake{
		upload:     &domain.UploadResult{Filename: "a.pdf", ExtractedText: "text"},
		analyzeErr: &domain.RemoteError{Kind: domain.ErrAnalysis, StatusCode: 503, Detail: "Ollama service not available"},
	}
	uc, stages, recorder, _ := newPipelineForTest(api)

	_, err := uc.ProcessDocument(context.Background(), sampleFile())
	if !domain.IsKind(err, domain.ErrAnalysis) {
		t.Fatalf("expected analysis error, got %v", err)
	}
	got := recorder.stages()
	want := []domain.Stage{domain.StageUploading, domain.StageReading, domain.StageAnalyzing, domain.StageError}
	if len(got) != len(want) || got[3] != domain.StageError {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if api.uploadCalls != 1 || api.analyzeCalls != 1 {
		t.Fatalf("expected exactly one call per phase, got upload=%d analyze=%d", api.uploadCalls, api.analyzeCalls)
	}

	if err := stages.Begin(); !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected begin to be rejected until retry, got %v", err)
	}
	if err := stages.Retry(); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if snap := stages.Snapshot(); snap.Stage != domain.StageIdle || snap.Message != "" {
		t.Fatalf("expected idle with cleared message, got %+v", snap)
	}
}

func TestProcessDocumentRejectsInvalidInputWithoutTransition(t *testing.T) {
	api := &backendFake{}
	uc, stages, recorder, _ := newPipelineForTest(api)
	defer stages.Stop()

	cases := []domain.DocumentFile{
		{Name: "", Content: []byte("x")},
		{Name: "empty.pdf"},
		{Name: "archive.zip", Content: []byte("x")},
	}
	for _, file := range cases {
		_, err := uc.ProcessDocument(context.Background(), file)
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %q, got %v", file.Name, err)
		}
	}
	if len(recorder.stages()) != 0 {
		t.Fatalf("expected no stage transitions, got %v", recorder.stages())
	}
	if api.uploadCalls != 0 {
		t.Fatalf("expected no upload calls")
	}
}

func TestProcessDocumentRejectsConcurrentRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &blockingBackend{
		backendFake: backendFake{
			upload:     &domain.UploadResult{Filename: "a.pdf", ExtractedText: "t"},
			analysis:   &domain.AnalysisResult{Summary: "s"},
			echoCaseID: true,
		},
		started: started,
		release: release,
	}
	stages := NewStageMachine(time.Hour)
	defer stages.Stop()
	uc := NewProcessDocumentUseCase(api, stages, nil, PipelineOptions{})

	done := make(chan error, 1)
	go func() {
		_, err := uc.ProcessDocument(context.Background(), sampleFile())
		done <- err
	}()
	<-started

	_, err := uc.ProcessDocument(context.Background(), sampleFile())
	if !domain.IsKind(err, domain.ErrBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}

	close(release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first run error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for first run")
	}
}

func TestProcessDocumentCancelledDuringReadingDelay(t *testing.T) {
	api := &backendFake{
		upload:   &domain.UploadResult{Filename: "a.pdf", ExtractedText: "t"},
		analysis: &domain.AnalysisResult{Summary: "s"},
	}
	stages := NewStageMachine(time.Hour)
	uc := NewProcessDocumentUseCase(api, stages, nil, PipelineOptions{ReadingDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := uc.ProcessDocument(ctx, sampleFile())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stages.Snapshot().Stage != domain.StageError {
		t.Fatalf("expected error stage, got %s", stages.Snapshot().Stage)
	}
}

type blockingBackend struct {
	backendFake
	started chan struct{}
	release chan struct{}
}

func (b *blockingBackend) Upload(ctx context.Context, file domain.DocumentFile) (*domain.UploadResult, error) {
	close(b.started)
	<-b.release
	return b.backendFake.Upload(ctx, file)
}

func TestStartDocumentClaimsStageBeforeReturning(t *testing.T) {
	release := make(chan struct{})
	api := &blockingBackend{
		backendFake: backendFake{
			upload:     &domain.UploadResult{Filename: "a.pdf", ExtractedText: "t"},
			analysis:   &domain.AnalysisResult{Summary: "s"},
			echoCaseID: true,
		},
		started: make(chan struct{}),
		release: release,
	}
	stages := NewStageMachine(time.Hour)
	defer stages.Stop()
	uc := NewProcessDocumentUseCase(api, stages, nil, PipelineOptions{})

	done, err := uc.StartDocument(context.Background(), sampleFile())
	if err != nil {
		t.Fatalf("StartDocument() error = %v", err)
	}
	if stages.Snapshot().Stage != domain.StageUploading {
		t.Fatalf("expected uploading right after start, got %s", stages.Snapshot().Stage)
	}
	if _, err := uc.StartDocument(context.Background(), sampleFile()); !domain.IsKind(err, domain.ErrBusy) {
		t.Fatalf("expected busy error for second start, got %v", err)
	}

	close(release)
	select {
	case outcome := <-done:
		if outcome.Err != nil || outcome.Result == nil || outcome.Result.Summary != "s" {
			t.Fatalf("unexpected outcome %+v", outcome)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for background run")
	}
}

func TestStartDocumentRejectsInvalidFileSynchronously(t *testing.T) {
	stages := NewStageMachine(time.Hour)
	uc := NewProcessDocumentUseCase(&backendFake{}, stages, nil, PipelineOptions{})

	_, err := uc.StartDocument(context.Background(), domain.DocumentFile{Name: "notes.exe", Content: []byte("x")})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if stages.Snapshot().Stage != domain.StageIdle {
		t.Fatalf("expected idle stage, got %s", stages.Snapshot().Stage)
	}
}
