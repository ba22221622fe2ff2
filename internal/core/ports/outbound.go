package ports

import (
	"context"

	"github.com/casestar/casestar-client/internal/core/domain"
)

// BackendAPI is the remote CaseStar service.
type BackendAPI interface {
	Upload(ctx context.Context, file domain.DocumentFile) (*domain.UploadResult, error)
	Analyze(ctx context.Context, text, caseID string) (*domain.AnalysisResult, error)
	Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)
	Health(ctx context.Context) (*domain.HealthStatus, error)
	ListCases(ctx context.Context) (*domain.CaseList, error)
}

// StageTracker is driven by the pipeline at every phase boundary.
type StageTracker interface {
	Begin() error
	Advance(to domain.Stage) error
	Complete(result *domain.AnalysisResult) error
	Fail(err error) error
}

// StageObserver receives every stage transition in order.
type StageObserver interface {
	OnStage(ctx context.Context, event domain.StageEvent)
}

// Notifier surfaces transient toasts to the user.
type Notifier interface {
	Notify(ctx context.Context, toast domain.Toast)
}

// KeyValueStore persists small client-side blobs such as settings.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}
