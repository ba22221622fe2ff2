package ports

import (
	"context"

	"github.com/casestar/casestar-client/internal/core/domain"
)

// DocumentProcessor is the inbound contract for the upload/analyze pipeline.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, file domain.DocumentFile) (*domain.AnalysisResult, error)
	StartDocument(ctx context.Context, file domain.DocumentFile) (<-chan domain.PipelineOutcome, error)
}

// StagePresenter exposes the stage machine to presentation surfaces.
type StagePresenter interface {
	Snapshot() domain.StageSnapshot
	Retry() error
	DismissResult()
}

// SettingsManager is the inbound contract for client settings.
type SettingsManager interface {
	Get() domain.AppSettings
	Update(ctx context.Context, patch domain.SettingsPatch) (domain.AppSettings, error)
	UpdateTimeline(ctx context.Context, patch domain.TimelinePatch) (domain.AppSettings, error)
	Reset(ctx context.Context) (domain.AppSettings, error)
	Reload(ctx context.Context) (domain.AppSettings, error)
}

// BackendQueryService covers the read-only backend calls outside the pipeline.
type BackendQueryService interface {
	Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)
	Health(ctx context.Context) (*domain.HealthStatus, error)
	Cases(ctx context.Context, filter string) (*domain.CaseList, error)
}
