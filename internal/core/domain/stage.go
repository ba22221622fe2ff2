package domain

import "time"

type Stage string

const (
	StageIdle      Stage = "idle"
	StageUploading Stage = "uploading"
	StageReading   Stage = "reading"
	StageAnalyzing Stage = "analyzing"
	StageComplete  Stage = "complete"
	StageError     Stage = "error"
)

var stageTransitions = map[Stage][]Stage{
	StageIdle:      {StageUploading},
	StageUploading: {StageReading, StageError},
	StageReading:   {StageAnalyzing, StageError},
	StageAnalyzing: {StageComplete, StageError},
	StageComplete:  {StageIdle},
	StageError:     {StageIdle},
}

// CanTransition reports whether the presentation flow allows from -> to.
func CanTransition(from, to Stage) bool {
	for _, next := range stageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InFlight is true while a pipeline run owns the stage.
func (s Stage) InFlight() bool {
	switch s {
	case StageUploading, StageReading, StageAnalyzing:
		return true
	default:
		return false
	}
}

func (s Stage) Valid() bool {
	_, ok := stageTransitions[s]
	return ok
}

type StageEvent struct {
	Stage    Stage     `json:"stage"`
	Previous Stage     `json:"previous"`
	Message  string    `json:"message,omitempty"`
	CaseID   string    `json:"case_id,omitempty"`
	At       time.Time `json:"at"`
}

// StageSnapshot is what presentation components render.
type StageSnapshot struct {
	Stage       Stage           `json:"stage" yaml:"stage"`
	Message     string          `json:"message,omitempty" yaml:"message,omitempty"`
	ResultReady bool            `json:"result_ready" yaml:"result_ready"`
	Result      *AnalysisResult `json:"result,omitempty" yaml:"result,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at" yaml:"updated_at"`
}

type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastWarning ToastLevel = "warning"
	ToastError   ToastLevel = "error"
)

type Toast struct {
	Level   ToastLevel `json:"level"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}
