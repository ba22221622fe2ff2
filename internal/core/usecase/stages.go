package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/casestar/casestar-client/internal/core/domain"
	"github.com/casestar/casestar-client/internal/core/ports"
)

// StageMachine tracks the presentation stage of the current pipeline run.
//
// Observers are called synchronously and in transition order. They must not
// drive transitions themselves; reading Snapshot from an observer is fine.
type StageMachine struct {
	mu          sync.Mutex
	stage       domain.Stage
	message     string
	caseID      string
	result      *domain.AnalysisResult
	resultReady bool
	updatedAt   time.Time
	resetDelay  time.Duration
	resetTimer  *time.Timer
	generation  uint64

	notifyMu  sync.Mutex
	observers []ports.StageObserver

	now func() time.Time
}

func NewStageMachine(resetDelay time.Duration, observers ...ports.StageObserver) *StageMachine {
	m := &StageMachine{
		stage:      domain.StageIdle,
		resetDelay: resetDelay,
		now:        time.Now,
	}
	m.updatedAt = m.now().UTC()
	for _, o := range observers {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
	return m
}

func (m *StageMachine) AddObserver(o ports.StageObserver) {
	if o == nil {
		return
	}
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.observers = append(m.observers, o)
}

// Begin moves idle -> uploading. A run still waiting on the automatic reset
// after completion is reset first; any other state is busy.
func (m *StageMachine) Begin() error {
	m.mu.Lock()
	var events []domain.StageEvent
	switch {
	case m.stage == domain.StageComplete:
		m.stopResetLocked()
		events = append(events, m.setLocked(domain.StageIdle, ""))
	case m.stage == domain.StageError:
		m.mu.Unlock()
		return domain.WrapError(domain.ErrInvalidTransition, "begin", fmt.Errorf("retry required after error"))
	case m.stage != domain.StageIdle:
		stage := m.stage
		m.mu.Unlock()
		return domain.WrapError(domain.ErrBusy, "begin", fmt.Errorf("stage=%s", stage))
	}
	m.caseID = ""
	events = append(events, m.setLocked(domain.StageUploading, ""))
	m.publishAndUnlock(events...)
	return nil
}

// Advance moves between in-flight stages.
func (m *StageMachine) Advance(to domain.Stage) error {
	if to == domain.StageComplete || to == domain.StageError || to == domain.StageIdle {
		return domain.WrapError(domain.ErrInvalidTransition, "advance", fmt.Errorf("use the dedicated transition for %s", to))
	}
	m.mu.Lock()
	if !domain.CanTransition(m.stage, to) {
		from := m.stage
		m.mu.Unlock()
		return domain.WrapError(domain.ErrInvalidTransition, "advance", fmt.Errorf("%s -> %s", from, to))
	}
	event := m.setLocked(to, "")
	m.publishAndUnlock(event)
	return nil
}

// Complete moves analyzing -> complete, retains the result and schedules the
// automatic return to idle.
func (m *StageMachine) Complete(result *domain.AnalysisResult) error {
	m.mu.Lock()
	if !domain.CanTransition(m.stage, domain.StageComplete) {
		from := m.stage
		m.mu.Unlock()
		return domain.WrapError(domain.ErrInvalidTransition, "complete", fmt.Errorf("%s -> %s", from, domain.StageComplete))
	}
	m.result = result
	m.resultReady = true
	if result != nil {
		m.caseID = result.CaseID
	}
	event := m.setLocked(domain.StageComplete, "")
	m.generation++
	gen := m.generation
	m.resetTimer = time.AfterFunc(m.resetDelay, func() { m.autoReset(gen) })
	m.publishAndUnlock(event)
	return nil
}

// Fail moves any in-flight stage to error and captures the display message.
func (m *StageMachine) Fail(err error) error {
	m.mu.Lock()
	if !m.stage.InFlight() {
		from := m.stage
		m.mu.Unlock()
		return domain.WrapError(domain.ErrInvalidTransition, "fail", fmt.Errorf("%s -> %s", from, domain.StageError))
	}
	event := m.setLocked(domain.StageError, domain.DisplayMessage(err))
	m.publishAndUnlock(event)
	return nil
}

// Retry is the only way out of error.
func (m *StageMachine) Retry() error {
	m.mu.Lock()
	if m.stage != domain.StageError {
		from := m.stage
		m.mu.Unlock()
		return domain.WrapError(domain.ErrInvalidTransition, "retry", fmt.Errorf("%s -> %s", from, domain.StageIdle))
	}
	event := m.setLocked(domain.StageIdle, "")
	m.publishAndUnlock(event)
	return nil
}

// DismissResult drops the retained analysis result.
func (m *StageMachine) DismissResult() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = nil
	m.resultReady = false
}

func (m *StageMachine) Snapshot() domain.StageSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.StageSnapshot{
		Stage:       m.stage,
		Message:     m.message,
		ResultReady: m.resultReady,
		Result:      m.result,
		UpdatedAt:   m.updatedAt,
	}
}

// Stop cancels a pending automatic reset.
func (m *StageMachine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopResetLocked()
}

func (m *StageMachine) autoReset(gen uint64) {
	m.mu.Lock()
	if m.stage != domain.StageComplete || m.generation != gen {
		m.mu.Unlock()
		return
	}
	m.resetTimer = nil
	m.resultReady = false
	event := m.setLocked(domain.StageIdle, "")
	m.publishAndUnlock(event)
}

func (m *StageMachine) stopResetLocked() {
	if m.resetTimer != nil {
		m.resetTimer.Stop()
		m.resetTimer = nil
	}
	m.generation++
	m.resultReady = false
}

func (m *StageMachine) setLocked(to domain.Stage, message string) domain.StageEvent {
	event := domain.StageEvent{
		Stage:    to,
		Previous: m.stage,
		Message:  message,
		CaseID:   m.caseID,
		At:       m.now().UTC(),
	}
	m.stage = to
	m.message = message
	m.updatedAt = event.At
	return event
}

// publishAndUnlock hands the state lock over to the notify lock so observers
// see transitions in the order they were applied.
func (m *StageMachine) publishAndUnlock(events ...domain.StageEvent) {
	m.notifyMu.Lock()
	m.mu.Unlock()
	defer m.notifyMu.Unlock()

	for _, event := range events {
		for _, o := range m.observers {
			o.OnStage(context.Background(), event)
		}
	}
}
