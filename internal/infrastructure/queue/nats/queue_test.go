package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/casestar/casestar-client/internal/core/domain"
	"github.com/casestar/casestar-client/internal/infrastructure/resilience"
)

func TestPublishStageEventEncodesJSON(t *testing.T) {
	var gotSubject string
	var gotPayload []byte
	q := &Queue{
		subject: "casestar.stage",
		publish: func(subject string, data []byte) error {
			gotSubject, gotPayload = subject, data
			return nil
		},
	}

	at := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	event := domain.StageEvent{Stage: domain.StageReading, Previous: domain.StageUploading, At: at}
	if err := q.PublishStageEvent(context.Background(), event); err != nil {
		t.Fatalf("PublishStageEvent() error = %v", err)
	}
	if gotSubject != "casestar.stage" {
		t.Fatalf("unexpected subject %q", gotSubject)
	}
	decoded, err := decodeStageEvent(gotPayload)
	if err != nil {
		t.Fatalf("decodeStageEvent() error = %v", err)
	}
	if decoded.Stage != domain.StageReading || decoded.Previous != domain.StageUploading || !decoded.At.Equal(at) {
		t.Fatalf("unexpected decoded event %+v", decoded)
	}
}

func TestPublishFailureIsTemporary(t *testing.T) {
	q := &Queue{
		subject: "casestar.stage",
		publish: func(string, []byte) error { return nats.ErrConnectionClosed },
		executor: resilience.NewExecutor(resilience.Config{
			BreakerEnabled:     true,
			BreakerMinRequests: 10,
		}),
	}
	err := q.PublishStageEvent(context.Background(), domain.StageEvent{Stage: domain.StageIdle})
	if !domain.IsKind(err, domain.ErrTemporary) || !errors.Is(err, nats.ErrConnectionClosed) {
		t.Fatalf("expected temporary publish failure, got %v", err)
	}
}

func TestOnStageSwallowsPublishErrors(t *testing.T) {
	calls := 0
	q := &Queue{
		subject: "casestar.stage",
		publish: func(string, []byte) error {
			calls++
			return errors.New("boom")
		},
	}
	q.OnStage(context.Background(), domain.StageEvent{Stage: domain.StageComplete})
	if calls != 1 {
		t.Fatalf("expected one publish attempt, got %d", calls)
	}
}

func TestDecodeRejectsUnknownStage(t *testing.T) {
	if _, err := decodeStageEvent([]byte(`{"stage":"exploding"}`)); err == nil {
		t.Fatalf("expected unknown stage error")
	}
	if _, err := decodeStageEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
