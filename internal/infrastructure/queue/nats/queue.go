package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/casestar/casestar-client/internal/core/domain"
	"github.com/casestar/casestar-client/internal/infrastructure/resilience"
)

const DefaultSubject = "casestar.stage"

// Queue fans stage transitions out over a NATS subject so other processes
// (the watcher, a second terminal) can follow a running pipeline.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	publish  func(subject string, data []byte) error
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(
		url,
		nats.Name("casestar-client"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		publish:  conn.Publish,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// OnStage publishes the transition. Publishing is best effort: a broker
// outage is logged and never reaches the pipeline.
func (q *Queue) OnStage(ctx context.Context, event domain.StageEvent) {
	if err := q.PublishStageEvent(ctx, event); err != nil {
		slog.Warn("stage_event_publish_failed",
			"stage", event.Stage,
			"subject", q.subject,
			"error", err,
		)
	}
}

func (q *Queue) PublishStageEvent(ctx context.Context, event domain.StageEvent) error {
	payload, err := encodeStageEvent(event)
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := q.publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return publishError(err)
	}
	return nil
}

// SubscribeStageEvents delivers every published transition to handler until
// ctx is done. Every subscriber sees every event.
func (q *Queue) SubscribeStageEvents(ctx context.Context, handler func(context.Context, domain.StageEvent) error) error {
	sub, err := q.conn.Subscribe(q.subject, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		event, err := decodeStageEvent(msg.Data)
		if err != nil {
			slog.Warn("stage_event_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			slog.Error("stage_event_handler_failed", "stage", event.Stage, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeStageEvent(event domain.StageEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode stage event: %w", err)
	}
	return payload, nil
}

func decodeStageEvent(data []byte) (domain.StageEvent, error) {
	var event domain.StageEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.StageEvent{}, fmt.Errorf("decode stage event: %w", err)
	}
	if !event.Stage.Valid() {
		return domain.StageEvent{}, fmt.Errorf("decode stage event: unknown stage %q", event.Stage)
	}
	return event, nil
}
