package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"ragline/features/job"
	"ragline/internal/config"
	"ragline/internal/middleware"
)

// Drainer is the drain loop the consumer triggers. *Runner is the
// production implementation.
type Drainer interface {
	Drain(ctx context.Context, maxJobs int) []job.RunResult
}

type PendingCounter interface {
	CountPending(ctx context.Context) (int, error)
}

type Publisher interface {
	Publish(topic string, body []byte) error
}

// TickPayload is the body of a pipeline.tick message. Every field is
// optional; an empty message is a valid tick.
type TickPayload struct {
	Reason        string `json:"reason,omitempty"`
	SourceID      string `json:"source_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// TickConsumer reacts to pipeline.tick messages by draining the queue.
// When the drain budget runs out with work still pending it publishes a
// fresh tick, so a large backlog is worked off in bounded slices without
// any single message holding the consumer for too long.
type TickConsumer struct {
	runner  Drainer
	pending PendingCounter
	pub     Publisher
	maxJobs int
}

func NewTickConsumer(runner Drainer, pending PendingCounter, pub Publisher, maxJobs int) *TickConsumer {
	return &TickConsumer{
		runner:  runner,
		pending: pending,
		pub:     pub,
		maxJobs: maxJobs,
	}
}

// HandleMessage always returns nil: a tick is a hint, not a work item, and
// requeueing it would only duplicate drains.
func (c *TickConsumer) HandleMessage(m *nsq.Message) error {
	ctx := context.Background()

	var payload TickPayload
	if len(m.Body) > 0 {
		if err := json.Unmarshal(m.Body, &payload); err != nil {
			slog.Error("malformed tick message, draining anyway", "error", err)
		}
	}
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	results := c.runner.Drain(ctx, c.maxJobs)

	processed := 0
	for _, r := range results {
		if r.Status == job.StatusDone || r.Status == job.StatusRetry {
			processed++
		}
	}
	slog.InfoContext(ctx, "tick drained", "reason", payload.Reason, "processed", processed)
	if processed == 0 {
		return nil
	}

	remaining, err := c.pending.CountPending(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "pending count failed after drain", "error", err)
		return nil
	}
	if remaining == 0 {
		return nil
	}

	kick, _ := json.Marshal(TickPayload{
		Reason:        "self_kick",
		CorrelationID: payload.CorrelationID,
	})
	if err := c.pub.Publish(config.TopicPipelineTick, kick); err != nil {
		slog.ErrorContext(ctx, "self-kick publish failed", "error", err, "remaining", remaining)
	} else {
		slog.InfoContext(ctx, "self-kick published", "remaining", remaining)
	}
	return nil
}
