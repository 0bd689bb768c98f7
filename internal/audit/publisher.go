package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"intake/pkg/platform/circuit"
)

// Publisher mirrors audit entries to a Kafka topic for SIEM and alerting
// pipelines. The Postgres trail remains the source of truth; the mirror is
// strictly best-effort and drops on backpressure rather than blocking the
// synchronous audit path.
type Publisher struct {
	inbox  chan Entry
	logger *slog.Logger
}

const mirrorBuffer = 256

// NewPublisher builds a mirror publisher with a bounded inbox. Run the
// returned Worker to drain it.
func NewPublisher(logger *slog.Logger) *Publisher {
	return &Publisher{
		inbox:  make(chan Entry, mirrorBuffer),
		logger: logger,
	}
}

// Offer enqueues an entry without blocking; a full inbox drops the entry.
func (p *Publisher) Offer(entry Entry) {
	select {
	case p.inbox <- entry:
	default:
		p.logger.Warn("audit mirror inbox full, dropping entry",
			"action", string(entry.Action),
		)
	}
}

type mirrorPayload struct {
	ID          string `json:"id"`
	ActorID     string `json:"actor_id,omitempty"`
	ApplicantID string `json:"applicant_id,omitempty"`
	Action      string `json:"action"`
	Details     string `json:"details,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// Worker drains the publisher inbox into Kafka. It owns the client lifecycle
// and keeps background processing out of request paths.
type Worker struct {
	client  *kgo.Client
	topic   string
	inbox   <-chan Entry
	logger  *slog.Logger
	breaker *circuit.Breaker
	dropped atomic.Int64
}

// probeEvery is how many dropped entries pass between produce probes while
// the breaker is open.
const probeEvery = 10

// NewWorker connects to the brokers and prepares a drain loop for the
// publisher's inbox.
func NewWorker(brokers []string, topic string, p *Publisher, logger *slog.Logger) (*Worker, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, err
	}
	return &Worker{
		client:  client,
		topic:   topic,
		inbox:   p.inbox,
		logger:  logger,
		breaker: circuit.New("audit-mirror", circuit.WithFailureThreshold(5)),
	}, nil
}

// Run drains entries until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	defer w.client.Close()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = w.client.Flush(flushCtx)
			return ctx.Err()
		case entry := <-w.inbox:
			w.produce(ctx, entry)
		}
	}
}

func (w *Worker) produce(ctx context.Context, entry Entry) {
	// While the breaker is open, drop entries and only probe occasionally
	// so a dead broker does not accumulate an unbounded produce backlog.
	if w.breaker.IsOpen() {
		if n := w.dropped.Add(1); n%probeEvery != 0 {
			return
		}
	}

	payload := mirrorPayload{
		ID:        entry.ID.String(),
		Action:    string(entry.Action),
		Details:   entry.Details,
		Timestamp: entry.Timestamp.Format(time.RFC3339Nano),
	}
	if entry.ActorID != nil {
		payload.ActorID = entry.ActorID.String()
	}
	if entry.ApplicantID != nil {
		payload.ApplicantID = entry.ApplicantID.String()
	}

	value, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error("audit mirror marshal failed", "error", err)
		return
	}

	record := &kgo.Record{Topic: w.topic, Key: []byte(payload.ID), Value: value}
	w.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			if _, change := w.breaker.RecordFailure(); change.Opened {
				w.logger.Error("audit mirror circuit opened, dropping entries")
			}
			w.logger.Warn("audit mirror produce failed",
				"error", err,
				"action", payload.Action,
			)
			return
		}
		if _, change := w.breaker.RecordSuccess(); change.Closed {
			w.logger.Info("audit mirror circuit closed", "dropped", w.dropped.Swap(0))
		}
	})
}
