package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"situationcord.app/relay/internal/model"
	"situationcord.app/relay/internal/pipeline"
	"situationcord.app/relay/internal/queue"
	"situationcord.app/relay/internal/worker"
)

// mockConsumer implements worker.Consumer for testing.
type mockConsumer struct {
	mu       sync.Mutex
	batches  [][]queue.Message
	readErr  error
	acked    []string
	requeued []string
	dlq      []string
	reasons  []string
	tasks    []queue.Message // requeued messages as passed in
}

func (m *mockConsumer) Read(context.Context) ([]queue.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	if len(m.batches) == 0 {
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	}
	batch := m.batches[0]
	m.batches = m.batches[1:]
	return batch, nil
}

func (m *mockConsumer) Ack(_ context.Context, msg queue.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, msg.ID)
	return nil
}

func (m *mockConsumer) Requeue(_ context.Context, msg queue.Message, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requeued = append(m.requeued, msg.ID)
	m.reasons = append(m.reasons, errMsg)
	m.tasks = append(m.tasks, msg)
	return nil
}

func (m *mockConsumer) SendDLQ(_ context.Context, msg queue.Message, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlq = append(m.dlq, msg.ID)
	m.reasons = append(m.reasons, errMsg)
	return nil
}

func (m *mockConsumer) snapshot() (acked, requeued, dlq []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...), append([]string(nil), m.requeued...), append([]string(nil), m.dlq...)
}

// mockEnricher implements worker.Enricher for testing.
type mockEnricher struct {
	runFn     func(ctx context.Context, msg model.IncomingMessage, attempt int) (*model.EnrichmentResult, error)
	deliverFn func(ctx context.Context, msg model.IncomingMessage, analysisID int64) (bool, error)
	calls     atomic.Int32
	delivered atomic.Int32
	inFlight  atomic.Int32
	maxSeen   atomic.Int32
}

func (m *mockEnricher) Run(ctx context.Context, msg model.IncomingMessage, attempt int) (*model.EnrichmentResult, error) {
	m.calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if m.runFn != nil {
		return m.runFn(ctx, msg, attempt)
	}
	return &model.EnrichmentResult{MessageID: msg.ID, AnalysisID: 1}, nil
}

func (m *mockEnricher) DeliverAlert(ctx context.Context, msg model.IncomingMessage, analysisID int64) (bool, error) {
	m.delivered.Add(1)
	if m.deliverFn != nil {
		return m.deliverFn(ctx, msg, analysisID)
	}
	return true, nil
}

func alertTask(streamID, messageID string, analysisID int64, attempt int) queue.Message {
	msg := task(streamID, messageID, attempt)
	msg.TaskType = queue.TaskTypeAlertDispatch
	msg.AnalysisID = analysisID
	return msg
}

func task(streamID, messageID string, attempt int) queue.Message {
	return queue.Message{
		ID:        streamID,
		TaskType:  queue.TaskTypeMessageEnrichment,
		MessageID: messageID,
		Incoming:  model.IncomingMessage{ID: messageID},
		Attempt:   attempt,
	}
}

var _ = Describe("Worker", func() {
	var (
		ctx      context.Context
		consumer *mockConsumer
		enricher *mockEnricher
	)

	BeforeEach(func() {
		ctx = context.Background()
		consumer = &mockConsumer{}
		enricher = &mockEnricher{}
	})

	Describe("Handle", func() {
		It("acks a successfully enriched message", func() {
			w := worker.New(consumer, enricher, worker.Config{MaxAttempts: 3})

			Expect(w.Handle(ctx, task("1-0", "m-1", 1))).To(Succeed())

			acked, requeued, dlq := consumer.snapshot()
			Expect(acked).To(ConsistOf("1-0"))
			Expect(requeued).To(BeEmpty())
			Expect(dlq).To(BeEmpty())
		})

		It("passes the delivery attempt to the pipeline", func() {
			var gotAttempt int
			enricher.runFn = func(_ context.Context, msg model.IncomingMessage, attempt int) (*model.EnrichmentResult, error) {
				gotAttempt = attempt
				return &model.EnrichmentResult{MessageID: msg.ID}, nil
			}
			w := worker.New(consumer, enricher, worker.Config{MaxAttempts: 3})

			Expect(w.Handle(ctx, task("1-0", "m-1", 2))).To(Succeed())
			Expect(gotAttempt).To(Equal(2))
		})

		It("requeues a failure below the attempt limit", func() {
			enricher.runFn = func(context.Context, model.IncomingMessage, int) (*model.EnrichmentResult, error) {
				return nil, errors.New("alert endpoint down")
			}
			w := worker.New(consumer, enricher, worker.Config{MaxAttempts: 3})

			Expect(w.Handle(ctx, task("1-0", "m-1", 1))).NotTo(Succeed())

			acked, requeued, dlq := consumer.snapshot()
			Expect(acked).To(BeEmpty())
			Expect(requeued).To(ConsistOf("1-0"))
			Expect(dlq).To(BeEmpty())
			Expect(consumer.reasons[0]).To(ContainSubstring("alert endpoint down"))
		})

		It("dead-letters at the attempt limit", func() {
			enricher.runFn = func(context.Context, model.IncomingMessage, int) (*model.EnrichmentResult, error) {
				return nil, errors.New("still down")
			}
			w := worker.New(consumer, enricher, worker.Config{MaxAttempts: 3})

			Expect(w.Handle(ctx, task("1-0", "m-1", 3))).NotTo(Succeed())

			_, requeued, dlq := consumer.snapshot()
			Expect(requeued).To(BeEmpty())
			Expect(dlq).To(ConsistOf("1-0"))
		})

		It("turns a stored analysis with a failed alert into an alert task", func() {
			enricher.runFn = func(_ context.Context, msg model.IncomingMessage, _ int) (*model.EnrichmentResult, error) {
				return &model.EnrichmentResult{MessageID: msg.ID, AnalysisID: 77},
					&pipeline.AlertPendingError{AnalysisID: 77, Err: errors.New("sink 503")}
			}
			w := worker.New(consumer, enricher, worker.Config{MaxAttempts: 3})

			Expect(w.Handle(ctx, task("1-0", "m-1", 3))).To(Succeed())

			acked, requeued, dlq := consumer.snapshot()
			Expect(acked).To(BeEmpty())
			Expect(dlq).To(BeEmpty())
			Expect(requeued).To(ConsistOf("1-0"))
			next := consumer.tasks[0]
			Expect(next.TaskType).To(Equal(queue.TaskTypeAlertDispatch))
			Expect(next.AnalysisID).To(Equal(int64(77)))
			Expect(next.Attempt).To(Equal(0))
			Expect(next.Incoming.ID).To(Equal("m-1"))
			Expect(consumer.reasons[0]).To(Equal("sink 503"))
		})

		It("delivers an alert task without running the pipeline", func() {
			var gotID int64
			enricher.deliverFn = func(_ context.Context, _ model.IncomingMessage, analysisID int64) (bool, error) {
				gotID = analysisID
				return true, nil
			}
			w := worker.New(consumer, enricher, worker.Config{MaxAttempts: 3})

			Expect(w.Handle(ctx, alertTask("5-0", "m-1", 77, 1))).To(Succeed())

			acked, requeued, _ := consumer.snapshot()
			Expect(acked).To(ConsistOf("5-0"))
			Expect(requeued).To(BeEmpty())
			Expect(gotID).To(Equal(int64(77)))
			Expect(enricher.calls.Load()).To(BeZero())
		})

		It("requeues a failed alert task as an alert task", func() {
			enricher.deliverFn = func(context.Context, model.IncomingMessage, int64) (bool, error) {
				return false, errors.New("sink 503")
			}
			w := worker.New(consumer, enricher, worker.Config{MaxAttempts: 3})

			Expect(w.Handle(ctx, alertTask("5-0", "m-1", 77, 1))).NotTo(Succeed())

			_, requeued, dlq := consumer.snapshot()
			Expect(requeued).To(ConsistOf("5-0"))
			Expect(dlq).To(BeEmpty())
			Expect(consumer.tasks[0].TaskType).To(Equal(queue.TaskTypeAlertDispatch))
			Expect(consumer.tasks[0].AnalysisID).To(Equal(int64(77)))
			Expect(enricher.calls.Load()).To(BeZero())
		})

		It("dead-letters an alert task at the attempt limit", func() {
			enricher.deliverFn = func(context.Context, model.IncomingMessage, int64) (bool, error) {
				return false, errors.New("sink 503")
			}
			w := worker.New(consumer, enricher, worker.Config{MaxAttempts: 3})

			Expect(w.Handle(ctx, alertTask("5-0", "m-1", 77, 3))).NotTo(Succeed())

			_, requeued, dlq := consumer.snapshot()
			Expect(requeued).To(BeEmpty())
			Expect(dlq).To(ConsistOf("5-0"))
		})

		It("recovers from a panicking pipeline", func() {
			enricher.runFn = func(context.Context, model.IncomingMessage, int) (*model.EnrichmentResult, error) {
				panic("nil map")
			}
			w := worker.New(consumer, enricher, worker.Config{MaxAttempts: 3})

			err := w.Handle(ctx, task("1-0", "m-1", 1))

			Expect(err).To(MatchError(ContainSubstring("panic: nil map")))
			_, requeued, _ := consumer.snapshot()
			Expect(requeued).To(ConsistOf("1-0"))
		})
	})

	Describe("Run", func() {
		It("processes batches in parallel up to the concurrency limit", func() {
			release := make(chan struct{})
			enricher.runFn = func(_ context.Context, msg model.IncomingMessage, _ int) (*model.EnrichmentResult, error) {
				<-release
				return &model.EnrichmentResult{MessageID: msg.ID}, nil
			}
			consumer.batches = [][]queue.Message{{
				task("1-0", "m-1", 1),
				task("2-0", "m-2", 1),
				task("3-0", "m-3", 1),
				task("4-0", "m-4", 1),
			}}
			w := worker.New(consumer, enricher, worker.Config{MaxAttempts: 3, Concurrency: 2})

			done := make(chan error, 1)
			go func() { done <- w.Run(ctx) }()

			Eventually(enricher.inFlight.Load).Should(Equal(int32(2)))
			Consistently(enricher.inFlight.Load, 50*time.Millisecond).Should(Equal(int32(2)))
			close(release)

			Eventually(func() []string {
				acked, _, _ := consumer.snapshot()
				return acked
			}).Should(ConsistOf("1-0", "2-0", "3-0", "4-0"))
			Expect(enricher.maxSeen.Load()).To(Equal(int32(2)))

			w.Stop()
			Eventually(done).Should(Receive(BeNil()))
		})

		It("keeps running after a failed message", func() {
			enricher.runFn = func(_ context.Context, msg model.IncomingMessage, _ int) (*model.EnrichmentResult, error) {
				if msg.ID == "m-bad" {
					return nil, errors.New("boom")
				}
				return &model.EnrichmentResult{MessageID: msg.ID}, nil
			}
			consumer.batches = [][]queue.Message{
				{task("1-0", "m-bad", 1)},
				{task("2-0", "m-good", 1)},
			}
			w := worker.New(consumer, enricher, worker.Config{MaxAttempts: 3, Concurrency: 1})

			go func() { _ = w.Run(ctx) }()

			Eventually(func() []string {
				acked, _, _ := consumer.snapshot()
				return acked
			}).Should(ConsistOf("2-0"))
			_, requeued, _ := consumer.snapshot()
			Expect(requeued).To(ConsistOf("1-0"))

			w.Stop()
		})

		It("returns when the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			w := worker.New(consumer, enricher, worker.Config{})

			done := make(chan error, 1)
			go func() { done <- w.Run(cctx) }()
			cancel()

			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})
	})
})
