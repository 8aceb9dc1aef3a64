package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"situationcord.app/relay/common/logger"
	"situationcord.app/relay/internal/pipeline"
	"situationcord.app/relay/internal/queue"
)

type Config struct {
	MaxAttempts int
	Concurrency int // Messages processed in parallel per batch
}

type Worker struct {
	consumer Consumer
	enricher Enricher
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, enricher Enricher, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Worker{
		consumer:  consumer,
		enricher:  enricher,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "relay.worker"})
	slog.InfoContext(ctx, "worker started",
		"concurrency", w.cfg.Concurrency,
		"max_attempts", w.cfg.MaxAttempts)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

// processOneBatch runs the batch with bounded parallelism. Messages in a batch
// are independent, so one failure never cancels the others.
func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	for _, msg := range messages {
		g.Go(func() error {
			_ = w.Handle(ctx, msg)
			return nil
		})
	}
	return g.Wait()
}

// Handle processes msg and settles it on the stream: ack on success, requeue
// on failure, dead-letter once MaxAttempts is reached. It is shared with the
// reclaimer.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	err := w.processMessageSafe(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "message processing failed",
			"error", err,
			"stream_message_id", msg.ID,
			"message_id", msg.MessageID)
		w.handleFailedMessage(ctx, msg, err)
	}
	return err
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"stream_message_id", msg.ID,
				"message_id", msg.MessageID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage runs msg and acks it on success. Failures are returned
// unacknowledged. An enrichment task runs the pipeline from its first step;
// an alert task only delivers the alert of its stored analysis.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	streamID := msg.ID
	attempt := msg.Attempt
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID:       &msg.MessageID,
		StreamMessageID: &streamID,
		Attempt:         &attempt,
	})

	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_message")
	defer sc.End()
	ctx = sc.Context()

	slog.InfoContext(ctx, "processing message",
		"task_type", msg.TaskType,
		"attempt", msg.Attempt,
		"last_error", msg.LastError)

	if msg.TaskType == queue.TaskTypeAlertDispatch {
		if err := w.processAlert(ctx, msg); err != nil {
			sc.RecordError(err)
			return err
		}
		return nil
	}

	start := time.Now()
	result, err := w.enricher.Run(ctx, msg.Incoming, msg.Attempt)
	var pending *pipeline.AlertPendingError
	if errors.As(err, &pending) {
		sc.RecordError(err)
		w.scheduleAlert(ctx, msg, pending)
		return nil
	}
	if err != nil {
		sc.RecordError(err)
		return fmt.Errorf("enrichment: %w", err)
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// Log but don't fail - the reclaimer may run it again, which only adds a record
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}

	slog.InfoContext(ctx, "message processed",
		"analysis_id", result.AnalysisID,
		"alerted", result.Alerted,
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

// scheduleAlert replaces the enrichment task with an alert task for the stored
// analysis, so a retry never analyzes or stores the message again. The alert
// task keeps its own attempt count.
func (w *Worker) scheduleAlert(ctx context.Context, msg queue.Message, pending *pipeline.AlertPendingError) {
	alertTask := msg
	alertTask.TaskType = queue.TaskTypeAlertDispatch
	alertTask.AnalysisID = pending.AnalysisID
	alertTask.Attempt = 0

	slog.WarnContext(ctx, "alert failed after analysis was stored, scheduling alert retry",
		"analysis_id", pending.AnalysisID,
		"error", pending.Err)
	if err := w.consumer.Requeue(ctx, alertTask, pending.Err.Error()); err != nil {
		// The original stays pending; the reclaimer will pick it up again.
		slog.ErrorContext(ctx, "failed to schedule alert retry", "error", err)
	}
}

func (w *Worker) processAlert(ctx context.Context, msg queue.Message) error {
	analysisID := msg.AnalysisID
	ctx = logger.WithLogFields(ctx, logger.LogFields{AnalysisID: &analysisID})

	alerted, err := w.enricher.DeliverAlert(ctx, msg.Incoming, msg.AnalysisID)
	if err != nil {
		return fmt.Errorf("alert delivery: %w", err)
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		slog.WarnContext(ctx, "failed to ACK alert task", "error", err)
	}

	slog.InfoContext(ctx, "alert task processed", "alerted", alerted)
	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"stream_message_id", msg.ID,
			"message_id", msg.MessageID,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"stream_message_id", msg.ID,
		"message_id", msg.MessageID,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
