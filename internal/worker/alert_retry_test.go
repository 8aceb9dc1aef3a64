package worker_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"situationcord.app/relay/internal/alert"
	"situationcord.app/relay/internal/model"
	"situationcord.app/relay/internal/pipeline"
	"situationcord.app/relay/internal/queue"
	"situationcord.app/relay/internal/store"
	"situationcord.app/relay/internal/worker"
)

// sequenceAnalyzer returns a critical result first and a medium one after, so
// a second analysis of the same message would be visible.
type sequenceAnalyzer struct {
	mu    sync.Mutex
	calls int
}

func (a *sequenceAnalyzer) Analyze(context.Context, model.IncomingMessage, []model.ThreadContextEntry) model.AnalysisResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.calls == 1 {
		return model.AnalysisResult{
			Sentiment:      model.SentimentUrgent,
			NeedsHelp:      true,
			Summary:        "checkout is failing for every customer",
			SeverityScore:  90,
			SeverityLevel:  model.SeverityLevelCritical,
			SeverityReason: "revenue impact",
		}
	}
	return model.AnalysisResult{Sentiment: model.SentimentNegative, SeverityScore: 55, SeverityLevel: model.SeverityLevelMedium}
}

type noopResolver struct{}

func (noopResolver) Resolve(context.Context, model.IncomingMessage, []model.ThreadContextEntry) model.QAReference {
	return model.NoQAReference()
}

// flakyDispatcher fails its first failures calls.
type flakyDispatcher struct {
	mu        sync.Mutex
	failures  int
	calls     int
	delivered []model.AnalysisResult
}

func (d *flakyDispatcher) Dispatch(_ context.Context, _ model.IncomingMessage, analysis model.AnalysisResult) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.calls <= d.failures {
		return errors.Join(alert.ErrDispatchFailed, errors.New("sink 503"))
	}
	d.delivered = append(d.delivered, analysis)
	return nil
}

type memMessages struct{ keys map[string]int64 }

func (m *memMessages) GetKeyByExternalID(_ context.Context, messageID string) (int64, error) {
	key, ok := m.keys[messageID]
	if !ok {
		return 0, store.ErrNotFound
	}
	return key, nil
}

func (m *memMessages) ListRecentByThread(context.Context, string, int32) ([]model.ThreadContextEntry, error) {
	return nil, nil
}

func (m *memMessages) UpsertAuthor(context.Context, *model.DiscordAuthor) error { return nil }

func (m *memMessages) InsertMessage(context.Context, *model.StoredMessage) (bool, error) {
	return true, nil
}

type memAnalyses struct {
	mu   sync.Mutex
	rows []model.MessageAnalysis
}

func (m *memAnalyses) Create(_ context.Context, a *model.MessageAnalysis) (*model.MessageAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *a)
	return a, nil
}

func (m *memAnalyses) ListByMessage(_ context.Context, key int64) ([]model.MessageAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.MessageAnalysis
	for _, r := range m.rows {
		if r.MessageKey == key {
			out = append(out, r)
		}
	}
	return out, nil
}

type memIgnored struct{}

func (memIgnored) Exists(context.Context, string) (bool, error) { return false, nil }

func (memIgnored) Create(_ context.Context, u *model.IgnoredUser) (*model.IgnoredUser, error) {
	return u, nil
}

func (memIgnored) Delete(context.Context, string) error { return nil }

func (memIgnored) List(context.Context) ([]model.IgnoredUser, error) { return nil, nil }

var _ = Describe("alert retry", func() {
	var (
		ctx        context.Context
		stream     *fakeStream
		analyzer   *sequenceAnalyzer
		dispatcher *flakyDispatcher
		analyses   *memAnalyses
		w          *worker.Worker
		incoming   model.IncomingMessage
	)

	BeforeEach(func() {
		ctx = context.Background()
		stream = newFakeStream()
		analyzer = &sequenceAnalyzer{}
		dispatcher = &flakyDispatcher{failures: 1}
		analyses = &memAnalyses{}

		consumer, err := queue.NewRedisConsumer(stream, queue.ConsumerConfig{
			Stream:    "discord:enrich",
			Group:     "workers",
			Consumer:  "worker-1",
			DLQStream: "discord:enrich:dlq",
		})
		Expect(err).NotTo(HaveOccurred())

		p := pipeline.New(pipeline.Config{AIModel: "gpt-4o-mini"}, pipeline.Deps{
			Analyzer:     analyzer,
			QAResolver:   noopResolver{},
			Dispatcher:   dispatcher,
			Messages:     &memMessages{keys: map[string]int64{"m-900": 9001}},
			Analyses:     analyses,
			IgnoredUsers: memIgnored{},
		})
		w = worker.New(consumer, p, worker.Config{MaxAttempts: 5})

		incoming = model.IncomingMessage{
			ID:        "m-900",
			Content:   "checkout returns 500 for everyone",
			Author:    model.Author{ID: "u-9", Username: "ops"},
			ChannelID: "c-1",
			Timestamp: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		}
	})

	It("retries only the alert when the first dispatch fails", func() {
		first, err := queue.ParseMessage(enrichmentEntry("1-0", incoming, 1))
		Expect(err).NotTo(HaveOccurred())

		Expect(w.Handle(ctx, first)).To(Succeed())

		added, acked := stream.snapshot()
		Expect(added).To(Equal(1))
		Expect(acked).To(ConsistOf("1-0"))
		Expect(analyses.rows).To(HaveLen(1))
		Expect(dispatcher.delivered).To(BeEmpty())

		retry, err := queue.ParseMessage(stream.entry(0, "2-0"))
		Expect(err).NotTo(HaveOccurred())
		Expect(retry.TaskType).To(Equal(queue.TaskTypeAlertDispatch))
		Expect(retry.AnalysisID).To(Equal(analyses.rows[0].ID))
		Expect(retry.Attempt).To(Equal(1))
		Expect(retry.LastError).To(ContainSubstring("sink 503"))

		Expect(w.Handle(ctx, retry)).To(Succeed())

		added, acked = stream.snapshot()
		Expect(added).To(Equal(1))
		Expect(acked).To(ConsistOf("1-0", "2-0"))
		Expect(analyses.rows).To(HaveLen(1))
		Expect(analyzer.calls).To(Equal(1))
		Expect(dispatcher.calls).To(Equal(2))
		Expect(dispatcher.delivered).To(HaveLen(1))
		Expect(dispatcher.delivered[0].SeverityLevel).To(Equal(model.SeverityLevelCritical))
		Expect(dispatcher.delivered[0].SeverityScore).To(Equal(90.0))
		Expect(dispatcher.delivered[0].ModelVersion).To(Equal("gpt-4o-mini"))
	})

	It("keeps retrying the alert alone until it is dead-lettered", func() {
		dispatcher.failures = 100
		first, err := queue.ParseMessage(enrichmentEntry("1-0", incoming, 5))
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Handle(ctx, first)).To(Succeed())

		for i := 0; i < 5; i++ {
			next, err := queue.ParseMessage(stream.entry(i, "r-"+string(rune('a'+i))))
			Expect(err).NotTo(HaveOccurred())
			Expect(next.TaskType).To(Equal(queue.TaskTypeAlertDispatch))
			Expect(w.Handle(ctx, next)).NotTo(Succeed())
		}

		Expect(analyzer.calls).To(Equal(1))
		Expect(analyses.rows).To(HaveLen(1))
		Expect(dispatcher.calls).To(Equal(6))
		Expect(stream.added[5].Stream).To(Equal("discord:enrich:dlq"))
		dlq := stream.added[5].Values.(map[string]any)
		Expect(dlq["task_type"]).To(Equal("alert_dispatch"))
		Expect(dlq["analysis_id"]).To(Equal(analyses.rows[0].ID))
	})
})
