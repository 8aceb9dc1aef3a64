package worker_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"situationcord.app/relay/internal/model"
	"situationcord.app/relay/internal/queue"
	"situationcord.app/relay/internal/worker"
)

var _ = Describe("RedisReclaimer", func() {
	var (
		ctx      context.Context
		stream   *fakeStream
		consumer *queue.RedisConsumer
		mu       sync.Mutex
		handled  []queue.Message
		cfg      worker.RedisReclaimerConfig
	)

	processed := func() []queue.Message {
		mu.Lock()
		defer mu.Unlock()
		return append([]queue.Message(nil), handled...)
	}

	record := func(_ context.Context, msg queue.Message) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, msg)
		return nil
	}

	BeforeEach(func() {
		ctx = context.Background()
		stream = newFakeStream()
		handled = nil

		var err error
		consumer, err = queue.NewRedisConsumer(stream, queue.ConsumerConfig{
			Stream:    "discord:enrich",
			Group:     "workers",
			Consumer:  "worker-1",
			DLQStream: "discord:enrich:dlq",
		})
		Expect(err).NotTo(HaveOccurred())

		cfg = worker.RedisReclaimerConfig{
			Stream:   "discord:enrich",
			Group:    "workers",
			Consumer: "worker-1-reclaimer",
			MinIdle:  time.Minute,
			Interval: 5 * time.Millisecond,
		}
	})

	run := func(r *worker.RedisReclaimer) {
		go r.Run(ctx)
		DeferCleanup(r.Stop)
	}

	It("claims a stale entry and hands the parsed task to the processor", func() {
		stream.stale(enrichmentEntry("7-0", model.IncomingMessage{ID: "m-7", Content: "login loop"}, 2))
		run(worker.NewRedisReclaimer(stream, cfg, consumer, record))

		Eventually(processed).Should(HaveLen(1))
		msg := processed()[0]
		Expect(msg.ID).To(Equal("7-0"))
		Expect(msg.MessageID).To(Equal("m-7"))
		Expect(msg.Attempt).To(Equal(2))
		Expect(msg.Incoming.Content).To(Equal("login loop"))
		Consistently(processed, 30*time.Millisecond).Should(HaveLen(1))
	})

	It("acks an unparseable entry instead of processing it", func() {
		stream.stale(redis.XMessage{ID: "8-0", Values: map[string]any{"payload": "{broken"}})
		run(worker.NewRedisReclaimer(stream, cfg, consumer, record))

		Eventually(func() []string {
			_, acked := stream.snapshot()
			return acked
		}).Should(ConsistOf("8-0"))
		Expect(processed()).To(BeEmpty())
	})

	It("skips an entry another worker claimed first", func() {
		stream.pending = []redis.XPendingExt{{ID: "9-0", Consumer: "dead-worker"}}
		run(worker.NewRedisReclaimer(stream, cfg, consumer, record))

		Eventually(func() int {
			stream.mu.Lock()
			defer stream.mu.Unlock()
			return stream.claims
		}).Should(Equal(1))
		Consistently(processed, 30*time.Millisecond).Should(BeEmpty())
	})

	It("keeps running after a failed pending scan", func() {
		stream.pendingErr = errors.New("LOADING Redis is loading the dataset")
		run(worker.NewRedisReclaimer(stream, cfg, consumer, record))

		Consistently(processed, 20*time.Millisecond).Should(BeEmpty())

		stream.mu.Lock()
		stream.pendingErr = nil
		stream.mu.Unlock()
		stream.stale(enrichmentEntry("10-0", model.IncomingMessage{ID: "m-10"}, 1))

		Eventually(processed).Should(HaveLen(1))
	})

	It("settles a reclaimed alert task through the worker", func() {
		enricher := &mockEnricher{}
		w := worker.New(consumer, enricher, worker.Config{MaxAttempts: 3})
		entry := enrichmentEntry("11-0", model.IncomingMessage{ID: "m-11"}, 1)
		entry.Values["task_type"] = "alert_dispatch"
		entry.Values["analysis_id"] = "4242"
		stream.stale(entry)
		run(worker.NewRedisReclaimer(stream, cfg, consumer, w.Handle))

		Eventually(func() []string {
			_, acked := stream.snapshot()
			return acked
		}).Should(ConsistOf("11-0"))
		Expect(enricher.delivered.Load()).To(Equal(int32(1)))
		Expect(enricher.calls.Load()).To(BeZero())
	})
})
