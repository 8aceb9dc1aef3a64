package worker_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"situationcord.app/relay/internal/model"
)

// fakeStream stands in for Redis in worker tests. It serves the consumer and
// the reclaimer and records every XADD and XACK.
type fakeStream struct {
	mu         sync.Mutex
	added      []redis.XAddArgs
	acked      []string
	pending    []redis.XPendingExt
	claimable  map[string]redis.XMessage
	pendingErr error
	claims     int
}

func newFakeStream() *fakeStream {
	return &fakeStream{claimable: map[string]redis.XMessage{}}
}

func (f *fakeStream) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeStream) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	cmd := redis.NewXStreamSliceCmd(ctx)
	cmd.SetErr(redis.Nil)
	return cmd
}

func (f *fakeStream) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(ids)))
	return cmd
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, *a)
	cmd := redis.NewStringCmd(ctx)
	cmd.SetVal(fmt.Sprintf("%d-0", len(f.added)+100))
	return cmd
}

// XPendingExt hands out the queued pending entries once.
func (f *fakeStream) XPendingExt(ctx context.Context, a *redis.XPendingExtArgs) *redis.XPendingExtCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewXPendingExtCmd(ctx)
	if f.pendingErr != nil {
		cmd.SetErr(f.pendingErr)
		return cmd
	}
	cmd.SetVal(f.pending)
	f.pending = nil
	return cmd
}

func (f *fakeStream) XClaim(ctx context.Context, a *redis.XClaimArgs) *redis.XMessageSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims++
	var out []redis.XMessage
	for _, id := range a.Messages {
		if msg, ok := f.claimable[id]; ok {
			out = append(out, msg)
			delete(f.claimable, id)
		}
	}
	cmd := redis.NewXMessageSliceCmd(ctx)
	cmd.SetVal(out)
	return cmd
}

// stale registers an entry as pending on a dead consumer and claimable.
func (f *fakeStream) stale(msg redis.XMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, redis.XPendingExt{ID: msg.ID, Consumer: "dead-worker", RetryCount: 1})
	f.claimable[msg.ID] = msg
}

// entry returns the i-th appended entry as Redis would deliver it.
func (f *fakeStream) entry(i int, streamID string) redis.XMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := map[string]any{}
	for k, v := range f.added[i].Values.(map[string]any) {
		values[k] = fmt.Sprint(v)
	}
	return redis.XMessage{ID: streamID, Values: values}
}

func (f *fakeStream) snapshot() (added int, acked []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.added), append([]string(nil), f.acked...)
}

func enrichmentEntry(streamID string, msg model.IncomingMessage, attempt int) redis.XMessage {
	payload, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}
	return redis.XMessage{ID: streamID, Values: map[string]any{
		"task_type":  "message_enrichment",
		"message_id": msg.ID,
		"payload":    string(payload),
		"attempt":    fmt.Sprint(attempt),
	}}
}
