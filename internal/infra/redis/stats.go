package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/wacloud/internal/core/domain"
	"github.com/vietddude/wacloud/internal/infra/rpc/dispatch"
)

const (
	defaultQueueSize   = 1024
	defaultMaxFailures = 100
	writeTimeout       = 2 * time.Second
)

// statsEvent is one counter update, built on the caller's goroutine and
// written by the recorder's worker.
type statsEvent struct {
	at     time.Time
	fields []string
	op     string
	failed *domain.FailedSend
}

// StatsRecorder aggregates dispatch outcomes in Redis so several processes
// sharing one phone number can see combined traffic. It implements
// dispatch.Observer and never blocks the sender: events are dropped when
// the queue is full.
type StatsRecorder struct {
	client      *Client
	maxFailures int64
	log         *slog.Logger
	now         func() time.Time

	mu      sync.RWMutex
	closed  bool
	events  chan statsEvent
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

// NewStatsRecorder starts a recorder writing through client.
func NewStatsRecorder(client *Client) *StatsRecorder {
	s := &StatsRecorder{
		client:      client,
		maxFailures: defaultMaxFailures,
		log:         slog.Default().With("component", "redis-stats"),
		now:         time.Now,
		events:      make(chan statsEvent, defaultQueueSize),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

var _ dispatch.Observer = (*StatsRecorder)(nil)

// OnAttempt counts one round trip by reason.
func (s *StatsRecorder) OnAttempt(a dispatch.Attempt) {
	fields := []string{"attempts", "attempt:" + a.Reason}
	if a.Throttled {
		fields = append(fields, "throttled")
	}
	if a.AdmissionWait > 0 {
		fields = append(fields, "admission_delayed")
	}
	s.enqueue(statsEvent{at: s.now(), fields: fields})
}

// OnResult counts a finished send and keeps a capped list of failures.
func (s *StatsRecorder) OnResult(r dispatch.Result) {
	ev := statsEvent{at: s.now(), op: r.Op}
	if r.Err == nil {
		ev.fields = []string{"sent"}
	} else {
		ev.fields = []string{"failed", "failed:" + r.Kind.String()}
		ev.failed = &domain.FailedSend{
			RequestID:  r.RequestID,
			Op:         r.Op,
			Kind:       r.Kind.String(),
			StatusCode: r.StatusCode,
			Attempts:   r.Attempts,
			Error:      r.Err.Error(),
			FailedAt:   ev.at.Unix(),
		}
	}
	s.enqueue(ev)
}

func (s *StatsRecorder) enqueue(ev statsEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
}

func (s *StatsRecorder) loop() {
	defer s.wg.Done()
	for ev := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := s.record(ctx, ev); err != nil {
			s.log.Warn("Failed to record dispatch stats", "error", err)
		}
		cancel()
	}
}

func (s *StatsRecorder) record(ctx context.Context, ev statsEvent) error {
	c := s.client
	pipe := c.rdb.Pipeline()

	bucketKey := c.minuteKey(ev.at)
	for _, f := range ev.fields {
		pipe.HIncrBy(ctx, c.totalKey(), f, 1)
		pipe.HIncrBy(ctx, bucketKey, f, 1)
	}
	pipe.Expire(ctx, bucketKey, c.ttl)

	if ev.op != "" && len(ev.fields) > 0 {
		pipe.HIncrBy(ctx, c.opKey(), ev.op+":"+ev.fields[0], 1)
	}

	if ev.failed != nil {
		data, err := json.Marshal(ev.failed)
		if err != nil {
			return fmt.Errorf("failed to marshal failed send: %w", err)
		}
		pipe.LPush(ctx, c.failuresKey(), data)
		pipe.LTrim(ctx, c.failuresKey(), 0, s.maxFailures-1)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Dropped returns how many events were discarded because the queue was full.
func (s *StatsRecorder) Dropped() uint64 { return s.dropped.Load() }

// Close stops accepting events and flushes the queue.
func (s *StatsRecorder) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// Minute returns the counters of the minute containing at.
func (s *StatsRecorder) Minute(ctx context.Context, at time.Time) (map[string]int64, error) {
	return s.readHash(ctx, s.client.minuteKey(at))
}

// Totals returns the cumulative counters.
func (s *StatsRecorder) Totals(ctx context.Context) (map[string]int64, error) {
	return s.readHash(ctx, s.client.totalKey())
}

func (s *StatsRecorder) readHash(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := s.client.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall failed: %w", err)
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid counter %s=%q: %w", k, v, err)
		}
		out[k] = n
	}
	return out, nil
}

// RecentFailures returns up to n of the newest failed sends.
func (s *StatsRecorder) RecentFailures(ctx context.Context, n int64) ([]domain.FailedSend, error) {
	if n <= 0 {
		return nil, nil
	}
	items, err := s.client.rdb.LRange(ctx, s.client.failuresKey(), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange failed: %w", err)
	}
	out := make([]domain.FailedSend, 0, len(items))
	for _, item := range items {
		var fs domain.FailedSend
		if err := json.Unmarshal([]byte(item), &fs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal failed send: %w", err)
		}
		out = append(out, fs)
	}
	return out, nil
}
