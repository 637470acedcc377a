package adapter

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/queue/port"
)

// InlineQueue runs tasks in-process on a goroutine. It is the fallback when REDIS_URL is not
// configured: it satisfies both port.Client and port.Server, retries nothing and drops tasks
// enqueued after Stop.
type InlineQueue struct {
	mu       sync.RWMutex
	handlers map[string]port.Handler
	wg       sync.WaitGroup
	seq      atomic.Int64
	stopped  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
}

func NewInlineQueue(logger *slog.Logger) *InlineQueue {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &InlineQueue{handlers: make(map[string]port.Handler), ctx: ctx, cancel: cancel, logger: logger}
}

var (
	_ port.Client = (*InlineQueue)(nil)
	_ port.Server = (*InlineQueue)(nil)
)

func (q *InlineQueue) Register(taskType string, h port.Handler) {
	q.mu.Lock()
	q.handlers[taskType] = h
	q.mu.Unlock()
}

func (q *InlineQueue) Enqueue(_ context.Context, t port.Task, opts ...port.EnqueueOption) (string, error) {
	if q.stopped.Load() {
		return "", errors.New("inline queue: stopped")
	}
	q.mu.RLock()
	h, ok := q.handlers[t.Type]
	q.mu.RUnlock()
	if !ok {
		return "", errors.New("inline queue: no handler for " + t.Type)
	}
	id := strconv.FormatInt(q.seq.Add(1), 10)
	q.wg.Add(1)
	delay := inlineDelay(opts)
	go func() {
		defer q.wg.Done()
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-q.ctx.Done():
				return
			case <-timer.C:
			}
		}
		if err := h(q.ctx, t); err != nil {
			q.logger.With("op", "InlineQueue.Enqueue").Error("task failed",
				slog.String("type", t.Type), slog.String("id", id), slog.Any("error", err))
		}
	}()
	return id, nil
}

func (q *InlineQueue) Run(ctx context.Context) error {
	<-ctx.Done()
	return q.Stop(context.Background())
}

// Stop cancels running tasks and waits for them to return.
func (q *InlineQueue) Stop(context.Context) error {
	q.stopped.Store(true)
	q.cancel()
	q.wg.Wait()
	return nil
}

// Wait blocks until every enqueued task finished.
func (q *InlineQueue) Wait() { q.wg.Wait() }

func (q *InlineQueue) Close() error { return nil }

func inlineDelay(opts []port.EnqueueOption) time.Duration {
	var d time.Duration
	for _, o := range opts {
		if !o.ProcessAt.IsZero() {
			d = time.Until(o.ProcessAt)
		} else if o.ProcessIn > 0 {
			d = o.ProcessIn
		}
	}
	return d
}
