package client

import (
	"context"
	"log/slog"
	"sync"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
)

// Fanout listens on the shared employee topic. Every notice invalidates the directory as a
// whole; notices carrying a status also feed the status machine, and the open conversation
// is revalidated when it is the one named.
type Fanout struct {
	push   Push
	dir    *Directory
	status *StatusMachine
	syncer *Synchronizer
	logger *slog.Logger

	mu     sync.Mutex
	sub    Subscription
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewFanout(push Push, dir *Directory, status *StatusMachine, syncer *Synchronizer, logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{push: push, dir: dir, status: status, syncer: syncer, logger: logger}
}

// Start subscribes to the employee topic. Calling it twice is a no-op.
func (f *Fanout) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sub != nil || f.push == nil {
		return nil
	}
	f.ctx, f.cancel = context.WithCancel(context.Background())
	sub, err := f.push.Subscribe(support.EmployeeTopic, f.handle)
	if err != nil {
		f.cancel()
		return err
	}
	f.sub = sub
	return nil
}

// Stop drops the subscription and waits for refreshes it started.
func (f *Fanout) Stop() {
	f.mu.Lock()
	sub, cancel := f.sub, f.cancel
	f.sub, f.cancel = nil, nil
	f.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	f.wg.Wait()
}

func (f *Fanout) handle(payload []byte) {
	const op = "Fanout.handle"
	n, err := support.ParseNotice(payload)
	if err != nil {
		f.logger.With("op", op).Debug("ignoring notification", slog.Any("error", err))
		return
	}
	if n.Status != "" && f.status != nil {
		f.status.Observe(n.ConversationID, ConversationStatus{Status: n.Status, AssignedEmployeeID: n.AssignedEmployeeID})
	}

	f.mu.Lock()
	ctx := f.ctx
	if ctx == nil || ctx.Err() != nil {
		f.mu.Unlock()
		return
	}
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		if err := f.dir.Refresh(ctx); err != nil {
			f.logger.With("op", op).Warn("refresh after notification failed",
				slog.String("conversation_id", n.ConversationID), slog.Any("error", err))
		}
		if f.syncer != nil && f.syncer.ConversationID() == n.ConversationID {
			_ = f.syncer.Revalidate(ctx)
		}
	}()
}
