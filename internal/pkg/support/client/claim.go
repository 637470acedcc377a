package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
)

// ClaimCoordinator hands conversations between the queue and this employee. Every
// mutation is applied to the directory first and restored before returning on failure.
type ClaimCoordinator struct {
	api    API
	dir    *Directory
	status *StatusMachine
	syncer *Synchronizer
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewClaimCoordinator(api API, dir *Directory, status *StatusMachine, syncer *Synchronizer, logger *slog.Logger) *ClaimCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaimCoordinator{
		api:      api,
		dir:      dir,
		status:   status,
		syncer:   syncer,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// InFlight reports whether a claim or release for id is pending.
func (c *ClaimCoordinator) InFlight(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[id]
	return ok
}

// Claim takes id for this employee. A conflict yields ErrAlreadyClaimed, anything else
// ErrClaimFailed; both leave the directory as it was before the attempt, then refresh it
// on conflict.
func (c *ClaimCoordinator) Claim(ctx context.Context, id string) error {
	const op = "ClaimCoordinator.Claim"
	if !c.begin(id) {
		return ErrBusy
	}
	defer c.end(id)

	self := c.dir.EmployeeID()
	err := c.dir.routeMutation(id, support.StatusEmp, self).Run(func() error {
		return c.api.ClaimConversation(ctx, id, self)
	})
	switch {
	case errors.Is(err, ErrConflict):
		c.refresh(ctx, op)
		return ErrAlreadyClaimed
	case err != nil:
		return fmt.Errorf("%w: %v", ErrClaimFailed, err)
	}

	c.status.Observe(id, ConversationStatus{Status: support.StatusEmp, AssignedEmployeeID: &self})
	c.refresh(ctx, op)
	return nil
}

// Release returns id to the assistant.
func (c *ClaimCoordinator) Release(ctx context.Context, id string) error {
	return c.ReleaseTo(ctx, id, support.StatusAI)
}

// Requeue puts id back in the queue for another employee.
func (c *ClaimCoordinator) Requeue(ctx context.Context, id string) error {
	return c.ReleaseTo(ctx, id, support.StatusWaitingEmp)
}

// ReleaseTo moves id out of this employee's conversations. On success the open message
// view for id is reset, since the next owner may be someone else.
func (c *ClaimCoordinator) ReleaseTo(ctx context.Context, id string, to support.Status) error {
	const op = "ClaimCoordinator.ReleaseTo"
	target, err := support.ReleaseTarget(to)
	if err != nil {
		return err
	}
	if !c.begin(id) {
		return ErrBusy
	}
	defer c.end(id)

	err = c.dir.routeMutation(id, target, "").Run(func() error {
		return c.api.ReleaseConversation(ctx, id, target)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReleaseFailed, err)
	}

	if c.syncer != nil && c.syncer.ConversationID() == id {
		c.syncer.Reset()
	}
	c.status.Observe(id, ConversationStatus{Status: target})
	c.refresh(ctx, op)
	return nil
}

func (c *ClaimCoordinator) refresh(ctx context.Context, op string) {
	if err := c.dir.Refresh(ctx); err != nil {
		c.logger.With("op", op).Warn("directory not reconciled", slog.Any("error", err))
	}
}

func (c *ClaimCoordinator) begin(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[id]; busy {
		return false
	}
	c.inflight[id] = struct{}{}
	return true
}

func (c *ClaimCoordinator) end(id string) {
	c.mu.Lock()
	delete(c.inflight, id)
	c.mu.Unlock()
}
