package client

import (
	"context"
	"fmt"
	"log/slog"
)

// Identity is the conversation a widget operates on.
type Identity struct {
	ConversationID string
	CustomerID     string // empty for guests
}

func (i Identity) Guest() bool { return i.CustomerID == "" }

// IdentityResolver decides which conversation the current client uses.
//
// Guests reuse the locally stored token; without one a conversation is minted (one retry)
// and the token is persisted before Resolve returns, so message traffic never starts on an
// id that would be lost. Authenticated customers use their most recent conversation and the
// guest token is cleared; a failure never falls back to the guest id.
type IdentityResolver struct {
	api    API
	tokens TokenStore
	logger *slog.Logger
}

func NewIdentityResolver(api API, tokens TokenStore, logger *slog.Logger) *IdentityResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityResolver{api: api, tokens: tokens, logger: logger}
}

// Resolve returns the identity for customerID, or for a guest when customerID is empty.
// Every failure wraps ErrIdentityUnresolved.
func (r *IdentityResolver) Resolve(ctx context.Context, customerID string) (Identity, error) {
	if customerID != "" {
		return r.resolveCustomer(ctx, customerID)
	}
	return r.resolveGuest(ctx)
}

func (r *IdentityResolver) resolveGuest(ctx context.Context) (Identity, error) {
	const op = "IdentityResolver.resolveGuest"
	if token, err := r.tokens.Load(); err != nil {
		r.logger.With("op", op).Warn("guest token unreadable", slog.Any("error", err))
	} else if token != "" {
		return Identity{ConversationID: token}, nil
	}

	id, err := r.initWithRetry(ctx)
	if err != nil {
		return Identity{}, err
	}
	if err := r.tokens.Save(id); err != nil {
		return Identity{}, fmt.Errorf("%w: persist guest token: %v", ErrIdentityUnresolved, err)
	}
	return Identity{ConversationID: id}, nil
}

func (r *IdentityResolver) resolveCustomer(ctx context.Context, customerID string) (Identity, error) {
	const op = "IdentityResolver.resolveCustomer"
	ids, err := r.api.GetConversations(ctx, customerID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrIdentityUnresolved, err)
	}
	var id string
	if len(ids) > 0 {
		id = ids[0]
	} else if id, err = r.initWithRetry(ctx); err != nil {
		return Identity{}, err
	}
	if err := r.tokens.Clear(); err != nil {
		// a stale guest token can only be reused by a later guest session; the resolved id is still right
		r.logger.With("op", op).Warn("guest token not cleared", slog.Any("error", err))
	}
	return Identity{ConversationID: id, CustomerID: customerID}, nil
}

func (r *IdentityResolver) initWithRetry(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		id, err := r.api.InitConversation(ctx)
		if err == nil && id != "" {
			return id, nil
		}
		if err == nil {
			err = fmt.Errorf("empty conversation id")
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%w: init conversation: %v", ErrIdentityUnresolved, lastErr)
}
