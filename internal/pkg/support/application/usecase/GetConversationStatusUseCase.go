package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	cport "github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/cache/port"
	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"
)

type GetConversationStatusInput struct {
	Actor          Actor
	ConversationID string
}

// ConversationStatus is the routing state clients poll for.
type ConversationStatus struct {
	ConversationID     string         `json:"conversationId"`
	Status             support.Status `json:"status"`
	AssignedEmployeeID *string        `json:"assignedEmployeeId"`
}

// cachedStatus keeps the owner next to the status so cache hits can be authorized.
type cachedStatus struct {
	ConversationStatus
	Customer support.CustomerRef `json:"customer"`
}

// GetConversationStatusUseCase serves the status through the read cache. Transitions delete
// the cached entry, so the TTL only bounds staleness after a missed invalidation.
type GetConversationStatusUseCase struct {
	Repo   repository.ConversationRepository
	Cache  cport.Cache
	TTL    time.Duration
	Logger *slog.Logger
}

func NewGetConversationStatusUseCase(repo repository.ConversationRepository, cache cport.Cache, ttl time.Duration, logger *slog.Logger) *GetConversationStatusUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetConversationStatusUseCase{Repo: repo, Cache: cache, TTL: ttl, Logger: logger}
}

func (uc *GetConversationStatusUseCase) Execute(ctx context.Context, in GetConversationStatusInput) (ConversationStatus, error) {
	const op = "GetConversationStatusUseCase.Execute"
	if in.ConversationID == "" {
		return ConversationStatus{}, ErrInvalidInput
	}
	key := statusCacheKey(in.ConversationID)

	if uc.Cache != nil {
		raw, err := uc.Cache.Get(ctx, key)
		switch {
		case err == nil:
			var st cachedStatus
			if jsonErr := json.Unmarshal([]byte(raw), &st); jsonErr == nil {
				return authorizeStatus(in.Actor, st)
			}
		case !errors.Is(err, cport.ErrMiss):
			uc.Logger.With("op", op).Warn("status cache read failed", slog.Any("error", err))
		}
	}

	c, err := uc.Repo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return ConversationStatus{}, repoErr(err)
	}
	st := cachedStatus{
		ConversationStatus: ConversationStatus{
			ConversationID:     c.ID,
			Status:             c.Status,
			AssignedEmployeeID: c.AssignedEmployeeID,
		},
		Customer: c.Customer,
	}
	if uc.Cache != nil {
		if b, err := json.Marshal(st); err == nil {
			if err := uc.Cache.Set(ctx, key, string(b), uc.TTL); err != nil {
				uc.Logger.With("op", op).Warn("status cache write failed", slog.Any("error", err))
			}
		}
	}
	return authorizeStatus(in.Actor, st)
}

func authorizeStatus(a Actor, st cachedStatus) (ConversationStatus, error) {
	if !a.canAccess(support.Conversation{Customer: st.Customer}) {
		return ConversationStatus{}, ErrNotAuthorized
	}
	return st.ConversationStatus, nil
}
