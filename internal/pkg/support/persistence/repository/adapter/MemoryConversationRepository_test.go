package adapter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, repo *MemoryConversationRepository, id string, status support.Status) {
	t.Helper()
	_, err := repo.CreateConversation(context.Background(), support.Conversation{
		ID: id, Status: status, Customer: support.CustomerRef{GuestToken: id},
	})
	require.NoError(t, err)
}

func TestMemoryRepository_ConcurrentClaimHasSingleWinner(t *testing.T) {
	repo := NewMemoryConversationRepository()
	seed(t, repo, "42", support.StatusWaitingEmp)

	var wins, conflicts int32
	var wg sync.WaitGroup
	for _, emp := range []string{"emp-1", "emp-2", "emp-3", "emp-4"} {
		wg.Add(1)
		go func(emp string) {
			defer wg.Done()
			_, err := repo.ClaimConversation(context.Background(), "42", emp)
			if err == nil {
				atomic.AddInt32(&wins, 1)
			} else if assert.ErrorIs(t, err, repository.ErrConflict) {
				atomic.AddInt32(&conflicts, 1)
			}
		}(emp)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(3), conflicts)
	c, err := repo.GetConversation(context.Background(), "42")
	require.NoError(t, err)
	assert.NoError(t, c.Validate())
}

func TestMemoryRepository_SaveMessageHonoursWriters(t *testing.T) {
	repo := NewMemoryConversationRepository()
	seed(t, repo, "c1", support.StatusWaitingEmp)
	ctx := context.Background()

	_, err := repo.SaveMessage(ctx, support.Message{ConversationID: "c1", SenderRole: support.RoleAI, Content: "x"})
	assert.ErrorIs(t, err, repository.ErrWriteRejected)

	m, err := repo.SaveMessage(ctx, support.Message{ConversationID: "c1", SenderRole: support.RoleCustomer, Content: "help"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.ID)

	c, err := repo.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.UnreadCount)
	assert.Equal(t, "help", c.LastMessagePreview)
}

func TestMemoryRepository_Paging(t *testing.T) {
	repo := NewMemoryConversationRepository()
	seed(t, repo, "c1", support.StatusAI)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := repo.SaveMessage(ctx, support.Message{ConversationID: "c1", SenderRole: support.RoleCustomer, Content: "m", CreatedAt: time.Now()})
		require.NoError(t, err)
	}

	page, last, err := repo.GetMessagesPage(ctx, "c1", 0, 2)
	require.NoError(t, err)
	assert.False(t, last)
	assert.Equal(t, []int64{5, 4}, ids(page))

	page, last, err = repo.GetMessagesPage(ctx, "c1", 4, 3)
	require.NoError(t, err)
	assert.True(t, last)
	assert.Equal(t, []int64{3, 2, 1}, ids(page))
}

func ids(msgs []support.Message) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
