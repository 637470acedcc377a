package task

import (
	"context"
	"strings"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
)

// Reply is what the assistant wants to say next. Escalate queues the conversation for a human
// after the reply is stored.
type Reply struct {
	Content  string
	Escalate bool
}

// Assistant produces replies for AI-handled conversations. History is newest first.
type Assistant interface {
	Reply(ctx context.Context, c support.Conversation, history []support.Message) (Reply, error)
}

var handoffKeywords = []string{"human", "employee", "operator", "agent", "staff", "person"}

// RuleAssistant greets new customers and hands off when asked for a person.
// Real reply generation lives outside this service.
type RuleAssistant struct{}

func (RuleAssistant) Reply(_ context.Context, _ support.Conversation, history []support.Message) (Reply, error) {
	var latest *support.Message
	for i := range history {
		if history[i].SenderRole == support.RoleCustomer {
			latest = &history[i]
			break
		}
	}
	if latest == nil {
		return Reply{}, nil
	}

	text := strings.ToLower(latest.Content)
	for _, kw := range handoffKeywords {
		if strings.Contains(text, kw) {
			return Reply{Content: "I'll connect you with one of our team members, please hold on.", Escalate: true}, nil
		}
	}

	assistantSpoke := false
	for _, m := range history {
		if m.SenderRole == support.RoleAI {
			assistantSpoke = true
			break
		}
	}
	if !assistantSpoke {
		return Reply{Content: "Hi! I'm the Green Kitchen assistant. Ask me about menus, orders or delivery, or type \"human\" to talk to our staff."}, nil
	}
	return Reply{Content: "Thanks, noted. If you'd rather talk to a person, just type \"human\"."}, nil
}
