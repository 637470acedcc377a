package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
	"github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/client"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeConversations prints convs grouped by the calendar date of their last message.
func writeConversations(w io.Writer, convs []support.Conversation, asJSON bool) error {
	if asJSON {
		return writeJSON(w, convs)
	}
	if len(convs) == 0 {
		_, err := fmt.Fprintln(w, "no conversations")
		return err
	}
	for _, g := range client.GroupByDate(convs, time.Local) {
		fmt.Fprintf(w, "%s\n", g.Label())
		for _, c := range g.Conversations {
			fmt.Fprintf(w, "  %-36s  %-11s  %-16s  %s\n", c.ID, statusLabel(c), customerLabel(c), preview(c))
		}
	}
	return nil
}

func statusLabel(c support.Conversation) string {
	if c.Status == support.StatusEmp {
		return "EMP:" + c.Assignee()
	}
	return string(c.Status)
}

func customerLabel(c support.Conversation) string {
	name := c.CustomerName
	if name == "" {
		name = "guest"
		if c.Customer.CustomerID != "" {
			name = c.Customer.CustomerID
		}
	}
	if c.UnreadCount > 0 {
		name = fmt.Sprintf("%s (%d)", name, c.UnreadCount)
	}
	return name
}

func preview(c support.Conversation) string {
	if c.LastMessageAt == nil {
		return c.LastMessagePreview
	}
	return c.LastMessageAt.Local().Format("15:04") + " " + c.LastMessagePreview
}

func writeEntry(w io.Writer, e client.Entry) {
	who := string(e.SenderRole)
	if e.EmployeeID != nil {
		who += ":" + *e.EmployeeID
	}
	mark := ""
	if e.Pending {
		mark = " (sending)"
	}
	ts := e.CreatedAt.Local().Format("15:04:05")
	fmt.Fprintf(w, "[%s] %-12s %s%s\n", ts, who, strings.ReplaceAll(e.Content, "\n", "\n    "), mark)
}

// printer writes entries it has not written before, keyed by message id.
type printer struct {
	w       io.Writer
	asJSON  bool
	printed map[int64]struct{}
}

func newPrinter(w io.Writer, asJSON bool) *printer {
	return &printer{w: w, asJSON: asJSON, printed: make(map[int64]struct{})}
}

func (p *printer) flush(entries []client.Entry) {
	for _, e := range entries {
		if e.Pending || e.ID == 0 {
			continue
		}
		if _, ok := p.printed[e.ID]; ok {
			continue
		}
		p.printed[e.ID] = struct{}{}
		if p.asJSON {
			_ = json.NewEncoder(p.w).Encode(e.Message)
			continue
		}
		writeEntry(p.w, e)
	}
}
