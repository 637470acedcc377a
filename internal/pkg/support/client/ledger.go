package client

import (
	"time"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
)

// ledger remembers messages this client sent so that a server echo carrying a different id
// is not displayed twice. Entries expire after ttl.
type ledger struct {
	ttl     time.Duration
	entries map[string]ledgerEntry
}

type ledgerEntry struct {
	at time.Time
	id int64 // server id once confirmed
}

func newLedger(ttl time.Duration) *ledger {
	return &ledger{ttl: ttl, entries: make(map[string]ledgerEntry)}
}

func contentKey(role support.SenderRole, content string) string {
	return string(role) + "\x00" + content
}

func (l *ledger) sent(role support.SenderRole, content string, at time.Time) {
	l.entries[contentKey(role, content)] = ledgerEntry{at: at}
}

func (l *ledger) confirm(m support.Message) {
	key := contentKey(m.SenderRole, m.Content)
	if e, ok := l.entries[key]; ok {
		e.id = m.ID
		l.entries[key] = e
	}
}

func (l *ledger) forget(role support.SenderRole, content string) {
	delete(l.entries, contentKey(role, content))
}

// echo reports whether m repeats a confirmed local send under another id within window.
func (l *ledger) echo(m support.Message, window time.Duration) bool {
	e, ok := l.entries[contentKey(m.SenderRole, m.Content)]
	if !ok || e.id == 0 || e.id == m.ID {
		return false
	}
	return within(m.CreatedAt, e.at, window)
}

func (l *ledger) prune(now time.Time) {
	for k, e := range l.entries {
		if now.Sub(e.at) > l.ttl {
			delete(l.entries, k)
		}
	}
}

func (l *ledger) len() int { return len(l.entries) }

func within(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= window
}
