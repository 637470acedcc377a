package client

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/sync/singleflight"

	support "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/application/domain"
)

type overlay struct {
	conv      support.Conversation
	// confirmed overlays are dropped by the first refresh that began after the commit
	confirmed bool
	gen       uint64
}

// Directory is the employee's view of every visible conversation. Queue and Mine are pure
// filters over the server set with optimistic overlays on top; neither is stored.
type Directory struct {
	api        API
	employeeID string
	logger     *slog.Logger
	timeout    time.Duration

	mu        sync.RWMutex
	server    map[string]support.Conversation
	overlays  map[string]overlay
	refreshed time.Time
	gen       uint64 // bumped on every commit
	fetches   uint64 // refresh requests started
	applied   uint64 // newest request whose result is visible
	listeners []func()

	group singleflight.Group
}

func NewDirectory(api API, employeeID string, opts Options) *Directory {
	opts = opts.withDefaults()
	return &Directory{
		api:        api,
		employeeID: employeeID,
		logger:     opts.Logger,
		timeout:    opts.RequestTimeout,
		server:     make(map[string]support.Conversation),
		overlays:   make(map[string]overlay),
	}
}

// OnChange registers fn to run after the visible set changed.
func (d *Directory) OnChange(fn func()) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

// Refresh replaces the server set. Concurrent calls share one request, except that a
// commit detaches callers from a request already in flight. On failure the previous set
// stays visible.
func (d *Directory) Refresh(ctx context.Context) error {
	const op = "Directory.Refresh"
	_, err, _ := d.group.Do("refresh", func() (any, error) {
		d.mu.Lock()
		started := d.gen
		d.fetches++
		seq := d.fetches
		d.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		convs, err := d.api.FetchEmployeeConversations(ctx)
		if err != nil {
			return nil, err
		}
		next := make(map[string]support.Conversation, len(convs))
		for _, c := range convs {
			next[c.ID] = c
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		if seq < d.applied {
			// a newer request already answered
			return nil, nil
		}
		d.applied = seq
		d.server = next
		for id, o := range d.overlays {
			if o.confirmed && o.gen <= started {
				delete(d.overlays, id)
			}
		}
		d.refreshed = time.Now()
		return nil, nil
	})
	if err != nil {
		d.logger.With("op", op).Warn("directory refresh failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	d.notify()
	return nil
}

// Get returns the visible version of a conversation.
func (d *Directory) Get(id string) (support.Conversation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.visibleLocked(id)
}

// All returns every visible conversation, most recent activity first.
func (d *Directory) All() []support.Conversation {
	d.mu.RLock()
	out := make([]support.Conversation, 0, len(d.server)+len(d.overlays))
	for id := range d.server {
		c, _ := d.visibleLocked(id)
		out = append(out, c)
	}
	for id, o := range d.overlays {
		if _, ok := d.server[id]; !ok {
			out = append(out, o.conv)
		}
	}
	d.mu.RUnlock()
	SortRecentFirst(out)
	return out
}

// Queue lists conversations waiting for a human.
func (d *Directory) Queue() []support.Conversation {
	return filter(d.All(), func(c support.Conversation) bool { return c.Status == support.StatusWaitingEmp })
}

// Mine lists conversations owned by this employee.
func (d *Directory) Mine() []support.Conversation {
	return filter(d.All(), func(c support.Conversation) bool { return c.AssignedTo(d.employeeID) })
}

func (d *Directory) EmployeeID() string { return d.employeeID }

// MarkRead resets the unread counter on the server and locally.
func (d *Directory) MarkRead(ctx context.Context, id string) error {
	if err := d.api.MarkConversationRead(ctx, id); err != nil {
		return err
	}
	d.mu.Lock()
	if c, ok := d.server[id]; ok {
		c.UnreadCount = 0
		d.server[id] = c
	}
	if o, ok := d.overlays[id]; ok {
		o.conv.UnreadCount = 0
		d.overlays[id] = o
	}
	d.mu.Unlock()
	d.notify()
	return nil
}

// routeMutation moves id to status/employee locally until committed or rolled back.
func (d *Directory) routeMutation(id string, status support.Status, employeeID string) Mutation[overlayState] {
	return Mutation[overlayState]{
		Capture: func() overlayState {
			d.mu.RLock()
			defer d.mu.RUnlock()
			o, ok := d.overlays[id]
			return overlayState{overlay: o, present: ok}
		},
		Apply: func() {
			d.mu.Lock()
			c, ok := d.visibleLocked(id)
			if !ok {
				c = support.Conversation{ID: id}
			}
			d.overlays[id] = overlay{conv: c.WithOwner(status, employeeID)}
			d.mu.Unlock()
			d.notify()
		},
		Commit: func() {
			d.mu.Lock()
			d.gen++
			if o, ok := d.overlays[id]; ok {
				o.confirmed, o.gen = true, d.gen
				d.overlays[id] = o
			}
			d.mu.Unlock()
			d.group.Forget("refresh")
		},
		Rollback: func(prior overlayState) {
			d.mu.Lock()
			if prior.present {
				d.overlays[id] = prior.overlay
			} else {
				delete(d.overlays, id)
			}
			d.mu.Unlock()
			d.notify()
		},
	}
}

type overlayState struct {
	overlay overlay
	present bool
}

func (d *Directory) visibleLocked(id string) (support.Conversation, bool) {
	if o, ok := d.overlays[id]; ok {
		return o.conv, true
	}
	c, ok := d.server[id]
	return c, ok
}

func (d *Directory) notify() {
	d.mu.RLock()
	listeners := append([]func(){}, d.listeners...)
	d.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// SortRecentFirst orders conversations by last activity, newest first.
func SortRecentFirst(convs []support.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		a, b := convs[i].LastActivity(), convs[j].LastActivity()
		if a.Equal(b) {
			return convs[i].ID < convs[j].ID
		}
		return a.After(b)
	})
}

// Search keeps conversations whose customer name, phone or last message preview contains
// query. Phone matching ignores formatting. An empty query keeps everything.
func Search(convs []support.Conversation, query string) []support.Conversation {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]support.Conversation(nil), convs...)
	}
	qDigits := digits(q)
	return filter(convs, func(c support.Conversation) bool {
		if strings.Contains(strings.ToLower(c.CustomerName), q) ||
			strings.Contains(strings.ToLower(c.LastMessagePreview), q) ||
			strings.Contains(strings.ToLower(c.CustomerPhone), q) {
			return true
		}
		return qDigits != "" && strings.Contains(digits(c.CustomerPhone), qDigits)
	})
}

// DateGroup is a run of conversations whose last message falls on Day.
type DateGroup struct {
	Day           time.Time
	Conversations []support.Conversation
}

// Label is "2006-01-02".
func (g DateGroup) Label() string { return g.Day.Format(time.DateOnly) }

// GroupByDate splits convs by calendar date of last activity in loc, keeping input order.
func GroupByDate(convs []support.Conversation, loc *time.Location) []DateGroup {
	if loc == nil {
		loc = time.Local
	}
	var groups []DateGroup
	index := map[string]int{}
	for _, c := range convs {
		t := c.LastActivity().In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		key := day.Format(time.DateOnly)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DateGroup{Day: day})
		}
		groups[i].Conversations = append(groups[i].Conversations, c)
	}
	return groups
}

func filter(convs []support.Conversation, keep func(support.Conversation) bool) []support.Conversation {
	out := make([]support.Conversation, 0, len(convs))
	for _, c := range convs {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
