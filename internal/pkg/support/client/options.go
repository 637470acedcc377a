package client

import (
	"log/slog"
	"time"
)

// Options tunes polling and the client-side send and dedup guards.
type Options struct {
	PageSize           int
	PollInterval       time.Duration
	DedupWindow        time.Duration // role+content echo tolerance
	MinOpenBeforeSend  time.Duration
	DoubleSubmitWindow time.Duration
	LedgerTTL          time.Duration
	RequestTimeout     time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		PageSize:           20,
		PollInterval:       3 * time.Second,
		DedupWindow:        5 * time.Second,
		MinOpenBeforeSend:  300 * time.Millisecond,
		DoubleSubmitWindow: time.Second,
		LedgerTTL:          30 * time.Second,
		RequestTimeout:     10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PageSize <= 0 {
		o.PageSize = d.PageSize
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.DedupWindow <= 0 {
		o.DedupWindow = d.DedupWindow
	}
	if o.MinOpenBeforeSend < 0 {
		o.MinOpenBeforeSend = 0
	}
	if o.DoubleSubmitWindow <= 0 {
		o.DoubleSubmitWindow = d.DoubleSubmitWindow
	}
	if o.LedgerTTL <= 0 {
		o.LedgerTTL = d.LedgerTTL
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
