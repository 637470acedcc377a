package client

import "errors"

var (
	ErrIdentityUnresolved = errors.New("client: conversation identity could not be resolved")
	// ErrInert is returned by every widget operation after identity resolution failed.
	ErrInert = errors.New("client: support widget is inert")

	ErrAlreadyClaimed = errors.New("client: conversation already claimed by another employee")
	ErrClaimFailed    = errors.New("client: claim failed")
	ErrReleaseFailed  = errors.New("client: release failed")
	ErrBusy           = errors.New("client: another operation on this conversation is in flight")

	ErrNoConversation  = errors.New("client: no conversation is open")
	ErrTooSoon         = errors.New("client: conversation was opened too recently to send")
	ErrSendInFlight    = errors.New("client: a send is already in flight")
	ErrDuplicateSend   = errors.New("client: identical message was just sent")
	ErrSendFailed      = errors.New("client: send failed")
	ErrFetchFailed     = errors.New("client: fetch failed")
	ErrComposeDisabled = errors.New("client: compose is disabled for this conversation")
)
