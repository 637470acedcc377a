package support

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the routing state of a conversation.
type Status string

const (
	// StatusAI means the assistant answers the customer.
	StatusAI Status = "AI"
	// StatusWaitingEmp means the conversation is queued for a human and the assistant is paused.
	StatusWaitingEmp Status = "WAITING_EMP"
	// StatusEmp means exactly one employee owns the conversation.
	StatusEmp Status = "EMP"
)

var (
	ErrInvalidStatus     = errors.New("support: invalid conversation status")
	ErrInvalidTransition = errors.New("support: invalid status transition")
)

// transitions lists every permitted edge of the routing state machine.
// AI -> EMP is allowed: a claim does not require the conversation to be queued first.
var transitions = map[Status]map[Status]struct{}{
	StatusAI:         {StatusWaitingEmp: {}, StatusEmp: {}},
	StatusWaitingEmp: {StatusEmp: {}},
	StatusEmp:        {StatusWaitingEmp: {}, StatusAI: {}},
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, v)
	}
	return s, nil
}

// CanTransition reports whether the machine may move from one status to another.
// A self-transition is never a transition.
func CanTransition(from, to Status) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// ReleaseTarget validates the status a released conversation falls back to.
func ReleaseTarget(to Status) (Status, error) {
	if to == "" {
		return StatusAI, nil
	}
	if !CanTransition(StatusEmp, to) {
		return "", fmt.Errorf("%w: EMP -> %s", ErrInvalidTransition, to)
	}
	return to, nil
}
