package exchange

import "time"

// NumSlots is the fixed number of client slots. Slot 0 owns the console.
const NumSlots = 4

// Policy holds the tunable constants of the exchange.
type Policy struct {
	// AnswerRetries is how often slot 0 may poll while a request stays
	// unanswered before the request is failed and the engine continues.
	AnswerRetries int
	// IdlePoll bounds how long the waiting engine sleeps between two runs of
	// its idle work.
	IdlePoll time.Duration
	// CancelTimeout bounds the wait for the interrupt lock.
	CancelTimeout time.Duration
	// StdoutBufferSize is the number of bytes of console output coalesced
	// into one item.
	StdoutBufferSize int
	// DrainTimeout bounds how long Stop waits for clients to fetch queued
	// items, and how long a disconnect waits for the hot loop to end.
	DrainTimeout time.Duration
}

// DefaultPolicy returns the default exchange policy.
func DefaultPolicy() Policy {
	return Policy{
		AnswerRetries:    3,
		IdlePoll:         50 * time.Millisecond,
		CancelTimeout:    time.Second,
		StdoutBufferSize: 0x1FFF,
		DrainTimeout:     5 * time.Second,
	}
}

// withDefaults fills unset fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.AnswerRetries <= 0 {
		p.AnswerRetries = d.AnswerRetries
	}
	if p.IdlePoll <= 0 {
		p.IdlePoll = d.IdlePoll
	}
	if p.CancelTimeout <= 0 {
		p.CancelTimeout = d.CancelTimeout
	}
	if p.StdoutBufferSize <= 0 {
		p.StdoutBufferSize = d.StdoutBufferSize
	}
	if p.DrainTimeout <= 0 {
		p.DrainTimeout = d.DrainTimeout
	}
	return p
}
