package inbox

import (
	"sync"
	"time"
)

// SignalKind is a raw UI signal.
type SignalKind int

const (
	// SignalMutation fires on any change of the conversation list,
	// including changes caused by the responder itself.
	SignalMutation SignalKind = iota
	// SignalDelivery fires when a message-delivery request is observed.
	SignalDelivery
)

func (k SignalKind) String() string {
	if k == SignalDelivery {
		return "delivery"
	}
	return "mutation"
}

// Decision is what the gate asks for once a delivery has settled.
type Decision int

const (
	DecideCheck Decision = iota
	DecideRecover
)

func (d Decision) String() string {
	if d == DecideRecover {
		return "recover"
	}
	return "check"
}

// Gate collapses raw signals into sparse check decisions.
type Gate struct {
	now        func() time.Time
	staleAfter    time.Duration
	spacing       time.Duration
	directSpacing time.Duration

	mu                      sync.Mutex
	lastTriggerAt           time.Time
	lastRecoveryCompletedAt time.Time
	lastCheckAt             time.Time
	settling                bool
	checking                bool
}

func NewGate(t Timings, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{now: now, staleAfter: t.StaleAfter, spacing: t.CheckSpacing, directSpacing: t.DirectSpacing}
}

// Mutation records list activity.
func (g *Gate) Mutation() {
	g.mu.Lock()
	g.lastTriggerAt = g.now()
	g.mu.Unlock()
}

// BeginSettle reports whether a new settle window should start. Deliveries
// arriving while one is pending are folded into it.
func (g *Gate) BeginSettle() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.settling {
		return false
	}
	g.settling = true
	return true
}

// EndSettle closes the settle window. A delivery with no list activity (or
// recovery) for longer than the stale window means the list did not reflow,
// so a recovery is requested unless a reply cycle is running.
func (g *Gate) EndSettle(lockHeld bool) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settling = false
	last := g.lastTriggerAt
	if g.lastRecoveryCompletedAt.After(last) {
		last = g.lastRecoveryCompletedAt
	}
	if !lockHeld && g.now().Sub(last) > g.staleAfter {
		return DecideRecover
	}
	return DecideCheck
}

// RecoveryFinished records the end of a completed recovery run.
func (g *Gate) RecoveryFinished() {
	g.mu.Lock()
	g.lastRecoveryCompletedAt = g.now()
	g.mu.Unlock()
}

// BeginCheck admits an extraction unless one is running or the previous one
// started too recently: within the check spacing for a forced check, within
// the direct spacing otherwise. Admitted checks must call EndCheck.
func (g *Gate) BeginCheck(forced bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	spacing := g.directSpacing
	if forced {
		spacing = g.spacing
	}
	if g.checking || (!g.lastCheckAt.IsZero() && now.Sub(g.lastCheckAt) < spacing) {
		return false
	}
	g.checking = true
	g.lastCheckAt = now
	return true
}

func (g *Gate) EndCheck() {
	g.mu.Lock()
	g.checking = false
	g.mu.Unlock()
}
