package scan

import "time"

// DefaultCooldown is the minimum gap between two auto-triggered
// classification calls.
const DefaultCooldown = 2500 * time.Millisecond

// Trigger is the rate-limited auto-trigger policy. It fires when lighting
// clears the adequacy threshold, a face is present, and the cooldown has
// elapsed since the previous fire. The first eligible step fires
// immediately, so a steady eligible signal fires at t=0, cooldown,
// 2*cooldown and so on.
//
// Trigger is not safe for concurrent use; the loop goroutine owns it.
type Trigger struct {
	cooldown time.Duration
	adequacy float64
	lastFire time.Time
	fired    bool
}

// NewTrigger creates a trigger with the given cooldown and lighting
// adequacy threshold.
func NewTrigger(cooldown time.Duration, adequacy float64) *Trigger {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Trigger{cooldown: cooldown, adequacy: adequacy}
}

// ShouldFire evaluates the gating conditions at now and, when they pass,
// records the fire and returns true.
func (t *Trigger) ShouldFire(now time.Time, lighting float64, faceCount int) bool {
	if faceCount < 1 {
		return false
	}
	if lighting < t.adequacy {
		return false
	}
	if t.fired && now.Sub(t.lastFire) < t.cooldown {
		return false
	}
	t.fired = true
	t.lastFire = now
	return true
}

// Reset clears the fire history, re-arming the trigger for a new session.
func (t *Trigger) Reset() {
	t.fired = false
	t.lastFire = time.Time{}
}
