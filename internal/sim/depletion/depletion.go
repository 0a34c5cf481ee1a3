// Package depletion tracks how much of a quarry site is left to mine.
package depletion

import "math"

// Tracker holds the remaining fraction of a site. MaxHealth <= 0 means the
// site is unbounded: it never depletes and always reports 100%.
type Tracker struct {
	Remaining float64
	MaxHealth int
}

// New returns a full tracker.
func New(maxHealth int) Tracker {
	return Tracker{Remaining: 1, MaxHealth: maxHealth}
}

func (t Tracker) Unbounded() bool { return t.MaxHealth <= 0 }

// ApplyDamage removes amount*multiplier health units. Health is counted in
// whole units so a site depletes after exactly MaxHealth units of damage.
func (t *Tracker) ApplyDamage(amount, multiplier int) {
	if t.Unbounded() || amount <= 0 || multiplier <= 0 {
		return
	}
	left := t.Health() - amount*multiplier
	t.Remaining = float64(left) / float64(t.MaxHealth)
}

// Health is the remaining health in units, rounded to the nearest unit.
func (t Tracker) Health() int {
	if t.Unbounded() {
		return 0
	}
	return int(math.Round(t.Remaining * float64(t.MaxHealth)))
}

func (t Tracker) IsDepleted() bool {
	if t.Unbounded() {
		return false
	}
	return t.Remaining <= 0
}

func (t Tracker) Percent() float64 {
	if t.Unbounded() {
		return 100
	}
	return t.Remaining * 100
}

// Reset refills the tracker. Only site creation calls it.
func (t *Tracker) Reset() { t.Remaining = 1 }

// SetMaxHealth applies a settings change without touching the remaining
// fraction.
func (t *Tracker) SetMaxHealth(maxHealth int) { t.MaxHealth = maxHealth }
