package combat

// Verdict is the outcome of one engagement validity check.
type Verdict struct {
	AttackerDead     bool
	TargetDead       bool
	TargetOutOfRange bool
	// TargetGone is set when the target reference no longer resolves.
	TargetGone bool
}

// Invalid reports whether the engagement must end.
func (v Verdict) Invalid() bool {
	return v.AttackerDead || v.TargetDead || v.TargetOutOfRange || v.TargetGone
}

// Reason returns the end reason recorded for an invalid verdict, or "".
func (v Verdict) Reason() string {
	switch {
	case v.AttackerDead:
		return ReasonAttackerDead
	case v.TargetGone:
		return ReasonTargetGone
	case v.TargetDead:
		return ReasonTargetDead
	case v.TargetOutOfRange:
		return ReasonTargetOutOfRange
	}
	return ""
}

// Monitor is the engagement monitor. It is the only component that ends an
// engagement because of world-state changes.
type Monitor struct {
	health  HealthProvider
	world   Locator
	epsilon float64
}

// NewMonitor returns a Monitor treating health at or below epsilon as dead.
func NewMonitor(health HealthProvider, world Locator, epsilon float64) *Monitor {
	return &Monitor{health: health, world: world, epsilon: epsilon}
}

// Evaluate checks ws's engagement. Without a target both target checks are
// false; the attacker check runs regardless.
func (m *Monitor) Evaluate(ws *WeaponSystem) Verdict {
	var v Verdict
	v.AttackerDead = m.health.HealthPercentage(ws.attacker) <= m.epsilon
	if ws.target == nil {
		return v
	}
	if !m.world.Valid(ws.target) {
		v.TargetGone = true
		return v
	}
	v.TargetDead = m.health.HealthPercentage(ws.target) <= m.epsilon
	if ws.weapon != nil {
		if dist, ok := m.world.Distance(ws.attacker, ws.target); ok && dist > ws.weapon.AttackRange {
			v.TargetOutOfRange = true
		}
	}
	return v
}

// Check evaluates ws and disengages it when the engagement is invalid.
//
// Postcondition: Returns the verdict; ws is Idle if the verdict is invalid.
func (m *Monitor) Check(ws *WeaponSystem) Verdict {
	v := m.Evaluate(ws)
	if v.Invalid() {
		ws.disengage(v.Reason())
	}
	return v
}
