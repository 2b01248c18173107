// Package engine implements the pure state-transition rules: applying effect
// vectors to a session, turn progression math and the end-of-turn event draw.
package engine

import (
	"github.com/palazzo-labs/statecraft/internal/app/domain/effect"
	"github.com/palazzo-labs/statecraft/internal/app/domain/session"
	"github.com/palazzo-labs/statecraft/internal/errors"
)

// Path selects how an effect vector's capital component is interpreted.
type Path int

const (
	// PolicyPath treats |capital| as a cost and rejects unaffordable policies.
	PolicyPath Path = iota
	// EventPath applies the capital delta with its stored sign.
	EventPath
)

// Turn progression constants, applied on every end of turn.
const (
	BaseExpenses  = 50000.0
	DriftTarget   = 50.0
	DriftFactor   = 0.1
	StartApproval = 50.0
	StartBudget   = 1000000.0
	StartCapital  = 100.0
)

// Apply returns a copy of s with the vector applied. The input session is
// never mutated. On the policy path the affordability rule is checked before
// any field changes; capital can never go negative.
func Apply(s session.Session, v effect.Vector, path Path) (session.Session, error) {
	out := s

	switch path {
	case PolicyPath:
		cost := v.CapitalCost()
		if s.Capital < cost {
			return s, errors.InsufficientCapital("Not enough Political Capital to enact this policy.")
		}
		out.Capital = s.Capital - cost
	case EventPath:
		out.Capital = s.Capital + v.Capital
	}

	out.Approval = effect.RoundApproval(s.Approval + v.Approval)
	out.Budget = s.Budget + v.Budget
	return out, nil
}

// AdvanceTurn returns a copy of s with the turn counter incremented, base
// expenses deducted and approval drifted toward the midpoint. Approval is not
// clamped; drift math operates on the raw value.
func AdvanceTurn(s session.Session) session.Session {
	out := s
	out.TurnNumber = s.TurnNumber + 1
	out.Budget = s.Budget - BaseExpenses
	drift := (DriftTarget - s.Approval) * DriftFactor
	out.Approval = effect.RoundApproval(s.Approval + drift)
	return out
}
