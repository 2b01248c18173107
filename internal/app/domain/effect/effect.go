// Package effect defines the resource delta applied by policies and event
// choices.
package effect

import "math"

// Vector is a fixed set of signed deltas against a session's resources.
// Catalog rows store these under the session column names; absent keys decode
// to zero.
type Vector struct {
	Approval float64 `json:"public_approval,omitempty"`
	Budget   float64 `json:"budget_balance,omitempty"`
	Capital  float64 `json:"political_capital,omitempty"`
}

// IsZero reports whether the vector changes nothing.
func (v Vector) IsZero() bool {
	return v.Approval == 0 && v.Budget == 0 && v.Capital == 0
}

// CapitalCost is the political capital price of enacting a policy carrying
// this vector. Policies always cost capital, regardless of the stored sign.
func (v Vector) CapitalCost() float64 {
	return math.Abs(v.Capital)
}

// RoundApproval rounds an approval value to two decimal places, matching how
// approval is persisted.
func RoundApproval(value float64) float64 {
	return math.Round(value*100) / 100
}
