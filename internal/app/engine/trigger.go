package engine

import (
	"math/rand"

	"github.com/palazzo-labs/statecraft/internal/app/domain/catalog"
)

// Source supplies the randomness for the end-of-turn event draw. It is
// injectable so tests can force either branch.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// DefaultEventChance is the probability a random event fires at end of turn.
const DefaultEventChance = 0.25

// Trigger decides whether a random event enters play at the end of a turn.
type Trigger struct {
	chance float64
	rand   Source
}

// NewTrigger builds a trigger with the given event chance. A nil source
// falls back to math/rand.
func NewTrigger(chance float64, src Source) *Trigger {
	if src == nil {
		src = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Trigger{chance: chance, rand: src}
}

// Pick draws once and, on a hit, selects uniformly among the candidate
// events. An empty catalog is a silent no-op.
func (t *Trigger) Pick(events []catalog.Event) (string, bool) {
	if t.rand.Float64() >= t.chance {
		return "", false
	}
	if len(events) == 0 {
		return "", false
	}
	return events[t.rand.Intn(len(events))].ID, true
}
