// Package audit defines the append-only ledger of applied transitions.
package audit

import "time"

// Action identifies the transition that produced an entry.
type Action string

const (
	ActionEnactPolicy Action = "enact_policy"
	ActionHandleEvent Action = "handle_event"
	ActionEndTurn     Action = "end_turn"
)

// Entry records one committed transition. Entries are never mutated or
// deleted; insertion order reflects commit order.
type Entry struct {
	ID          int64
	SessionID   string
	TurnMade    int
	Action      Action
	RelatedID   string
	Description string
	CreatedAt   time.Time
}
