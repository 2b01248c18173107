// Package session defines the per-player game state record.
package session

import "time"

// Session is a player's single active game-state row. At most one active
// session exists per player; all mutation happens through the game service
// under the storage row lock.
type Session struct {
	ID            string
	PlayerID      string
	CareerLevel   string
	RegionID      string
	TurnNumber    int
	Approval      float64
	Budget        float64
	Capital       float64
	ActiveEventID string // empty when no event is pending
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EventPending reports whether an unresolved event blocks the end of turn.
func (s Session) EventPending() bool {
	return s.ActiveEventID != ""
}

// EventChoiceView is a choice as rendered to the player.
type EventChoiceView struct {
	ID   string `json:"choice_id"`
	Text string `json:"text"`
}

// View is the joined, display-ready form of a session returned by the API.
type View struct {
	Session
	RegionName       string
	EventName        string
	EventDescription string
	EventChoices     []EventChoiceView
}
