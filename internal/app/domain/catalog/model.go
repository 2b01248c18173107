// Package catalog defines the read-only policy, event and region entities the
// game engine consumes.
package catalog

import "github.com/palazzo-labs/statecraft/internal/app/domain/effect"

// Policy is an enactable piece of legislation.
type Policy struct {
	ID          string
	Name        string
	Category    string
	Description string
	Effects     effect.Vector
}

// EventType discriminates how an event enters play.
type EventType string

// EventTypeRandom marks events eligible for the end-of-turn draw.
const EventTypeRandom EventType = "random"

// Choice is one way a player may respond to an event.
type Choice struct {
	ID      string        `json:"choice_id"`
	Text    string        `json:"text"`
	Effects effect.Vector `json:"effects"`
}

// Event is a situation the player must resolve before ending the turn.
type Event struct {
	ID          string
	Name        string
	Description string
	Type        EventType
	Choices     []Choice
}

// Choice returns the choice with the given id, if the event offers it.
func (e Event) Choice(choiceID string) (Choice, bool) {
	for _, c := range e.Choices {
		if c.ID == choiceID {
			return c, true
		}
	}
	return Choice{}, false
}

// Region is a jurisdiction a session is anchored to.
type Region struct {
	ID   string
	Name string
}
