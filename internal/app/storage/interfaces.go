// Package storage declares the persistence contracts the game services
// depend on.
package storage

import (
	"context"

	"github.com/palazzo-labs/statecraft/internal/app/domain/audit"
	"github.com/palazzo-labs/statecraft/internal/app/domain/catalog"
	"github.com/palazzo-labs/statecraft/internal/app/domain/player"
	"github.com/palazzo-labs/statecraft/internal/app/domain/session"
)

// SessionFields carries the mutable session columns written by a transition.
type SessionFields struct {
	TurnNumber    int
	Approval      float64
	Budget        float64
	Capital       float64
	ActiveEventID string // empty clears the pending event
}

// Tx is one atomic unit of work over a player's session. All reads and
// writes between Begin and Commit happen inside a single storage
// transaction; any error path must end in Rollback, which discards every
// write including appended audit entries.
type Tx interface {
	// LockActiveSession acquires the exclusive row lock for the player's
	// active session, blocking while another unit of work holds it.
	LockActiveSession(ctx context.Context, playerID string) (session.Session, error)
	GetPolicy(ctx context.Context, policyID string) (catalog.Policy, error)
	GetEvent(ctx context.Context, eventID string) (catalog.Event, error)
	ListRandomEvents(ctx context.Context) ([]catalog.Event, error)
	UpdateSession(ctx context.Context, sessionID string, fields SessionFields) error
	AppendAudit(ctx context.Context, entry audit.Entry) error
	Commit() error
	Rollback() error
}

// SessionStore persists game sessions.
type SessionStore interface {
	// Begin opens a unit of work; callers must Commit or Rollback.
	Begin(ctx context.Context) (Tx, error)
	// CreateSession inserts a new active session; Conflict when the player
	// already has one.
	CreateSession(ctx context.Context, s session.Session) (session.Session, error)
	GetActiveSession(ctx context.Context, playerID string) (session.Session, error)
	// GetSessionView returns the joined, display-ready session.
	GetSessionView(ctx context.Context, sessionID string) (session.View, error)
}

// CatalogStore reads the static policy/event/region catalog.
type CatalogStore interface {
	ListPolicies(ctx context.Context) ([]catalog.Policy, error)
	GetPolicy(ctx context.Context, policyID string) (catalog.Policy, error)
	GetEvent(ctx context.Context, eventID string) (catalog.Event, error)
	ListRandomEvents(ctx context.Context) ([]catalog.Event, error)
	ListRegions(ctx context.Context) ([]catalog.Region, error)
	GetRegion(ctx context.Context, regionID string) (catalog.Region, error)
}

// PlayerStore persists player accounts.
type PlayerStore interface {
	CreatePlayer(ctx context.Context, p player.Player) (player.Player, error)
	GetPlayer(ctx context.Context, id string) (player.Player, error)
	GetPlayerByUsername(ctx context.Context, username string) (player.Player, error)
}

// AuditStore reads the committed transition ledger.
type AuditStore interface {
	ListAuditEntries(ctx context.Context, sessionID string) ([]audit.Entry, error)
}
