// Package memory provides an in-memory storage implementation used by unit
// tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/palazzo-labs/statecraft/internal/app/domain/audit"
	"github.com/palazzo-labs/statecraft/internal/app/domain/catalog"
	"github.com/palazzo-labs/statecraft/internal/app/domain/player"
	"github.com/palazzo-labs/statecraft/internal/app/domain/session"
	"github.com/palazzo-labs/statecraft/internal/app/storage"
	"github.com/palazzo-labs/statecraft/internal/errors"
)

// Store keeps all state in maps guarded by a single mutex. Units of work
// additionally serialize on txMu, mirroring the row lock the Postgres
// implementation takes with FOR UPDATE.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	sessions    map[string]session.Session // by session ID
	players     map[string]player.Player   // by player ID
	policies    map[string]catalog.Policy
	events      map[string]catalog.Event
	regions     map[string]catalog.Region
	auditLog    map[string][]audit.Entry // by session ID
	nextAuditID int64
}

var _ storage.SessionStore = (*Store)(nil)
var _ storage.CatalogStore = (*Store)(nil)
var _ storage.PlayerStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		sessions:    make(map[string]session.Session),
		players:     make(map[string]player.Player),
		policies:    make(map[string]catalog.Policy),
		events:      make(map[string]catalog.Event),
		regions:     make(map[string]catalog.Region),
		auditLog:    make(map[string][]audit.Entry),
		nextAuditID: 1,
	}
}

// --- catalog seeding ---------------------------------------------------------

// AddPolicy registers a policy in the catalog.
func (s *Store) AddPolicy(p catalog.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.ID] = p
}

// AddEvent registers an event in the catalog.
func (s *Store) AddEvent(e catalog.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = cloneEvent(e)
}

// AddRegion registers a region in the catalog.
func (s *Store) AddRegion(r catalog.Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions[r.ID] = r
}

// --- SessionStore ------------------------------------------------------------

func (s *Store) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sessions {
		if existing.PlayerID == sess.PlayerID && existing.Active {
			return session.Session{}, errors.Conflict("An active game already exists for this player.")
		}
	}

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sess.Active = true
	sess.CreatedAt = now
	sess.UpdatedAt = now
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *Store) GetActiveSession(ctx context.Context, playerID string) (session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeSessionLocked(playerID)
}

func (s *Store) activeSessionLocked(playerID string) (session.Session, error) {
	for _, sess := range s.sessions {
		if sess.PlayerID == playerID && sess.Active {
			return sess, nil
		}
	}
	return session.Session{}, errors.NotFound("No active game found for this player.")
}

func (s *Store) GetSessionView(ctx context.Context, sessionID string) (session.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return session.View{}, errors.NotFound("No active game found for this player.")
	}

	view := session.View{Session: sess}
	if region, ok := s.regions[sess.RegionID]; ok {
		view.RegionName = region.Name
	}
	if sess.ActiveEventID != "" {
		if event, ok := s.events[sess.ActiveEventID]; ok {
			view.EventName = event.Name
			view.EventDescription = event.Description
			for _, c := range event.Choices {
				view.EventChoices = append(view.EventChoices, session.EventChoiceView{ID: c.ID, Text: c.Text})
			}
		}
	}
	return view, nil
}

// --- CatalogStore ------------------------------------------------------------

func (s *Store) ListPolicies(ctx context.Context) ([]catalog.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]catalog.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Category != result[j].Category {
			return result[i].Category < result[j].Category
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *Store) GetPolicy(ctx context.Context, policyID string) (catalog.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPolicyLocked(policyID)
}

func (s *Store) getPolicyLocked(policyID string) (catalog.Policy, error) {
	p, ok := s.policies[policyID]
	if !ok {
		return catalog.Policy{}, errors.NotFound("Policy not found.")
	}
	return p, nil
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (catalog.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEventLocked(eventID)
}

func (s *Store) getEventLocked(eventID string) (catalog.Event, error) {
	e, ok := s.events[eventID]
	if !ok {
		return catalog.Event{}, errors.NotFound("Event not found.")
	}
	return cloneEvent(e), nil
}

func (s *Store) ListRandomEvents(ctx context.Context) ([]catalog.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listRandomEventsLocked(), nil
}

func (s *Store) listRandomEventsLocked() []catalog.Event {
	result := make([]catalog.Event, 0, len(s.events))
	for _, e := range s.events {
		if e.Type == catalog.EventTypeRandom {
			result = append(result, cloneEvent(e))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *Store) ListRegions(ctx context.Context) ([]catalog.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]catalog.Region, 0, len(s.regions))
	for _, r := range s.regions {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) GetRegion(ctx context.Context, regionID string) (catalog.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.regions[regionID]
	if !ok {
		return catalog.Region{}, errors.NotFound("Region not found.")
	}
	return r, nil
}

// --- PlayerStore -------------------------------------------------------------

func (s *Store) CreatePlayer(ctx context.Context, p player.Player) (player.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.players {
		if existing.Username == p.Username {
			return player.Player{}, errors.Conflict("Username already exists.")
		}
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()
	s.players[p.ID] = p
	return p, nil
}

func (s *Store) GetPlayer(ctx context.Context, id string) (player.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return player.Player{}, errors.NotFound("Player not found.")
	}
	return p, nil
}

func (s *Store) GetPlayerByUsername(ctx context.Context, username string) (player.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.players {
		if p.Username == username {
			return p, nil
		}
	}
	return player.Player{}, errors.NotFound("Player not found.")
}

// --- AuditStore --------------------------------------------------------------

func (s *Store) ListAuditEntries(ctx context.Context, sessionID string) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.auditLog[sessionID]
	result := make([]audit.Entry, len(entries))
	copy(result, entries)
	return result, nil
}

// --- unit of work ------------------------------------------------------------

// memTx stages writes and applies them on Commit. The store-wide txMu,
// taken at Begin and held until Commit or Rollback, stands in for the
// per-row lock a real database would give us; a transition only ever locks
// one session, so a coarse lock keeps the same serialization without
// deadlock risk.
type memTx struct {
	store *Store
	done  bool

	sessionID     string
	fields        storage.SessionFields
	hasUpdate     bool
	stagedEntries []audit.Entry
}

var _ storage.Tx = (*memTx)(nil)

func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	s.txMu.Lock()
	return &memTx{store: s}, nil
}

func (t *memTx) LockActiveSession(ctx context.Context, playerID string) (session.Session, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	sess, err := t.store.activeSessionLocked(playerID)
	if err != nil {
		return session.Session{}, errors.NotFound("No active game found.")
	}
	return sess, nil
}

func (t *memTx) GetPolicy(ctx context.Context, policyID string) (catalog.Policy, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.getPolicyLocked(policyID)
}

func (t *memTx) GetEvent(ctx context.Context, eventID string) (catalog.Event, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.getEventLocked(eventID)
}

func (t *memTx) ListRandomEvents(ctx context.Context) ([]catalog.Event, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.listRandomEventsLocked(), nil
}

func (t *memTx) UpdateSession(ctx context.Context, sessionID string, fields storage.SessionFields) error {
	t.store.mu.RLock()
	_, ok := t.store.sessions[sessionID]
	t.store.mu.RUnlock()
	if !ok {
		return errors.NotFound("No active game found.")
	}

	t.sessionID = sessionID
	t.fields = fields
	t.hasUpdate = true
	return nil
}

func (t *memTx) AppendAudit(ctx context.Context, entry audit.Entry) error {
	t.stagedEntries = append(t.stagedEntries, entry)
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.store.txMu.Unlock()

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.hasUpdate {
		sess := t.store.sessions[t.sessionID]
		sess.TurnNumber = t.fields.TurnNumber
		sess.Approval = t.fields.Approval
		sess.Budget = t.fields.Budget
		sess.Capital = t.fields.Capital
		sess.ActiveEventID = t.fields.ActiveEventID
		sess.UpdatedAt = time.Now().UTC()
		t.store.sessions[t.sessionID] = sess
	}
	for _, entry := range t.stagedEntries {
		entry.ID = t.store.nextAuditID
		t.store.nextAuditID++
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now().UTC()
		}
		t.store.auditLog[entry.SessionID] = append(t.store.auditLog[entry.SessionID], entry)
	}
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

func cloneEvent(e catalog.Event) catalog.Event {
	out := e
	out.Choices = make([]catalog.Choice, len(e.Choices))
	copy(out.Choices, e.Choices)
	return out
}
