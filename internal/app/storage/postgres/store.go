// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/palazzo-labs/statecraft/internal/app/domain/audit"
	"github.com/palazzo-labs/statecraft/internal/app/domain/catalog"
	"github.com/palazzo-labs/statecraft/internal/app/domain/player"
	"github.com/palazzo-labs/statecraft/internal/app/domain/session"
	"github.com/palazzo-labs/statecraft/internal/app/storage"
	"github.com/palazzo-labs/statecraft/internal/errors"
)

const uniqueViolation = "23505"

// Store implements the storage interfaces over a shared connection pool.
type Store struct {
	db *sqlx.DB
}

var _ storage.SessionStore = (*Store)(nil)
var _ storage.CatalogStore = (*Store)(nil)
var _ storage.PlayerStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// --- row types --------------------------------------------------------------

type sessionRow struct {
	ID            string         `db:"session_id"`
	PlayerID      string         `db:"player_id"`
	CareerLevel   string         `db:"career_level"`
	RegionID      string         `db:"region_id"`
	TurnNumber    int            `db:"turn_number"`
	Approval      float64        `db:"public_approval"`
	Budget        float64        `db:"budget_balance"`
	Capital       float64        `db:"political_capital"`
	ActiveEventID sql.NullString `db:"active_event_id"`
	Active        bool           `db:"is_active"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r sessionRow) toDomain() session.Session {
	s := session.Session{
		ID:          r.ID,
		PlayerID:    r.PlayerID,
		CareerLevel: r.CareerLevel,
		RegionID:    r.RegionID,
		TurnNumber:  r.TurnNumber,
		Approval:    r.Approval,
		Budget:      r.Budget,
		Capital:     r.Capital,
		Active:      r.Active,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.ActiveEventID.Valid {
		s.ActiveEventID = r.ActiveEventID.String
	}
	return s
}

type policyRow struct {
	ID          string `db:"policy_id"`
	Name        string `db:"name"`
	Category    string `db:"category"`
	Description string `db:"description"`
	Effects     []byte `db:"effects"`
}

func (r policyRow) toDomain() (catalog.Policy, error) {
	p := catalog.Policy{ID: r.ID, Name: r.Name, Category: r.Category, Description: r.Description}
	if len(r.Effects) > 0 {
		if err := json.Unmarshal(r.Effects, &p.Effects); err != nil {
			return catalog.Policy{}, err
		}
	}
	return p, nil
}

type eventRow struct {
	ID          string `db:"event_id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Type        string `db:"type"`
	Choices     []byte `db:"choices"`
}

func (r eventRow) toDomain() (catalog.Event, error) {
	e := catalog.Event{ID: r.ID, Name: r.Name, Description: r.Description, Type: catalog.EventType(r.Type)}
	if len(r.Choices) > 0 {
		if err := json.Unmarshal(r.Choices, &e.Choices); err != nil {
			return catalog.Event{}, err
		}
	}
	return e, nil
}

const sessionColumns = `session_id, player_id, career_level, region_id, turn_number,
	public_approval, budget_balance, political_capital, active_event_id, is_active,
	created_at, updated_at`

// --- SessionStore -----------------------------------------------------------

func (s *Store) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sess.Active = true
	sess.CreatedAt = now
	sess.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_sessions (session_id, player_id, career_level, region_id, turn_number,
			public_approval, budget_balance, political_capital, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $10)
	`, sess.ID, sess.PlayerID, sess.CareerLevel, sess.RegionID, sess.TurnNumber,
		sess.Approval, sess.Budget, sess.Capital, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return session.Session{}, errors.Conflict("An active game already exists for this player.")
		}
		return session.Session{}, errors.StorageFailure(err)
	}
	return sess, nil
}

func (s *Store) GetActiveSession(ctx context.Context, playerID string) (session.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+sessionColumns+`
		FROM game_sessions
		WHERE player_id = $1 AND is_active = TRUE
	`, playerID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return session.Session{}, errors.NotFound("No active game found for this player.")
		}
		return session.Session{}, errors.StorageFailure(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetSessionView(ctx context.Context, sessionID string) (session.View, error) {
	var row struct {
		sessionRow
		RegionName       string         `db:"region_name"`
		EventName        sql.NullString `db:"event_name"`
		EventDescription sql.NullString `db:"event_description"`
		EventChoices     []byte         `db:"event_choices"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT gs.session_id, gs.player_id, gs.career_level, gs.region_id, gs.turn_number,
			gs.public_approval, gs.budget_balance, gs.political_capital, gs.active_event_id,
			gs.is_active, gs.created_at, gs.updated_at,
			r.name AS region_name,
			e.name AS event_name, e.description AS event_description, e.choices AS event_choices
		FROM game_sessions gs
		JOIN regions r ON gs.region_id = r.region_id
		LEFT JOIN events e ON gs.active_event_id = e.event_id
		WHERE gs.session_id = $1
	`, sessionID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return session.View{}, errors.NotFound("No active game found for this player.")
		}
		return session.View{}, errors.StorageFailure(err)
	}

	view := session.View{Session: row.toDomain(), RegionName: row.RegionName}
	if row.EventName.Valid {
		view.EventName = row.EventName.String
	}
	if row.EventDescription.Valid {
		view.EventDescription = row.EventDescription.String
	}
	if len(row.EventChoices) > 0 {
		var choices []catalog.Choice
		if err := json.Unmarshal(row.EventChoices, &choices); err != nil {
			return session.View{}, errors.StorageFailure(err)
		}
		for _, c := range choices {
			view.EventChoices = append(view.EventChoices, session.EventChoiceView{ID: c.ID, Text: c.Text})
		}
	}
	return view, nil
}

// --- CatalogStore -----------------------------------------------------------

func (s *Store) ListPolicies(ctx context.Context) ([]catalog.Policy, error) {
	var rows []policyRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT policy_id, name, category, description, effects
		FROM policies
		ORDER BY category, name
	`)
	if err != nil {
		return nil, errors.StorageFailure(err)
	}

	result := make([]catalog.Policy, 0, len(rows))
	for _, r := range rows {
		p, err := r.toDomain()
		if err != nil {
			return nil, errors.StorageFailure(err)
		}
		result = append(result, p)
	}
	return result, nil
}

func (s *Store) GetPolicy(ctx context.Context, policyID string) (catalog.Policy, error) {
	return getPolicy(ctx, s.db, policyID)
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (catalog.Event, error) {
	return getEvent(ctx, s.db, eventID)
}

func (s *Store) ListRandomEvents(ctx context.Context) ([]catalog.Event, error) {
	return listRandomEvents(ctx, s.db)
}

func (s *Store) ListRegions(ctx context.Context) ([]catalog.Region, error) {
	var regions []catalog.Region
	err := s.db.SelectContext(ctx, &regions, `
		SELECT region_id AS id, name FROM regions ORDER BY name
	`)
	if err != nil {
		return nil, errors.StorageFailure(err)
	}
	return regions, nil
}

func (s *Store) GetRegion(ctx context.Context, regionID string) (catalog.Region, error) {
	var region catalog.Region
	err := s.db.GetContext(ctx, &region, `
		SELECT region_id AS id, name FROM regions WHERE region_id = $1
	`, regionID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return catalog.Region{}, errors.NotFound("Region not found.")
		}
		return catalog.Region{}, errors.StorageFailure(err)
	}
	return region, nil
}

// Catalog lookups are shared between the pool handle and open transactions.

func getPolicy(ctx context.Context, q sqlx.QueryerContext, policyID string) (catalog.Policy, error) {
	var row policyRow
	err := sqlx.GetContext(ctx, q, &row, `
		SELECT policy_id, name, category, description, effects
		FROM policies
		WHERE policy_id = $1
	`, policyID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return catalog.Policy{}, errors.NotFound("Policy not found.")
		}
		return catalog.Policy{}, errors.StorageFailure(err)
	}
	p, err := row.toDomain()
	if err != nil {
		return catalog.Policy{}, errors.StorageFailure(err)
	}
	return p, nil
}

func getEvent(ctx context.Context, q sqlx.QueryerContext, eventID string) (catalog.Event, error) {
	var row eventRow
	err := sqlx.GetContext(ctx, q, &row, `
		SELECT event_id, name, description, type, choices
		FROM events
		WHERE event_id = $1
	`, eventID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return catalog.Event{}, errors.NotFound("Event not found.")
		}
		return catalog.Event{}, errors.StorageFailure(err)
	}
	e, err := row.toDomain()
	if err != nil {
		return catalog.Event{}, errors.StorageFailure(err)
	}
	return e, nil
}

func listRandomEvents(ctx context.Context, q sqlx.QueryerContext) ([]catalog.Event, error) {
	var rows []eventRow
	err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT event_id, name, description, type, choices
		FROM events
		WHERE type = 'random'
		ORDER BY event_id
	`)
	if err != nil {
		return nil, errors.StorageFailure(err)
	}

	result := make([]catalog.Event, 0, len(rows))
	for _, r := range rows {
		e, err := r.toDomain()
		if err != nil {
			return nil, errors.StorageFailure(err)
		}
		result = append(result, e)
	}
	return result, nil
}

// --- PlayerStore ------------------------------------------------------------

func (s *Store) CreatePlayer(ctx context.Context, p player.Player) (player.Player, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (player_id, username, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, p.ID, p.Username, p.PasswordHash, p.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return player.Player{}, errors.Conflict("Username already exists.")
		}
		return player.Player{}, errors.StorageFailure(err)
	}
	return p, nil
}

func (s *Store) GetPlayer(ctx context.Context, id string) (player.Player, error) {
	return s.getPlayerBy(ctx, "player_id", id)
}

func (s *Store) GetPlayerByUsername(ctx context.Context, username string) (player.Player, error) {
	return s.getPlayerBy(ctx, "username", username)
}

func (s *Store) getPlayerBy(ctx context.Context, column, value string) (player.Player, error) {
	var p player.Player
	row := s.db.QueryRowContext(ctx, `
		SELECT player_id, username, password_hash, created_at
		FROM players
		WHERE `+column+` = $1
	`, value)
	if err := row.Scan(&p.ID, &p.Username, &p.PasswordHash, &p.CreatedAt); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return player.Player{}, errors.NotFound("Player not found.")
		}
		return player.Player{}, errors.StorageFailure(err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

// --- AuditStore -------------------------------------------------------------

func (s *Store) ListAuditEntries(ctx context.Context, sessionID string) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, turn_made, action_type, related_id, description, created_at
		FROM decisions_log
		WHERE session_id = $1
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, errors.StorageFailure(err)
	}
	defer rows.Close()

	var result []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.TurnMade, &e.Action, &e.RelatedID, &e.Description, &e.CreatedAt); err != nil {
			return nil, errors.StorageFailure(err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageFailure(err)
	}
	return result, nil
}
