package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/palazzo-labs/statecraft/internal/app/domain/audit"
	"github.com/palazzo-labs/statecraft/internal/app/domain/catalog"
	"github.com/palazzo-labs/statecraft/internal/app/domain/session"
	"github.com/palazzo-labs/statecraft/internal/app/storage"
	"github.com/palazzo-labs/statecraft/internal/errors"

	"github.com/jmoiron/sqlx"
)

// unitOfWork is one database transaction spanning a full transition: row
// lock, catalog reads, session update and audit append.
type unitOfWork struct {
	tx *sqlx.Tx
}

var _ storage.Tx = (*unitOfWork)(nil)

// Begin opens a unit of work.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.StorageFailure(err)
	}
	return &unitOfWork{tx: tx}, nil
}

// LockActiveSession takes the exclusive row lock on the player's active
// session. Blocks until a competing unit of work commits or rolls back.
func (u *unitOfWork) LockActiveSession(ctx context.Context, playerID string) (session.Session, error) {
	var row sessionRow
	err := u.tx.GetContext(ctx, &row, `
		SELECT `+sessionColumns+`
		FROM game_sessions
		WHERE player_id = $1 AND is_active = TRUE
		FOR UPDATE
	`, playerID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return session.Session{}, errors.NotFound("No active game found.")
		}
		return session.Session{}, errors.StorageFailure(err)
	}
	return row.toDomain(), nil
}

func (u *unitOfWork) GetPolicy(ctx context.Context, policyID string) (catalog.Policy, error) {
	return getPolicy(ctx, u.tx, policyID)
}

func (u *unitOfWork) GetEvent(ctx context.Context, eventID string) (catalog.Event, error) {
	return getEvent(ctx, u.tx, eventID)
}

func (u *unitOfWork) ListRandomEvents(ctx context.Context) ([]catalog.Event, error) {
	return listRandomEvents(ctx, u.tx)
}

func (u *unitOfWork) UpdateSession(ctx context.Context, sessionID string, fields storage.SessionFields) error {
	var activeEvent interface{}
	if fields.ActiveEventID != "" {
		activeEvent = fields.ActiveEventID
	}

	result, err := u.tx.ExecContext(ctx, `
		UPDATE game_sessions
		SET turn_number = $2, public_approval = $3, budget_balance = $4,
			political_capital = $5, active_event_id = $6, updated_at = $7
		WHERE session_id = $1
	`, sessionID, fields.TurnNumber, fields.Approval, fields.Budget,
		fields.Capital, activeEvent, time.Now().UTC())
	if err != nil {
		return errors.StorageFailure(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.StorageFailure(err)
	}
	if rows == 0 {
		return errors.NotFound("No active game found.")
	}
	return nil
}

func (u *unitOfWork) AppendAudit(ctx context.Context, entry audit.Entry) error {
	_, err := u.tx.ExecContext(ctx, `
		INSERT INTO decisions_log (session_id, turn_made, action_type, related_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.SessionID, entry.TurnMade, string(entry.Action), entry.RelatedID,
		entry.Description, time.Now().UTC())
	if err != nil {
		return errors.StorageFailure(err)
	}
	return nil
}

func (u *unitOfWork) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return errors.StorageFailure(err)
	}
	return nil
}

func (u *unitOfWork) Rollback() error {
	err := u.tx.Rollback()
	if err != nil && !stderrors.Is(err, sql.ErrTxDone) {
		return errors.StorageFailure(err)
	}
	return nil
}
