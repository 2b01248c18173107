package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/palazzo-labs/statecraft/internal/app/domain/audit"
	"github.com/palazzo-labs/statecraft/internal/app/domain/player"
	"github.com/palazzo-labs/statecraft/internal/app/domain/session"
	"github.com/palazzo-labs/statecraft/internal/app/storage"
	"github.com/palazzo-labs/statecraft/internal/errors"
)

var sessionCols = []string{
	"session_id", "player_id", "career_level", "region_id", "turn_number",
	"public_approval", "budget_balance", "political_capital", "active_event_id",
	"is_active", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestUnitOfWorkCommitFlow(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM game_sessions (.+) FOR UPDATE").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow("s1", "p1", "Sindaco", "r1", 1, 50.0, 1000000.0, 100.0, nil, true,
				time.Now(), time.Now()))
	mock.ExpectExec("UPDATE game_sessions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO decisions_log").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	locked, err := tx.LockActiveSession(ctx, "p1")
	if err != nil {
		t.Fatalf("lock session: %v", err)
	}
	if locked.ID != "s1" || locked.Capital != 100.0 {
		t.Fatalf("unexpected locked session: %#v", locked)
	}

	err = tx.UpdateSession(ctx, "s1", storage.SessionFields{
		TurnNumber: 1, Approval: 55.0, Budget: 980000, Capital: 70,
	})
	if err != nil {
		t.Fatalf("update session: %v", err)
	}

	err = tx.AppendAudit(ctx, audit.Entry{
		SessionID: "s1", TurnMade: 1, Action: audit.ActionEnactPolicy,
		RelatedID: "pol1", Description: "Enacted policy: Tax Reform.",
	})
	if err != nil {
		t.Fatalf("append audit: %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUnitOfWorkRollbackOnMissingSession(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM game_sessions (.+) FOR UPDATE").
		WithArgs("p1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	_, err = tx.LockActiveSession(ctx, "p1")
	if !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateSessionConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO game_sessions").
		WillReturnError(&pq.Error{Code: uniqueViolation})

	_, err := store.CreateSession(context.Background(), session.Session{PlayerID: "p1", RegionID: "r1"})
	if !errors.IsCode(err, errors.CodeConflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestCreatePlayerConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO players").
		WillReturnError(&pq.Error{Code: uniqueViolation})

	_, err := store.CreatePlayer(context.Background(), player.Player{Username: "taken"})
	if !errors.IsCode(err, errors.CodeConflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestGetActiveSessionNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM game_sessions").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetActiveSession(context.Background(), "ghost")
	if !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := New(db)
	ctx := context.Background()

	p, err := store.CreatePlayer(ctx, player.Player{Username: "it-player"})
	if err != nil {
		t.Fatalf("create player: %v", err)
	}

	regions, err := store.ListRegions(ctx)
	if err != nil || len(regions) == 0 {
		t.Fatalf("list regions: %v (%d)", err, len(regions))
	}

	sess, err := store.CreateSession(ctx, session.Session{
		PlayerID: p.ID, CareerLevel: "Sindaco", RegionID: regions[0].ID,
		TurnNumber: 1, Approval: 50, Budget: 1000000, Capital: 100,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, err := store.CreateSession(ctx, session.Session{PlayerID: p.ID, RegionID: regions[0].ID}); !errors.IsCode(err, errors.CodeConflict) {
		t.Fatalf("expected Conflict for second active session, got %v", err)
	}

	view, err := store.GetSessionView(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	if view.RegionName == "" {
		t.Fatalf("expected joined region name")
	}
}

func TestUpdateSessionSurfacesDriverFailure(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE game_sessions").
		WillReturnResult(sqlmock.NewErrorResult(fmt.Errorf("rows affected unavailable")))
	mock.ExpectRollback()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	err = tx.UpdateSession(ctx, "s1", storage.SessionFields{TurnNumber: 2})
	if !errors.IsCode(err, errors.CodeStorageFailure) {
		t.Fatalf("expected StorageFailure, got %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
