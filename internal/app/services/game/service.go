// Package game implements the turn-based transition controller. Every
// state-changing operation runs inside one storage unit of work under the
// session row lock, so concurrent requests for the same player serialize
// and partial writes never become visible.
package game

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/palazzo-labs/statecraft/internal/app/domain/audit"
	"github.com/palazzo-labs/statecraft/internal/app/domain/session"
	"github.com/palazzo-labs/statecraft/internal/app/engine"
	"github.com/palazzo-labs/statecraft/internal/app/metrics"
	"github.com/palazzo-labs/statecraft/internal/app/storage"
	"github.com/palazzo-labs/statecraft/internal/errors"
	"github.com/palazzo-labs/statecraft/pkg/logger"
)

// startCareerLevel is the rank every new session begins at.
const startCareerLevel = "Sindaco"

// Config tunes the service's random behaviour.
type Config struct {
	// EventChance is the probability a random event fires at end of turn.
	// Nil means engine.DefaultEventChance; an explicit zero disables
	// random events.
	EventChance *float64
	// Rand overrides the randomness source; nil uses math/rand. Tests
	// inject a scripted source here.
	Rand engine.Source
}

// Service coordinates game sessions, the rules engine and the audit log.
type Service struct {
	sessions storage.SessionStore
	catalog  storage.CatalogStore
	auditLog storage.AuditStore
	trigger  *engine.Trigger
	rand     engine.Source
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewService creates the game service.
func NewService(sessions storage.SessionStore, cat storage.CatalogStore, auditLog storage.AuditStore, cfg Config, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("game")
	}
	chance := engine.DefaultEventChance
	if cfg.EventChance != nil {
		chance = *cfg.EventChance
	}
	src := cfg.Rand
	if src == nil {
		src = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Service{
		sessions: sessions,
		catalog:  cat,
		auditLog: auditLog,
		trigger:  engine.NewTrigger(chance, src),
		rand:     src,
		metrics:  m,
		logger:   log,
	}
}

// StartNewGame creates a fresh session for the player in a randomly chosen
// region. Conflict when the player already has an active game.
func (s *Service) StartNewGame(ctx context.Context, playerID string) (session.View, error) {
	if _, err := s.sessions.GetActiveSession(ctx, playerID); err == nil {
		return session.View{}, errors.Conflict("An active game already exists for this player.")
	} else if !errors.IsCode(err, errors.CodeNotFound) {
		return session.View{}, err
	}

	regions, err := s.catalog.ListRegions(ctx)
	if err != nil {
		return session.View{}, err
	}
	if len(regions) == 0 {
		return session.View{}, errors.Internal("No regions are configured.", nil)
	}
	region := regions[s.rand.Intn(len(regions))]

	created, err := s.sessions.CreateSession(ctx, session.Session{
		PlayerID:    playerID,
		CareerLevel: startCareerLevel,
		RegionID:    region.ID,
		TurnNumber:  1,
		Approval:    engine.StartApproval,
		Budget:      engine.StartBudget,
		Capital:     engine.StartCapital,
	})
	if err != nil {
		return session.View{}, err
	}

	s.logger.WithFields(map[string]interface{}{
		"player_id":  playerID,
		"session_id": created.ID,
		"region":     region.Name,
	}).Info("new game started")
	return s.sessions.GetSessionView(ctx, created.ID)
}

// ActiveSession returns the player's active session in display form.
func (s *Service) ActiveSession(ctx context.Context, playerID string) (session.View, error) {
	sess, err := s.sessions.GetActiveSession(ctx, playerID)
	if err != nil {
		return session.View{}, err
	}
	return s.sessions.GetSessionView(ctx, sess.ID)
}

// DecisionLog returns the committed audit trail for the player's active
// session, oldest first.
func (s *Service) DecisionLog(ctx context.Context, playerID string) ([]audit.Entry, error) {
	sess, err := s.sessions.GetActiveSession(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return s.auditLog.ListAuditEntries(ctx, sess.ID)
}

// EnactPolicy applies a policy's effects to the player's session. The
// capital cost is the absolute value of the policy's capital effect; an
// unaffordable policy leaves the session untouched. A pending event does
// not block enactment.
func (s *Service) EnactPolicy(ctx context.Context, playerID, policyID string) (view session.View, err error) {
	defer func() { s.metrics.ObserveTransition(string(audit.ActionEnactPolicy), outcomeLabel(err)) }()

	tx, err := s.sessions.Begin(ctx)
	if err != nil {
		return session.View{}, err
	}
	defer tx.Rollback()

	sess, err := tx.LockActiveSession(ctx, playerID)
	if err != nil {
		return session.View{}, err
	}
	policy, err := tx.GetPolicy(ctx, policyID)
	if err != nil {
		return session.View{}, err
	}

	next, err := engine.Apply(sess, policy.Effects, engine.PolicyPath)
	if err != nil {
		return session.View{}, err
	}

	if err := tx.UpdateSession(ctx, sess.ID, storage.SessionFields{
		TurnNumber:    next.TurnNumber,
		Approval:      next.Approval,
		Budget:        next.Budget,
		Capital:       next.Capital,
		ActiveEventID: next.ActiveEventID,
	}); err != nil {
		return session.View{}, err
	}
	if err := tx.AppendAudit(ctx, audit.Entry{
		SessionID:   sess.ID,
		TurnMade:    sess.TurnNumber,
		Action:      audit.ActionEnactPolicy,
		RelatedID:   policy.ID,
		Description: fmt.Sprintf("Enacted policy: %s.", policy.Name),
	}); err != nil {
		return session.View{}, err
	}
	if err := tx.Commit(); err != nil {
		return session.View{}, err
	}

	s.logger.WithFields(map[string]interface{}{
		"session_id": sess.ID,
		"policy_id":  policy.ID,
		"turn":       sess.TurnNumber,
	}).Info("policy enacted")
	return s.sessions.GetSessionView(ctx, sess.ID)
}

// ResolveEvent applies the chosen response to the pending event and clears
// it. The capital delta keeps its stored sign, unlike the policy path.
func (s *Service) ResolveEvent(ctx context.Context, playerID, choiceID string) (view session.View, err error) {
	defer func() { s.metrics.ObserveTransition(string(audit.ActionHandleEvent), outcomeLabel(err)) }()

	tx, err := s.sessions.Begin(ctx)
	if err != nil {
		return session.View{}, err
	}
	defer tx.Rollback()

	sess, err := tx.LockActiveSession(ctx, playerID)
	if err != nil {
		return session.View{}, err
	}
	if !sess.EventPending() {
		return session.View{}, errors.NotFound("No active event to handle.")
	}

	event, err := tx.GetEvent(ctx, sess.ActiveEventID)
	if err != nil {
		return session.View{}, err
	}
	choice, ok := event.Choice(choiceID)
	if !ok {
		return session.View{}, errors.InvalidChoice("Invalid choice for the active event.")
	}

	next, err := engine.Apply(sess, choice.Effects, engine.EventPath)
	if err != nil {
		return session.View{}, err
	}

	if err := tx.UpdateSession(ctx, sess.ID, storage.SessionFields{
		TurnNumber: next.TurnNumber,
		Approval:   next.Approval,
		Budget:     next.Budget,
		Capital:    next.Capital,
		// pending event cleared
		ActiveEventID: "",
	}); err != nil {
		return session.View{}, err
	}
	if err := tx.AppendAudit(ctx, audit.Entry{
		SessionID:   sess.ID,
		TurnMade:    sess.TurnNumber,
		Action:      audit.ActionHandleEvent,
		RelatedID:   event.ID,
		Description: fmt.Sprintf("Responded to event '%s' with choice: '%s'.", event.Name, choice.Text),
	}); err != nil {
		return session.View{}, err
	}
	if err := tx.Commit(); err != nil {
		return session.View{}, err
	}

	s.logger.WithFields(map[string]interface{}{
		"session_id": sess.ID,
		"event_id":   event.ID,
		"choice_id":  choice.ID,
	}).Info("event resolved")
	return s.sessions.GetSessionView(ctx, sess.ID)
}

// EndTurn advances the session one turn: expenses are deducted, approval
// drifts toward the midpoint and a random event may enter play. Blocked
// while an event is pending.
func (s *Service) EndTurn(ctx context.Context, playerID string) (view session.View, err error) {
	defer func() { s.metrics.ObserveTransition(string(audit.ActionEndTurn), outcomeLabel(err)) }()

	tx, err := s.sessions.Begin(ctx)
	if err != nil {
		return session.View{}, err
	}
	defer tx.Rollback()

	sess, err := tx.LockActiveSession(ctx, playerID)
	if err != nil {
		return session.View{}, err
	}
	if sess.EventPending() {
		return session.View{}, errors.EventActive("You must respond to the active event before ending the turn.")
	}

	next := engine.AdvanceTurn(sess)

	activeEventID := ""
	candidates, err := tx.ListRandomEvents(ctx)
	if err != nil {
		return session.View{}, err
	}
	if eventID, ok := s.trigger.Pick(candidates); ok {
		activeEventID = eventID
		s.metrics.ObserveEventTriggered()
	}

	if err := tx.UpdateSession(ctx, sess.ID, storage.SessionFields{
		TurnNumber:    next.TurnNumber,
		Approval:      next.Approval,
		Budget:        next.Budget,
		Capital:       next.Capital,
		ActiveEventID: activeEventID,
	}); err != nil {
		return session.View{}, err
	}
	if err := tx.AppendAudit(ctx, audit.Entry{
		SessionID:   sess.ID,
		TurnMade:    sess.TurnNumber,
		Action:      audit.ActionEndTurn,
		Description: fmt.Sprintf("Ended turn %d.", sess.TurnNumber),
	}); err != nil {
		return session.View{}, err
	}
	if err := tx.Commit(); err != nil {
		return session.View{}, err
	}

	s.logger.WithFields(map[string]interface{}{
		"session_id":      sess.ID,
		"turn":            next.TurnNumber,
		"event_triggered": activeEventID != "",
	}).Info("turn ended")
	return s.sessions.GetSessionView(ctx, sess.ID)
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if svcErr := errors.GetServiceError(err); svcErr != nil {
		return string(svcErr.Code)
	}
	return string(errors.CodeInternal)
}
