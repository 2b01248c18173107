// Package httpapi exposes the game over HTTP. It owns request decoding,
// response shaping and the mapping from service errors to status codes;
// all game rules live below it.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/palazzo-labs/statecraft/internal/app/domain/session"
	"github.com/palazzo-labs/statecraft/internal/app/services/catalogsvc"
	"github.com/palazzo-labs/statecraft/internal/app/services/game"
	"github.com/palazzo-labs/statecraft/internal/app/services/players"
	"github.com/palazzo-labs/statecraft/internal/errors"
	"github.com/palazzo-labs/statecraft/internal/middleware"
	"github.com/palazzo-labs/statecraft/pkg/logger"
)

// Handler wires the services to their routes.
type Handler struct {
	game    *game.Service
	catalog *catalogsvc.Service
	players *players.Service
	ping    func(context.Context) error
	logger  *logger.Logger
}

// NewHandler creates the HTTP handler. ping reports storage health for
// the readiness endpoint and may be nil.
func NewHandler(gameSvc *game.Service, catalogSvc *catalogsvc.Service, playersSvc *players.Service, ping func(context.Context) error, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{game: gameSvc, catalog: catalogSvc, players: playersSvc, ping: ping, logger: log}
}

// Register attaches all routes to the router. Authentication is enforced
// by middleware, not here.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/auth/register", h.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", h.handleLogin).Methods(http.MethodPost)

	r.HandleFunc("/api/policies", h.handleListPolicies).Methods(http.MethodGet)

	r.HandleFunc("/api/game/new", h.handleNewGame).Methods(http.MethodPost)
	r.HandleFunc("/api/game/state", h.handleGameState).Methods(http.MethodGet)
	r.HandleFunc("/api/game/end_turn", h.handleEndTurn).Methods(http.MethodPost)
	r.HandleFunc("/api/game/log", h.handleDecisionLog).Methods(http.MethodGet)

	r.HandleFunc("/api/actions/enact_policy", h.handleEnactPolicy).Methods(http.MethodPost)
	r.HandleFunc("/api/actions/handle_event", h.handleEvent).Methods(http.MethodPost)
}

// --- auth -------------------------------------------------------------------

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	p, err := h.players.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"player_id": p.ID,
		"username":  p.Username,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	token, err := h.players.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"token": token})
}

// --- catalog ----------------------------------------------------------------

type policyResponse struct {
	PolicyID    string  `json:"policy_id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Approval    float64 `json:"public_approval"`
	Budget      float64 `json:"budget_balance"`
	Capital     float64 `json:"political_capital"`
}

func (h *Handler) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.catalog.ListPolicies(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]policyResponse, 0, len(policies))
	for _, p := range policies {
		out = append(out, policyResponse{
			PolicyID:    p.ID,
			Name:        p.Name,
			Category:    p.Category,
			Description: p.Description,
			Approval:    p.Effects.Approval,
			Budget:      p.Effects.Budget,
			Capital:     p.Effects.Capital,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// --- game -------------------------------------------------------------------

type activeEventResponse struct {
	EventID     string                    `json:"event_id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Choices     []session.EventChoiceView `json:"choices"`
}

type sessionResponse struct {
	SessionID   string               `json:"session_id"`
	CareerLevel string               `json:"career_level"`
	RegionName  string               `json:"region_name"`
	TurnNumber  int                  `json:"turn_number"`
	Approval    float64              `json:"public_approval"`
	Budget      float64              `json:"budget_balance"`
	Capital     float64              `json:"political_capital"`
	ActiveEvent *activeEventResponse `json:"active_event"`
}

func toSessionResponse(v session.View) sessionResponse {
	resp := sessionResponse{
		SessionID:   v.ID,
		CareerLevel: v.CareerLevel,
		RegionName:  v.RegionName,
		TurnNumber:  v.TurnNumber,
		Approval:    v.Approval,
		Budget:      v.Budget,
		Capital:     v.Capital,
	}
	if v.EventPending() {
		resp.ActiveEvent = &activeEventResponse{
			EventID:     v.ActiveEventID,
			Name:        v.EventName,
			Description: v.EventDescription,
			Choices:     v.EventChoices,
		}
	}
	return resp
}

func (h *Handler) handleNewGame(w http.ResponseWriter, r *http.Request) {
	playerID, err := h.requirePlayer(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	view, err := h.game.StartNewGame(r.Context(), playerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toSessionResponse(view))
}

func (h *Handler) handleGameState(w http.ResponseWriter, r *http.Request) {
	playerID, err := h.requirePlayer(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	view, err := h.game.ActiveSession(r.Context(), playerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toSessionResponse(view))
}

func (h *Handler) handleEndTurn(w http.ResponseWriter, r *http.Request) {
	playerID, err := h.requirePlayer(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	view, err := h.game.EndTurn(r.Context(), playerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toSessionResponse(view))
}

type enactPolicyRequest struct {
	PolicyID string `json:"policy_id"`
}

func (h *Handler) handleEnactPolicy(w http.ResponseWriter, r *http.Request) {
	playerID, err := h.requirePlayer(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req enactPolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.PolicyID == "" {
		h.writeError(w, errors.Validation("policy_id is required."))
		return
	}

	view, err := h.game.EnactPolicy(r.Context(), playerID, req.PolicyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toSessionResponse(view))
}

type handleEventRequest struct {
	ChoiceID string `json:"choice_id"`
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	playerID, err := h.requirePlayer(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req handleEventRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.ChoiceID == "" {
		h.writeError(w, errors.Validation("choice_id is required."))
		return
	}

	view, err := h.game.ResolveEvent(r.Context(), playerID, req.ChoiceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toSessionResponse(view))
}

type auditEntryResponse struct {
	ID          int64     `json:"id"`
	TurnMade    int       `json:"turn_made"`
	ActionType  string    `json:"action_type"`
	RelatedID   string    `json:"related_id,omitempty"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *Handler) handleDecisionLog(w http.ResponseWriter, r *http.Request) {
	playerID, err := h.requirePlayer(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	entries, err := h.game.DecisionLog(r.Context(), playerID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:          e.ID,
			TurnMade:    e.TurnMade,
			ActionType:  string(e.Action),
			RelatedID:   e.RelatedID,
			Description: e.Description,
			CreatedAt:   e.CreatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// --- health -----------------------------------------------------------------

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) requirePlayer(r *http.Request) (string, error) {
	playerID := middleware.PlayerID(r.Context())
	if playerID == "" {
		return "", errors.Unauthorized("Missing authentication.")
	}
	return playerID, nil
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Validation("Invalid request body.")
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Error("failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("Internal server error.", err)
	}
	if serviceErr.HTTPStatus >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed")
	}
	h.writeJSON(w, serviceErr.HTTPStatus, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    serviceErr.Code,
			"message": serviceErr.Message,
		},
	})
}
