package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/palazzo-labs/statecraft/internal/app/domain/catalog"
	"github.com/palazzo-labs/statecraft/internal/app/domain/effect"
	"github.com/palazzo-labs/statecraft/internal/app/services/catalogsvc"
	"github.com/palazzo-labs/statecraft/internal/app/services/game"
	"github.com/palazzo-labs/statecraft/internal/app/services/players"
	"github.com/palazzo-labs/statecraft/internal/app/storage/memory"
	"github.com/palazzo-labs/statecraft/internal/middleware"
	"github.com/palazzo-labs/statecraft/pkg/logger"
)

// fixedSource pins the event draw so each test controls whether an event
// fires at end of turn.
type fixedSource struct{ f float64 }

func (s fixedSource) Float64() float64 { return s.f }
func (s fixedSource) Intn(n int) int   { return 0 }

type testServer struct {
	router *mux.Router
	player string
}

func newTestServer(t *testing.T, eventDraw float64) *testServer {
	t.Helper()

	store := memory.NewStore()
	store.AddRegion(catalog.Region{ID: "r1", Name: "Lazio"})
	store.AddPolicy(catalog.Policy{
		ID:       "pol-tax",
		Name:     "Tax Reform",
		Category: "economy",
		Effects:  effect.Vector{Approval: 5, Budget: -20000, Capital: -30},
	})
	store.AddEvent(catalog.Event{
		ID:          "evt-strike",
		Name:        "Transport Strike",
		Description: "Public transport workers walk out.",
		Type:        catalog.EventTypeRandom,
		Choices: []catalog.Choice{
			{ID: "c1", Text: "Negotiate", Effects: effect.Vector{Approval: 2, Budget: -30000, Capital: 5}},
		},
	})

	log := logger.NewDefault("httpapi-test")
	log.SetOutput(io.Discard)

	gameSvc := game.NewService(store, store, store, game.Config{Rand: fixedSource{f: eventDraw}}, nil, log)
	catalogSvc := catalogsvc.NewService(store, log)
	playersSvc := players.NewService(store, players.Config{JWTSecret: "test-secret", TokenTTL: time.Hour}, log)

	handler := NewHandler(gameSvc, catalogSvc, playersSvc, nil, log)
	router := mux.NewRouter()
	handler.Register(router)

	return &testServer{router: router, player: "p1"}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(middleware.WithPlayerID(context.Background(), ts.player))

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestNewGameAndState(t *testing.T) {
	ts := newTestServer(t, 0.9)

	rec := ts.do(t, http.MethodPost, "/api/game/new", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created sessionResponse
	decodeBody(t, rec, &created)
	require.Equal(t, 1, created.TurnNumber)
	require.Equal(t, 50.0, created.Approval)
	require.Equal(t, 1000000.0, created.Budget)
	require.Equal(t, 100.0, created.Capital)
	require.Equal(t, "Sindaco", created.CareerLevel)
	require.Equal(t, "Lazio", created.RegionName)
	require.Nil(t, created.ActiveEvent)

	rec = ts.do(t, http.MethodGet, "/api/game/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// second new game conflicts
	rec = ts.do(t, http.MethodPost, "/api/game/new", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGameStateWithoutSession(t *testing.T) {
	ts := newTestServer(t, 0.9)

	rec := ts.do(t, http.MethodGet, "/api/game/state", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeBody(t, rec, &resp)
	require.Equal(t, "NOT_FOUND", resp.Error.Code)
	require.Equal(t, "No active game found for this player.", resp.Error.Message)
}

func TestEnactPolicyEndpoint(t *testing.T) {
	ts := newTestServer(t, 0.9)
	ts.do(t, http.MethodPost, "/api/game/new", nil)

	rec := ts.do(t, http.MethodPost, "/api/actions/enact_policy", map[string]string{"policy_id": "pol-tax"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sessionResponse
	decodeBody(t, rec, &resp)
	require.Equal(t, 55.0, resp.Approval)
	require.Equal(t, 980000.0, resp.Budget)
	require.Equal(t, 70.0, resp.Capital)

	// missing body field
	rec = ts.do(t, http.MethodPost, "/api/actions/enact_policy", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// unknown policy
	rec = ts.do(t, http.MethodPost, "/api/actions/enact_policy", map[string]string{"policy_id": "nope"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEndTurnAndEventFlow(t *testing.T) {
	ts := newTestServer(t, 0.1)
	ts.do(t, http.MethodPost, "/api/game/new", nil)

	rec := ts.do(t, http.MethodPost, "/api/game/end_turn", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sessionResponse
	decodeBody(t, rec, &resp)
	require.Equal(t, 2, resp.TurnNumber)
	require.NotNil(t, resp.ActiveEvent)
	require.Equal(t, "evt-strike", resp.ActiveEvent.EventID)
	require.Len(t, resp.ActiveEvent.Choices, 1)

	// blocked while the event is pending
	rec = ts.do(t, http.MethodPost, "/api/game/end_turn", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// wrong choice id
	rec = ts.do(t, http.MethodPost, "/api/actions/handle_event", map[string]string{"choice_id": "c99"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/actions/handle_event", map[string]string{"choice_id": "c1"})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	require.Nil(t, resp.ActiveEvent)
	require.Equal(t, 105.0, resp.Capital)
}

func TestDecisionLogEndpoint(t *testing.T) {
	ts := newTestServer(t, 0.9)
	ts.do(t, http.MethodPost, "/api/game/new", nil)
	ts.do(t, http.MethodPost, "/api/actions/enact_policy", map[string]string{"policy_id": "pol-tax"})
	ts.do(t, http.MethodPost, "/api/game/end_turn", nil)

	rec := ts.do(t, http.MethodGet, "/api/game/log", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []auditEntryResponse
	decodeBody(t, rec, &entries)
	require.Len(t, entries, 2)
	require.Equal(t, "enact_policy", entries[0].ActionType)
	require.Equal(t, "Enacted policy: Tax Reform.", entries[0].Description)
	require.Equal(t, "end_turn", entries[1].ActionType)
}

func TestListPoliciesEndpoint(t *testing.T) {
	ts := newTestServer(t, 0.9)

	rec := ts.do(t, http.MethodGet, "/api/policies", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var policies []policyResponse
	decodeBody(t, rec, &policies)
	require.Len(t, policies, 1)
	require.Equal(t, "pol-tax", policies[0].PolicyID)
	require.Equal(t, -30.0, policies[0].Capital)
}

func TestAuthEndpoints(t *testing.T) {
	ts := newTestServer(t, 0.9)

	rec := ts.do(t, http.MethodPost, "/api/auth/register", map[string]string{"username": "giulia", "password": "passw0rd"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/register", map[string]string{"username": "giulia", "password": "passw0rd"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "giulia", "password": "passw0rd"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &login)
	require.NotEmpty(t, login.Token)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "giulia", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, 0.9)

	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
