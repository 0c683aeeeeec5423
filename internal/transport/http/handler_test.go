package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/elo-chess-backend/internal/adapters/memory"
	"github.com/randomtoy/elo-chess-backend/internal/domain/game"
	"github.com/randomtoy/elo-chess-backend/internal/domain/rating"
	transporthttp "github.com/randomtoy/elo-chess-backend/internal/transport/http"
	"github.com/randomtoy/elo-chess-backend/internal/usecase"
)

func newTestServer(t *testing.T) *transporthttp.Handlers {
	t.Helper()
	games := memory.New()
	ratings := memory.NewRatingStore(rating.DefaultKFactor)
	locks := usecase.NewGameLocks()
	settler := usecase.NewSettler(games, ratings, locks, nil)
	return transporthttp.NewHandlers(
		usecase.NewGameCreator(games),
		usecase.NewGameGetter(games),
		usecase.NewMoveSubmitter(games, locks, settler),
		usecase.NewClaimSubmitter(games, locks, settler, game.Adjudicator{DrawWindow: time.Minute}),
		usecase.NewOutcomeSignaler(games, locks, settler),
		settler,
		usecase.NewRatingGetter(ratings),
		usecase.NewKFactorSetter(ratings),
		nil,
	)
}

func doRequest(t *testing.T, h *transporthttp.Handlers, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	transporthttp.New(h, transporthttp.Options{}).ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

type gameResp struct {
	GameID string `json:"game_id"`
	Result struct {
		Status string `json:"status"`
		Winner string `json:"winner"`
	} `json:"result"`
	Layout     string `json:"layout"`
	SideToMove string `json:"side_to_move"`
	PlyCount   int    `json:"ply_count"`
	Settled    bool   `json:"settled"`
	Version    int    `json:"version"`
	Pieces     []struct {
		Square   string `json:"square"`
		Captured bool   `json:"captured"`
	} `json:"pieces"`
	Claims []struct {
		Type    string `json:"type"`
		Verdict string `json:"verdict"`
	} `json:"claims"`
}

type problemResp struct {
	Status int    `json:"status"`
	Code   string `json:"code"`
}

func createGame(t *testing.T, h *transporthttp.Handlers, white, black uuid.UUID) gameResp {
	t.Helper()
	rec := doRequest(t, h, http.MethodPost, "/api/v1/games", map[string]any{
		"white_id": white,
		"black_id": black,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var g gameResp
	decode(t, rec, &g)
	return g
}

func expectProblem(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	var p problemResp
	decode(t, rec, &p)
	if p.Code != code || p.Status != status {
		t.Fatalf("problem: want %d %q, got %d %q", status, code, p.Status, p.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t)
	rec := doRequest(t, h, http.MethodGet, "/api/v1/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]bool
	decode(t, rec, &resp)
	if !resp["ok"] {
		t.Fatalf("expected ok:true, got %v", resp)
	}
}

func TestCreateAndGetGame(t *testing.T) {
	h := newTestServer(t)
	created := createGame(t, h, uuid.New(), uuid.New())
	if created.Result.Status != "Scheduled" || created.Layout != game.StandardLayout || len(created.Pieces) != 32 {
		t.Fatalf("unexpected game %+v", created)
	}

	rec := doRequest(t, h, http.MethodGet, "/api/v1/games/"+created.GameID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	var got gameResp
	decode(t, rec, &got)
	if got.GameID != created.GameID || got.SideToMove != "white" {
		t.Fatalf("unexpected game %+v", got)
	}
}

func TestCreateGame_Invalid(t *testing.T) {
	h := newTestServer(t)
	p := uuid.New()

	rec := doRequest(t, h, http.MethodPost, "/api/v1/games", map[string]any{"white_id": p, "black_id": p})
	expectProblem(t, rec, http.StatusUnprocessableEntity, "same_player")

	rec = doRequest(t, h, http.MethodPost, "/api/v1/games", map[string]any{
		"white_id": p, "black_id": uuid.New(), "layout": "not a fen",
	})
	expectProblem(t, rec, http.StatusUnprocessableEntity, "invalid_layout")

	rec = doRequest(t, h, http.MethodPost, "/api/v1/games", map[string]any{"white_id": "nope"})
	expectProblem(t, rec, http.StatusBadRequest, "bad_request")
}

func TestGetGame_NotFound(t *testing.T) {
	h := newTestServer(t)
	rec := doRequest(t, h, http.MethodGet, "/api/v1/games/"+uuid.New().String(), nil)
	expectProblem(t, rec, http.StatusNotFound, "not_found")

	rec = doRequest(t, h, http.MethodGet, "/api/v1/games/not-a-uuid", nil)
	expectProblem(t, rec, http.StatusNotFound, "not_found")
}

func TestApplyMove(t *testing.T) {
	h := newTestServer(t)
	g := createGame(t, h, uuid.New(), uuid.New())

	rec := doRequest(t, h, http.MethodPost, "/api/v1/games/"+g.GameID+"/moves", map[string]any{"uci": "e2e4"})
	if rec.Code != http.StatusOK {
		t.Fatalf("move: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Accepted bool `json:"accepted"`
		Move     struct {
			UCI         string `json:"uci"`
			Ply         int    `json:"ply"`
			LayoutAfter string `json:"layout_after"`
		} `json:"move"`
		Game gameResp `json:"game"`
	}
	decode(t, rec, &resp)
	if !resp.Accepted || resp.Move.UCI != "e2e4" || resp.Move.Ply != 1 {
		t.Fatalf("unexpected move %+v", resp.Move)
	}
	if resp.Game.Result.Status != "In progress" || resp.Game.Version != 1 {
		t.Fatalf("unexpected game %+v", resp.Game)
	}
	if resp.Move.LayoutAfter != resp.Game.Layout {
		t.Fatalf("layout_after %q differs from game layout %q", resp.Move.LayoutAfter, resp.Game.Layout)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/v1/games/"+g.GameID+"/moves", map[string]any{"from": "e7", "to": "e5"})
	if rec.Code != http.StatusOK {
		t.Fatalf("from/to move: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestApplyMove_Illegal(t *testing.T) {
	h := newTestServer(t)
	g := createGame(t, h, uuid.New(), uuid.New())
	path := "/api/v1/games/" + g.GameID + "/moves"

	// Black piece on White's turn.
	rec := doRequest(t, h, http.MethodPost, path, map[string]any{"uci": "e7e5"})
	expectProblem(t, rec, http.StatusUnprocessableEntity, "illegal_move")

	rec = doRequest(t, h, http.MethodPost, path, map[string]any{"uci": "z9"})
	expectProblem(t, rec, http.StatusUnprocessableEntity, "illegal_move")

	rec = doRequest(t, h, http.MethodPost, path, map[string]any{})
	expectProblem(t, rec, http.StatusBadRequest, "bad_request")
}

func TestOutcomeSettlesRatings(t *testing.T) {
	h := newTestServer(t)
	white, black := uuid.New(), uuid.New()
	g := createGame(t, h, white, black)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/games/"+g.GameID+"/outcome", map[string]any{
		"kind": "resignation", "winner": "black",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("outcome: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Result struct {
			Status string `json:"status"`
			Winner string `json:"winner"`
		} `json:"result"`
	}
	decode(t, rec, &resp)
	if resp.Result.Status != "Finished (basic rules)" || resp.Result.Winner != "black" {
		t.Fatalf("unexpected result %+v", resp.Result)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/players/"+black.String()+"/rating", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rating: expected 200, got %d", rec.Code)
	}
	var elo rating.Elo
	decode(t, rec, &elo)
	if elo.Rating != 1216 || elo.Wins != 1 {
		t.Fatalf("black: want 1216 with one win, got %+v", elo)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/v1/games/"+g.GameID+"/settlement", nil)
	expectProblem(t, rec, http.StatusConflict, "already_settled")

	rec = doRequest(t, h, http.MethodPost, "/api/v1/games/"+g.GameID+"/outcome", map[string]any{"kind": "abandonment"})
	expectProblem(t, rec, http.StatusConflict, "game_already_terminal")
}

func TestSetKFactor(t *testing.T) {
	h := newTestServer(t)
	white, black := uuid.New(), uuid.New()
	path := "/api/v1/players/" + black.String() + "/k-factor"

	rec := doRequest(t, h, http.MethodPut, path, map[string]any{"k_factor": 16})
	if rec.Code != http.StatusOK {
		t.Fatalf("k-factor: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var elo rating.Elo
	decode(t, rec, &elo)
	if elo.KFactor != 16 || elo.Rating != 1200 {
		t.Fatalf("unexpected record %+v", elo)
	}

	expectProblem(t, doRequest(t, h, http.MethodPut, path, map[string]any{"k_factor": 0}),
		http.StatusUnprocessableEntity, "invalid_k_factor")
	expectProblem(t, doRequest(t, h, http.MethodPut, path, map[string]any{}),
		http.StatusBadRequest, "bad_request")

	g := createGame(t, h, white, black)
	rec = doRequest(t, h, http.MethodPost, "/api/v1/games/"+g.GameID+"/outcome", map[string]any{
		"kind": "resignation", "winner": "black",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("outcome: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/players/"+black.String()+"/rating", nil)
	decode(t, rec, &elo)
	if elo.Rating != 1208 {
		t.Fatalf("black: want 1208 at k=16, got %+v", elo)
	}
	rec = doRequest(t, h, http.MethodGet, "/api/v1/players/"+white.String()+"/rating", nil)
	decode(t, rec, &elo)
	if elo.Rating != 1184 {
		t.Fatalf("white: want 1184 at k=32, got %+v", elo)
	}
}

func TestOutcome_Invalid(t *testing.T) {
	h := newTestServer(t)
	g := createGame(t, h, uuid.New(), uuid.New())
	path := "/api/v1/games/" + g.GameID + "/outcome"

	expectProblem(t, doRequest(t, h, http.MethodPost, path, map[string]any{"kind": "checkmate"}),
		http.StatusUnprocessableEntity, "invalid_outcome")
	expectProblem(t, doRequest(t, h, http.MethodPost, path, map[string]any{"kind": "flag"}),
		http.StatusUnprocessableEntity, "unknown_outcome")
	expectProblem(t, doRequest(t, h, http.MethodPost, path, map[string]any{"kind": "postpone"}),
		http.StatusConflict, "invalid_transition")
}

func TestClaims(t *testing.T) {
	h := newTestServer(t)
	white, black := uuid.New(), uuid.New()
	g := createGame(t, h, white, black)
	path := "/api/v1/games/" + g.GameID + "/claims"

	expectProblem(t, doRequest(t, h, http.MethodPost, path, map[string]any{"player_id": uuid.New(), "type": "d"}),
		http.StatusForbidden, "not_participant")
	expectProblem(t, doRequest(t, h, http.MethodPost, path, map[string]any{"player_id": white, "type": "xx"}),
		http.StatusUnprocessableEntity, "unknown_claim_type")

	rec := doRequest(t, h, http.MethodPost, path, map[string]any{"player_id": white, "type": "fifty_moves"})
	if rec.Code != http.StatusOK {
		t.Fatalf("claim: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Verdict string   `json:"verdict"`
		Game    gameResp `json:"game"`
	}
	decode(t, rec, &resp)
	if resp.Verdict != "rejected" || len(resp.Game.Claims) != 1 || resp.Game.Claims[0].Type != "fifty_moves" {
		t.Fatalf("unexpected claim response %+v", resp)
	}

	doRequest(t, h, http.MethodPost, path, map[string]any{"player_id": white, "type": "d"})
	rec = doRequest(t, h, http.MethodPost, path, map[string]any{"player_id": black, "type": "draw"})
	decode(t, rec, &resp)
	if resp.Verdict != "upheld" || resp.Game.Result.Status != "Draw" || !resp.Game.Settled {
		t.Fatalf("mutual draw: unexpected response %+v", resp)
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t)
	e := transporthttp.New(h, transporthttp.Options{RateLimiter: memory.NewRateLimiter(0.001, 1, time.Minute)})

	codes := make([]int, 2)
	for i := range codes {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil))
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("want 200 then 429, got %v", codes)
	}
}
