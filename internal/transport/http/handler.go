package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/randomtoy/elo-chess-backend/internal/domain/game"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
	"github.com/randomtoy/elo-chess-backend/internal/usecase"
)

// pieceJSON is the wire representation of a piece. Square is empty once
// the piece is captured.
type pieceJSON struct {
	PieceID    string `json:"piece_id"`
	Type       string `json:"type"`
	Square     string `json:"square,omitempty"`
	Captured   bool   `json:"captured"`
	PromotedTo string `json:"promoted_to,omitempty"`
}

type moveJSON struct {
	MoveID          string    `json:"move_id"`
	Ply             int       `json:"ply"`
	PieceID         string    `json:"piece_id"`
	UCI             string    `json:"uci"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	Promotion       string    `json:"promotion,omitempty"`
	CapturedPieceID string    `json:"captured_piece_id,omitempty"`
	LayoutAfter     string    `json:"layout_after"`
	CreatedAt       time.Time `json:"created_at"`
}

type claimJSON struct {
	ClaimID   string    `json:"claim_id"`
	PlayerID  string    `json:"player_id"`
	Type      string    `json:"type"`
	Ply       int       `json:"ply"`
	Verdict   string    `json:"verdict"`
	CreatedAt time.Time `json:"created_at"`
}

type resultJSON struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	Winner      string `json:"winner,omitempty"`
}

// gameJSON is the wire representation of domain/game.Game.
type gameJSON struct {
	GameID        string      `json:"game_id"`
	WhiteID       string      `json:"white_id"`
	BlackID       string      `json:"black_id"`
	Rated         bool        `json:"rated"`
	Result        resultJSON  `json:"result"`
	Layout        string      `json:"layout"`
	InitialLayout string      `json:"initial_layout"`
	SideToMove    string      `json:"side_to_move"`
	PlyCount      int         `json:"ply_count"`
	HalfmoveClock int         `json:"halfmove_clock"`
	Settled       bool        `json:"settled"`
	Version       int         `json:"version"`
	StartedAt     time.Time   `json:"started_at"`
	EndedAt       *time.Time  `json:"ended_at"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Pieces        []pieceJSON `json:"pieces"`
	Moves         []moveJSON  `json:"moves"`
	Claims        []claimJSON `json:"claims"`
}

func toResultJSON(r game.Result) resultJSON {
	return resultJSON{Status: string(r.Status), Description: r.Status.Description(), Winner: r.Winner.String()}
}

func toMoveJSON(m game.Move) moveJSON {
	out := moveJSON{
		MoveID:      m.ID.String(),
		Ply:         m.Ply,
		PieceID:     m.PieceID.String(),
		UCI:         m.UCI(),
		From:        m.From.String(),
		To:          m.To.String(),
		Promotion:   m.Promotion.String(),
		LayoutAfter: m.LayoutAfter,
		CreatedAt:   m.Timestamp,
	}
	if m.CapturedPieceID != uuid.Nil {
		out.CapturedPieceID = m.CapturedPieceID.String()
	}
	return out
}

func toGameJSON(g *game.Game) *gameJSON {
	st := g.State
	out := &gameJSON{
		GameID:        g.ID.String(),
		WhiteID:       g.White.String(),
		BlackID:       g.Black.String(),
		Rated:         g.Rated,
		Result:        toResultJSON(g.Result),
		Layout:        st.Board.Layout,
		InitialLayout: g.InitialLayout,
		SideToMove:    st.SideToMove().String(),
		PlyCount:      st.Ply(),
		HalfmoveClock: st.HalfmoveClock(),
		Settled:       g.Settled,
		Version:       g.Version,
		StartedAt:     g.StartedAt,
		EndedAt:       g.EndedAt,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
		Pieces:        make([]pieceJSON, 0, len(st.Pieces)),
		Moves:         make([]moveJSON, 0, len(st.Moves)),
		Claims:        make([]claimJSON, 0, len(g.Claims)),
	}
	for _, p := range st.Pieces {
		pj := pieceJSON{
			PieceID:    p.ID.String(),
			Type:       p.Type.String(),
			Captured:   p.Captured,
			PromotedTo: p.PromotedTo.String(),
		}
		if sq, ok := st.SquareOf(p.ID); ok && !p.Captured {
			pj.Square = sq.String()
		}
		out.Pieces = append(out.Pieces, pj)
	}
	for _, m := range st.Moves {
		out.Moves = append(out.Moves, toMoveJSON(m))
	}
	for _, c := range g.Claims {
		out.Claims = append(out.Claims, claimJSON{
			ClaimID:   c.ID.String(),
			PlayerID:  c.PlayerID.String(),
			Type:      c.Type.Name(),
			Ply:       c.Ply,
			Verdict:   string(c.Verdict),
			CreatedAt: c.Timestamp,
		})
	}
	return out
}

// Handlers holds all usecase dependencies.
type Handlers struct {
	creator  *usecase.GameCreator
	getter   *usecase.GameGetter
	moves    *usecase.MoveSubmitter
	claims   *usecase.ClaimSubmitter
	outcomes *usecase.OutcomeSignaler
	settler  *usecase.Settler
	ratings  *usecase.RatingGetter
	kFactor  *usecase.KFactorSetter
	log      *zap.Logger
}

func NewHandlers(
	creator *usecase.GameCreator,
	getter *usecase.GameGetter,
	moves *usecase.MoveSubmitter,
	claims *usecase.ClaimSubmitter,
	outcomes *usecase.OutcomeSignaler,
	settler *usecase.Settler,
	ratings *usecase.RatingGetter,
	kFactor *usecase.KFactorSetter,
	log *zap.Logger,
) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		creator:  creator,
		getter:   getter,
		moves:    moves,
		claims:   claims,
		outcomes: outcomes,
		settler:  settler,
		ratings:  ratings,
		kFactor:  kFactor,
		log:      log,
	}
}

// fail logs errors that map to a 500 and writes the problem response.
func (h *Handlers) fail(c echo.Context, err error) error {
	rerr := writeErr(c, err)
	if c.Response().Status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return rerr
}

func bind(c echo.Context, body any) error {
	if err := c.Bind(body); err != nil {
		return fmt.Errorf("%w: malformed body", errBadRequest)
	}
	return nil
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, ports.ErrNotFound
	}
	return id, nil
}

func (h *Handlers) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handlers) handleCreateGame(c echo.Context) error {
	var body struct {
		WhiteID uuid.UUID `json:"white_id"`
		BlackID uuid.UUID `json:"black_id"`
		Rated   *bool     `json:"rated"`
		Layout  string    `json:"layout"`
	}
	if err := bind(c, &body); err != nil {
		return h.fail(c, err)
	}
	if body.WhiteID == uuid.Nil || body.BlackID == uuid.Nil {
		return h.fail(c, fmt.Errorf("%w: white_id and black_id are required", errBadRequest))
	}
	rated := true
	if body.Rated != nil {
		rated = *body.Rated
	}

	g, err := h.creator.CreateGame(c.Request().Context(), usecase.CreateGameRequest{
		White:  body.WhiteID,
		Black:  body.BlackID,
		Rated:  rated,
		Layout: body.Layout,
	})
	if err != nil {
		return h.fail(c, err)
	}
	c.Response().Header().Set("Location", "/api/v1/games/"+g.ID.String())
	return c.JSON(http.StatusCreated, toGameJSON(g))
}

func (h *Handlers) handleGetGame(c echo.Context) error {
	id, err := pathID(c, "game_id")
	if err != nil {
		return h.fail(c, err)
	}
	g, err := h.getter.GetGame(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, toGameJSON(g))
}

func (h *Handlers) handleApplyMove(c echo.Context) error {
	id, err := pathID(c, "game_id")
	if err != nil {
		return h.fail(c, err)
	}

	var body struct {
		// Short form: single UCI string.
		UCI string `json:"uci"`
		// Long form: from/to/promotion.
		From      string    `json:"from"`
		To        string    `json:"to"`
		Promotion string    `json:"promotion"`
		PieceID   uuid.UUID `json:"piece_id"`
	}
	if err := bind(c, &body); err != nil {
		return h.fail(c, err)
	}

	// Prefer from/to over the uci field.
	uci := body.UCI
	if body.From != "" && body.To != "" {
		uci = body.From + body.To + body.Promotion
	}
	if uci == "" {
		return h.fail(c, fmt.Errorf("%w: uci or from/to is required", errBadRequest))
	}
	req, err := game.ParseMoveRequest(uci)
	if err != nil {
		return h.fail(c, err)
	}
	req.PieceID = body.PieceID

	g, mv, err := h.moves.ApplyMove(c.Request().Context(), id, req)
	if err != nil {
		return h.fail(c, err)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, map[string]any{
		"accepted": true,
		"move":     toMoveJSON(mv),
		"game":     toGameJSON(g),
	})
}

func (h *Handlers) handleSubmitClaim(c echo.Context) error {
	id, err := pathID(c, "game_id")
	if err != nil {
		return h.fail(c, err)
	}
	var body struct {
		PlayerID uuid.UUID `json:"player_id"`
		Type     string    `json:"type"`
	}
	if err := bind(c, &body); err != nil {
		return h.fail(c, err)
	}
	claim, err := game.ParseClaimType(body.Type)
	if err != nil {
		return h.fail(c, err)
	}

	verdict, g, err := h.claims.SubmitClaim(c.Request().Context(), id, body.PlayerID, claim)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"verdict": string(verdict),
		"game":    toGameJSON(g),
	})
}

func (h *Handlers) handleSignalOutcome(c echo.Context) error {
	id, err := pathID(c, "game_id")
	if err != nil {
		return h.fail(c, err)
	}
	var body struct {
		Kind   string `json:"kind"`
		Winner string `json:"winner"`
	}
	if err := bind(c, &body); err != nil {
		return h.fail(c, err)
	}
	kind, err := game.ParseOutcomeKind(body.Kind)
	if err != nil {
		return h.fail(c, err)
	}
	winner, err := game.ParseColor(body.Winner)
	if err != nil {
		return h.fail(c, fmt.Errorf("%w: %v", game.ErrInvalidOutcome, err))
	}

	res, err := h.outcomes.SignalExternalOutcome(c.Request().Context(), id, game.Outcome{Kind: kind, Winner: winner})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"result": toResultJSON(res)})
}

func (h *Handlers) handleSettle(c echo.Context) error {
	id, err := pathID(c, "game_id")
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.settler.Settle(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"settled": true})
}

func (h *Handlers) handleGetRating(c echo.Context) error {
	id, err := pathID(c, "player_id")
	if err != nil {
		return h.fail(c, err)
	}
	elo, err := h.ratings.GetRating(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, elo)
}

func (h *Handlers) handleSetKFactor(c echo.Context) error {
	id, err := pathID(c, "player_id")
	if err != nil {
		return h.fail(c, err)
	}
	var body struct {
		KFactor *int `json:"k_factor"`
	}
	if err := bind(c, &body); err != nil {
		return h.fail(c, err)
	}
	if body.KFactor == nil {
		return h.fail(c, fmt.Errorf("%w: k_factor is required", errBadRequest))
	}
	elo, err := h.kFactor.SetKFactor(c.Request().Context(), id, *body.KFactor)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, elo)
}
