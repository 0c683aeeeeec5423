package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/randomtoy/elo-chess-backend/internal/domain/game"
	"github.com/randomtoy/elo-chess-backend/internal/domain/rating"
	"github.com/randomtoy/elo-chess-backend/internal/ports"
	"github.com/randomtoy/elo-chess-backend/internal/usecase"
)

const errBase = "https://errors.elo-chess.local"

var (
	ErrRateLimited = errors.New("rate limited")
	errBadRequest  = errors.New("bad request")
)

// Problem is an RFC 7807 problem document. Code is a stable machine-readable
// identifier for the error.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

func problem(c echo.Context, status int, slug, code, detail string) error {
	return c.JSON(status, Problem{
		Type:   errBase + "/" + slug,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Code:   code,
	})
}

// writeErr maps a domain/usecase error to the correct HTTP response.
func writeErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, errBadRequest):
		return problem(c, http.StatusBadRequest, "bad-request", "bad_request", err.Error())
	case errors.Is(err, usecase.ErrGameNotFound), errors.Is(err, ports.ErrNotFound):
		return problem(c, http.StatusNotFound, "not-found", "not_found", "Resource not found.")
	case errors.Is(err, ports.ErrVersionConflict):
		return problem(c, http.StatusConflict, "conflict", "version_conflict",
			"Game state changed concurrently; reload and retry.")
	case errors.Is(err, ErrRateLimited):
		c.Response().Header().Set("Retry-After", "2")
		return problem(c, http.StatusTooManyRequests, "rate-limited", "rate_limited",
			"Rate limit exceeded. Try again later.")

	case errors.Is(err, game.ErrIllegalMove):
		return problem(c, http.StatusUnprocessableEntity, "illegal-move", game.ErrIllegalMove.Error(), err.Error())
	case errors.Is(err, game.ErrInvalidLayout),
		errors.Is(err, game.ErrUnknownClaimType),
		errors.Is(err, game.ErrUnknownOutcome),
		errors.Is(err, game.ErrInvalidOutcome),
		errors.Is(err, game.ErrSamePlayer),
		errors.Is(err, rating.ErrInvalidScore),
		errors.Is(err, rating.ErrInvalidKFactor):
		return problem(c, http.StatusUnprocessableEntity, "invalid-request", codeOf(err), err.Error())
	case errors.Is(err, game.ErrNotParticipant):
		return problem(c, http.StatusForbidden, "not-participant", game.ErrNotParticipant.Error(), err.Error())
	case errors.Is(err, game.ErrGameAlreadyTerminal),
		errors.Is(err, game.ErrGameNotActive),
		errors.Is(err, game.ErrInvalidTransition):
		return problem(c, http.StatusConflict, "game-state", codeOf(err), err.Error())
	case errors.Is(err, rating.ErrAlreadySettled):
		return problem(c, http.StatusConflict, "already-settled", rating.ErrAlreadySettled.Error(), err.Error())
	case errors.Is(err, usecase.ErrNotSettleable):
		return problem(c, http.StatusConflict, "not-settleable", "not_settleable", err.Error())

	default:
		return problem(c, http.StatusInternalServerError, "internal", "internal", "Unexpected error.")
	}
}

var coded = []error{
	game.ErrInvalidLayout,
	game.ErrUnknownClaimType,
	game.ErrUnknownOutcome,
	game.ErrInvalidOutcome,
	game.ErrSamePlayer,
	game.ErrGameAlreadyTerminal,
	game.ErrGameNotActive,
	game.ErrInvalidTransition,
	rating.ErrInvalidScore,
	rating.ErrInvalidKFactor,
}

// codeOf returns the sentinel's message, which doubles as its stable code.
func codeOf(err error) string {
	for _, s := range coded {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "invalid"
}
