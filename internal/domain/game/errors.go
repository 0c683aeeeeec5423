package game

import "errors"

// Sentinel errors; the transport layer maps these to HTTP codes. Callers
// compare with errors.Is since most are wrapped with detail.
var (
	ErrIllegalMove         = errors.New("illegal_move")
	ErrInvalidLayout       = errors.New("invalid_layout")
	ErrUnknownClaimType    = errors.New("unknown_claim_type")
	ErrUnknownOutcome      = errors.New("unknown_outcome")
	ErrInvalidOutcome      = errors.New("invalid_outcome")
	ErrGameAlreadyTerminal = errors.New("game_already_terminal")
	ErrGameNotActive       = errors.New("game_not_active")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrNotParticipant      = errors.New("not_participant")
	ErrSamePlayer          = errors.New("same_player")
)
