package game

import (
	"fmt"

	"github.com/randomtoy/elo-chess-backend/internal/domain/rating"
)

// Status is the lifecycle state of a game's Result.
type Status string

const (
	StatusScheduled          Status = "Scheduled"
	StatusPostponed          Status = "Postponed"
	StatusFinishedNoMoves    Status = "Finished (no moves)"
	StatusInProgress         Status = "In progress"
	StatusAdjourned          Status = "Adjourned"
	StatusFinishedBasicRules Status = "Finished (basic rules)"
	StatusFinishedClock      Status = "Finished (clock)"
	StatusDraw               Status = "Draw"
	StatusFinishedBreach     Status = "Finished (breach)"
	StatusFinishedCompliance Status = "Finished (compliance)"
	StatusTBD                Status = "TBD"
	StatusAbandoned          Status = "Abandoned"
	StatusUnknown            Status = "Unknown"
)

// ParseStatus validates a stored status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusScheduled, StatusPostponed, StatusFinishedNoMoves, StatusInProgress,
		StatusAdjourned, StatusFinishedBasicRules, StatusFinishedClock, StatusDraw,
		StatusFinishedBreach, StatusFinishedCompliance, StatusTBD, StatusAbandoned, StatusUnknown:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Terminal reports whether no further mutation is allowed in this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusPostponed, StatusAdjourned:
		return false
	default:
		return true
	}
}

// Description is the long human-readable form.
func (s Status) Description() string {
	switch s {
	case StatusFinishedNoMoves:
		return "Finished without any moves played"
	case StatusFinishedBasicRules:
		return "Finished according to the Basic Rules of Play"
	case StatusFinishedClock:
		return "Finished by the clock"
	case StatusFinishedBreach:
		return "Finished because of a breach of rules of one player"
	case StatusFinishedCompliance:
		return "Finished because both players persistently refuse to comply with the laws of chess"
	case StatusTBD:
		return "To be decided"
	default:
		return string(s)
	}
}

// Result is a game's single status record. Winner is NoColor for draws and
// for statuses without a decided side.
type Result struct {
	Status Status
	Winner Color
}

// Scores returns each side's score. ok is false for results that carry no
// defined score (abandoned, unknown, undecided, forfeited before any move);
// those are never settled.
func (r Result) Scores() (white, black rating.Score, ok bool) {
	switch r.Status {
	case StatusDraw, StatusFinishedCompliance:
		return rating.Draw, rating.Draw, true
	case StatusFinishedBasicRules, StatusFinishedClock, StatusFinishedBreach:
		switch r.Winner {
		case White:
			return rating.Win, rating.Loss, true
		case Black:
			return rating.Loss, rating.Win, true
		default:
			return rating.Draw, rating.Draw, true
		}
	default:
		return 0, 0, false
	}
}

// canTransition encodes the lifecycle graph. Scheduled and In progress may
// end in any terminal status; the side states return to In progress.
func canTransition(from, to Status) bool {
	if from.Terminal() || from == to {
		return false
	}
	switch to {
	case StatusScheduled:
		return false
	case StatusInProgress:
		return from == StatusScheduled || from == StatusPostponed || from == StatusAdjourned
	case StatusPostponed, StatusAdjourned:
		return from == StatusInProgress
	case StatusFinishedNoMoves:
		return from == StatusScheduled
	default:
		return true
	}
}

// OutcomeKind is an externally determined event that changes the Result.
type OutcomeKind string

const (
	OutcomeCheckmate   OutcomeKind = "checkmate"
	OutcomeResignation OutcomeKind = "resignation"
	OutcomeStalemate   OutcomeKind = "stalemate"
	OutcomeTimeForfeit OutcomeKind = "time_forfeit"
	OutcomeBreach      OutcomeKind = "breach"
	OutcomeAbandonment OutcomeKind = "abandonment"
	OutcomeNoShow      OutcomeKind = "no_show"
	OutcomeUndecided   OutcomeKind = "undecided"
	OutcomeUnknown     OutcomeKind = "unknown"
	OutcomePostpone    OutcomeKind = "postpone"
	OutcomeAdjourn     OutcomeKind = "adjourn"
	OutcomeResume      OutcomeKind = "resume"
)

// ParseOutcomeKind validates an outcome name.
func ParseOutcomeKind(s string) (OutcomeKind, error) {
	k := OutcomeKind(s)
	switch k {
	case OutcomeCheckmate, OutcomeResignation, OutcomeStalemate, OutcomeTimeForfeit,
		OutcomeBreach, OutcomeAbandonment, OutcomeNoShow, OutcomeUndecided,
		OutcomeUnknown, OutcomePostpone, OutcomeAdjourn, OutcomeResume:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOutcome, s)
}

// Outcome is a signal from outside the core. Winner names the side that won,
// or for a breach the side that did not commit it.
type Outcome struct {
	Kind   OutcomeKind
	Winner Color
}

// result maps the signal to the Result it produces.
func (o Outcome) result() (Result, error) {
	needsWinner := func(st Status) (Result, error) {
		if o.Winner != White && o.Winner != Black {
			return Result{}, fmt.Errorf("%w: %s requires a winner", ErrInvalidOutcome, o.Kind)
		}
		return Result{Status: st, Winner: o.Winner}, nil
	}
	noWinner := func(st Status) (Result, error) {
		if o.Winner != NoColor {
			return Result{}, fmt.Errorf("%w: %s has no winner", ErrInvalidOutcome, o.Kind)
		}
		return Result{Status: st}, nil
	}

	switch o.Kind {
	case OutcomeCheckmate, OutcomeResignation:
		return needsWinner(StatusFinishedBasicRules)
	case OutcomeBreach:
		return needsWinner(StatusFinishedBreach)
	case OutcomeStalemate:
		return noWinner(StatusFinishedBasicRules)
	case OutcomeTimeForfeit:
		// A flag fall against a side without mating material is a draw.
		return Result{Status: StatusFinishedClock, Winner: o.Winner}, nil
	case OutcomeAbandonment:
		return noWinner(StatusAbandoned)
	case OutcomeNoShow:
		return Result{Status: StatusFinishedNoMoves, Winner: o.Winner}, nil
	case OutcomeUndecided:
		return noWinner(StatusTBD)
	case OutcomeUnknown:
		return noWinner(StatusUnknown)
	case OutcomePostpone:
		return noWinner(StatusPostponed)
	case OutcomeAdjourn:
		return noWinner(StatusAdjourned)
	case OutcomeResume:
		return noWinner(StatusInProgress)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownOutcome, o.Kind)
	}
}
