package usecase

import "errors"

var (
	ErrGameNotFound  = errors.New("game not found")
	ErrNotSettleable = errors.New("game not settleable")
)
