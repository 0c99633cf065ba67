package llmdriver

import "errors"

var (
	// ErrTurnInFlight is returned by RunTurn when a turn is already in
	// progress; the caller (the assembler's flush path) must drop the
	// utterance rather than retry.
	ErrTurnInFlight = errors.New("llmdriver: a turn is already in flight")

	ErrEmptyResponse = errors.New("llmdriver: provider returned an empty response")

	ErrProviderUnavailable = errors.New("llmdriver: no provider configured")
)
