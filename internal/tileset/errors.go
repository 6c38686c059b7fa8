package tileset

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrGenerationFailed      = errors.New("tileset: generation failed")
	ErrTimeout               = errors.New("tileset: timed out waiting for generation")
	ErrCancelled             = errors.New("tileset: polling cancelled")
	ErrInvalidTransitionSize = errors.New("tileset: transition size must be 0, 0.25, 0.5 or 1.0")
	ErrInvalidTileSize       = errors.New("tileset: tile size must be 16 or 32")
	ErrChainTooShort         = errors.New("tileset: a chain needs at least 2 terrains")
	ErrEmptyDescription      = errors.New("tileset: terrain description is empty")
	ErrNotCompleted          = errors.New("tileset: result is not completed")
	ErrNoJournal             = errors.New("tileset: no job journal configured")
)

// GenerationFailedError reports a job the generator marked as failed.
// Payload is the generator's status response, for manual retry.
type GenerationFailedError struct {
	JobID   string
	Payload json.RawMessage
}

func (e *GenerationFailedError) Error() string {
	if len(e.Payload) == 0 {
		return fmt.Sprintf("tileset: generation failed for job %s", e.JobID)
	}
	return fmt.Sprintf("tileset: generation failed for job %s: %s", e.JobID, e.Payload)
}

func (e *GenerationFailedError) Unwrap() error {
	return ErrGenerationFailed
}

// ChainError is returned by CreateChain when a step fails. The tilesets of
// earlier steps are returned alongside it.
type ChainError struct {
	Step  int
	Lower string
	Upper string
	Err   error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("tileset: chain step %d (%s -> %s): %v", e.Step, e.Lower, e.Upper, e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}
