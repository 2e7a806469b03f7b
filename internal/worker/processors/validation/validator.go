package validation

import (
	"errors"
	"fmt"

	"catalogsync/internal/events"
)

// MaxChunkSize keeps split files under the store's import size limit.
const MaxChunkSize = 10000

var ErrInvalidRequest = errors.New("invalid request")

// ValidateRequest checks a pipeline request before it is queued or run.
func ValidateRequest(req events.Request) error {
	switch req.Type {
	case events.TypeSyncRequested:
		if req.Limit < 0 {
			return fmt.Errorf("%w: limit must be >= 0, got %d", ErrInvalidRequest, req.Limit)
		}
	case events.TypeSplitRequested:
		if req.ChunkSize < 0 || req.ChunkSize > MaxChunkSize {
			return fmt.Errorf("%w: chunk_size must be between 1 and %d, got %d", ErrInvalidRequest, MaxChunkSize, req.ChunkSize)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRequest, req.Type)
	}
	return nil
}
