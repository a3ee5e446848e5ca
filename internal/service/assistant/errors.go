package assistant

import (
	"errors"
	"fmt"
)

var (
	ErrOwnerRequired     = errors.New("owner id is required")
	ErrEmptyInput        = errors.New("message is empty")
	ErrUpstreamRateLimit = errors.New("completion quota exceeded")
	ErrUpstream          = errors.New("completion failed")
	ErrEmptyResponse     = fmt.Errorf("%w: empty response", ErrUpstream)
	ErrNotFound          = errors.New("not found")
)

// ReconstructionError reports persisted history that cannot be turned back
// into a well-formed conversation. It never leaves this package's reconciler.
type ReconstructionError struct {
	ChatID string
	Index  int
	Reason string
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("reconstruct chat %s: message %d: %s", e.ChatID, e.Index, e.Reason)
}
