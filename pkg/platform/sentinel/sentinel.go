package sentinel

import "errors"

// Infrastructure facts returned (optionally wrapped) by stores and adapters.
// Services decide what each fact means for the caller:
// - ErrNotFound: the row or key does not exist
// - ErrUnavailable: the backing store cannot be reached right now
// - ErrCircuitOpen: calls are short-circuited after repeated failures
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
	ErrCircuitOpen = errors.New("circuit open")
)
