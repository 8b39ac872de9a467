package leafsearch

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery is returned when a request's query AST fails to parse,
// before any split is ever opened.
var ErrInvalidQuery = errors.New("leafsearch: invalid query")

// ErrPanicked is the cause recorded when a split's search goroutine panicked
// instead of returning normally. It does not wrap threadpool.Panicked: a
// panic inside a task running on the CPU thread pool is reported as
// threadpool.Panicked instead.
var ErrPanicked = errors.New("leafsearch: split search panicked")

// ErrSplitNotFound names a split descriptor that does not correspond to an
// openable bundle. Executor.Search does not return it: a split whose file
// cannot be read is recorded as a per-split failure carrying the storage
// error's message.
var ErrSplitNotFound = errors.New("leafsearch: split not found")

// wrapSplitError annotates err with the failing split's identity, without
// losing the ability to unwrap to the original cause.
func wrapSplitError(splitID string, err error) error {
	return fmt.Errorf("split %s: %w", splitID, err)
}
