package layout

import (
	"errors"
	"fmt"
	"syscall"
)

// StructuralError reports a filesystem failure that invalidates the whole
// run rather than a single request: the shard tree can no longer be trusted.
type StructuralError struct {
	Op   string // failing operation (stat, mkdir, open)
	Path string // path the operation was applied to
	Err  error  // underlying error
}

// Error formats the failure as op(path): errno (message) when the cause
// carries an errno, mirroring what the classic engine prints before exiting
func (e *StructuralError) Error() string {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return fmt.Sprintf("%s(%s): %d (%s)", e.Op, e.Path, int(errno), errno.Error())
	}
	return fmt.Sprintf("%s(%s): %v", e.Op, e.Path, e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// IsStructural reports whether err is, or wraps, a *StructuralError
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
