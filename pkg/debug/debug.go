// Package debug holds the process-wide debug switches set from the command
// line. Traces go to stderr so they never mix with the gaze stream.
package debug

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	// Enabled is set by --debug.
	Enabled bool

	// Tracking is set by --debug-tracking and turns on per-frame traces.
	Tracking bool

	// Out receives the traces.
	Out io.Writer = os.Stderr

	mu sync.Mutex
)

// Trackf writes one per-frame trace line when Tracking is on. Lines are
// stamped with the wall clock to the millisecond.
func Trackf(format string, args ...any) {
	if !Tracking {
		return
	}
	line := fmt.Sprintf(format, args...)
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(Out, "%s %s\n", time.Now().Format("15:04:05.000"), strings.TrimRight(line, "\n"))
}
