//go:build !windows

package interrupt

import (
	"os"
	"syscall"
)

var defaultInterruptSignals = []os.Signal{syscall.SIGUSR1}
