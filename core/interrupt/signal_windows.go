//go:build windows

package interrupt

import "os"

var defaultInterruptSignals []os.Signal
