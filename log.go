package netbin

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

var defaultLogger atomic.Pointer[zerolog.Logger]

func init() {
	nop := zerolog.Nop()
	defaultLogger.Store(&nop)
}

// SetLogger installs the logger new encoders and decoders start with.
// The codec is silent until this is called.
func SetLogger(l zerolog.Logger) {
	defaultLogger.Store(&l)
}

func currentLogger() zerolog.Logger { return *defaultLogger.Load() }
