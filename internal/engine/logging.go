package engine

import "github.com/rs/zerolog"

var log = zerolog.Nop()

// SetLogger installs the structured logger used by the native façade.
// Unset, every log call is a no-op, matching worker.SetLogger's
// install-or-noop shape.
func SetLogger(l zerolog.Logger) { log = l }
