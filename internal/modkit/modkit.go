package modkit

import "t2/internal/modkit/module"

// Module is re-exported so callers wiring t2 and viz only import modkit
type Module = module.Module
