package module

import (
	modkit "t2/internal/modkit"
	mmodule "t2/internal/modkit/module"
	"t2/internal/services/t2/domain"
	"t2/internal/services/t2/service"
)

// Extras carries sinks and observers contributed by other modules (viz, archive)
type Extras struct {
	Sinks     []domain.Sink
	Observers []domain.GulpObserver
	OnPass    service.PassHook // replay reports
}

// WithExtras attaches extra sinks and gulp observers to the pipeline
func WithExtras(e Extras) modkit.Option { return modkit.WithPorts(e) }

// WithModules pulls Sink and GulpObserver ports out of dependency modules so main
// does not need MustPortsOf
func WithModules(mods ...mmodule.Module) modkit.Option { return WithExtras(ExtrasFrom(mods...)) }

// ExtrasFrom collects the Sink and GulpObserver ports of mods
func ExtrasFrom(mods ...mmodule.Module) Extras {
	var e Extras
	for _, m := range mods {
		if m == nil {
			continue
		}
		if s, ok := mmodule.PortsOf[domain.Sink](m); ok {
			e.Sinks = append(e.Sinks, s)
		}
		if o, ok := mmodule.PortsOf[domain.GulpObserver](m); ok {
			e.Observers = append(e.Observers, o)
		}
	}
	return e
}
