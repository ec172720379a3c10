// Package modkit provides module wiring and core deps
package modkit

import (
	"t2/internal/modkit/repokit"
	"t2/internal/platform/config"
	"t2/internal/platform/logger"
	"t2/internal/platform/store"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner // nil when postgres is not configured
	CH  store.Clickhouse // nil when clickhouse is not configured
}

// FromStore fills the storage seams of d from an opened store
func (d Deps) FromStore(s *store.Store) Deps {
	if s != nil {
		d.PG = s.PG
		d.CH = s.CH
	}
	return d
}
