package store

import (
	"time"

	"t2/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string
	Role    string
	Tag     string // build version reported to backends

	PG PGConfig
	CH CHConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	ConnectRetries int           // default 20
	PingTimeout    time.Duration // default 3s
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled bool
	URL     string
}

// ConfigFromEnv reads SERVICE_PGSQL_* and SERVICE_CLICKHOUSE_*; a backend is enabled
// when its DBURL is set
func ConfigFromEnv(c config.Conf, appName, role string) Config {
	pg := c.Prefix("SERVICE_PGSQL_")
	ch := c.Prefix("SERVICE_CLICKHOUSE_")
	return Config{
		AppName: appName,
		Role:    role,
		PG: PGConfig{
			Enabled:        pg.Has("DBURL"),
			URL:            pg.MayString("DBURL", ""),
			MaxConns:       int32(pg.MayInt("MAX_CONNS", 4)),
			LogSQL:         pg.MayBool("LOG_SQL", false),
			SlowQueryMs:    pg.MayInt("SLOW_MS", 250),
			ConnectRetries: pg.MayInt("CONNECT_RETRIES", 20),
			PingTimeout:    pg.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
		CH: CHConfig{
			Enabled: ch.Has("DBURL"),
			URL:     ch.MayString("DBURL", ""),
		},
	}
}
