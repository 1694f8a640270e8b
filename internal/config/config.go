package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	world "github.com/WOW112/jingdianwow2"
	"github.com/WOW112/jingdianwow2/logging"
)

// Settings is the process configuration, resolved from WORLD_* environment
// variables. Zero-config boots a standalone realm: in-memory directory, local
// sqlite file, built-in announcement catalog.
type Settings struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8085"`
	RealmID    uint32 `envconfig:"REALM_ID" default:"1"`

	// Empty secret runs the gateway in open mode: connections authenticate
	// with plain query parameters. Only suitable for local development.
	JWTSecret  string `envconfig:"JWT_SECRET" default:""`
	AdminToken string `envconfig:"ADMIN_TOKEN" default:""`

	TickRate        int `envconfig:"TICK_RATE" default:"20"`
	CatchupMaxTicks int `envconfig:"CATCHUP_MAX_TICKS" default:"4"`

	SessionCapacity uint32 `envconfig:"SESSION_CAPACITY" default:"0"`
	CommandCapacity int    `envconfig:"COMMAND_CAPACITY" default:"64"`

	UptimeInterval        time.Duration `envconfig:"UPTIME_INTERVAL" default:"10m"`
	PopulationInterval    time.Duration `envconfig:"POPULATION_INTERVAL" default:"5m"`
	EconomyInterval       time.Duration `envconfig:"ECONOMY_INTERVAL" default:"1m"`
	EventInterval         time.Duration `envconfig:"EVENT_INTERVAL" default:"10s"`
	AutoBroadcastInterval time.Duration `envconfig:"AUTOBROADCAST_INTERVAL" default:"0"`

	MaintenanceSchedule     string        `envconfig:"MAINTENANCE_SCHEDULE" default:""`
	MaintenanceDelaySeconds uint32        `envconfig:"MAINTENANCE_DELAY_SECONDS" default:"30"`
	MaintenanceGuard        time.Duration `envconfig:"MAINTENANCE_GUARD" default:"1s"`

	DatabasePath string `envconfig:"DATABASE_PATH" default:"data/world.db"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	CatalogPath string `envconfig:"CATALOG_PATH" default:""`

	LogSinks    []string `envconfig:"LOG_SINKS" default:"console"`
	LogLevel    string   `envconfig:"LOG_LEVEL" default:"info"`
	LogJSONPath string   `envconfig:"LOG_JSON_PATH" default:""`
}

// Load resolves settings from the environment.
func Load() (Settings, error) {
	var s Settings
	if err := envconfig.Process("WORLD", &s); err != nil {
		return Settings{}, fmt.Errorf("load config: %w", err)
	}
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.TickRate < 1 || s.TickRate > 1000 {
		return fmt.Errorf("tick rate %d out of range 1..1000", s.TickRate)
	}
	if s.CatchupMaxTicks < 1 {
		return fmt.Errorf("catchup max ticks %d must be at least 1", s.CatchupMaxTicks)
	}
	if s.HasSink("json") && s.LogJSONPath == "" {
		return fmt.Errorf("json log sink enabled without WORLD_LOG_JSON_PATH")
	}
	return nil
}

// HasSink reports whether the named log sink is enabled.
func (s Settings) HasSink(name string) bool {
	for _, sink := range s.LogSinks {
		if strings.EqualFold(strings.TrimSpace(sink), name) {
			return true
		}
	}
	return false
}

// World maps the settings onto the world's tuning struct.
func (s Settings) World() world.Config {
	return world.Config{
		TickRate:              s.TickRate,
		CatchupMaxTicks:       s.CatchupMaxTicks,
		Capacity:              s.SessionCapacity,
		CommandCapacity:       s.CommandCapacity,
		UptimeInterval:        s.UptimeInterval,
		PopulationInterval:    s.PopulationInterval,
		EconomyInterval:       s.EconomyInterval,
		EventInterval:         s.EventInterval,
		AutoBroadcastInterval: s.AutoBroadcastInterval,
		MaintenanceSchedule:   s.MaintenanceSchedule,
		MaintenanceDelay:      s.MaintenanceDelaySeconds,
		MaintenanceGuard:      s.MaintenanceGuard,
	}
}

// Logging maps the settings onto the event router's config.
func (s Settings) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	if len(s.LogSinks) > 0 {
		sinks := make([]string, 0, len(s.LogSinks))
		for _, sink := range s.LogSinks {
			sink = strings.ToLower(strings.TrimSpace(sink))
			if sink != "" {
				sinks = append(sinks, sink)
			}
		}
		cfg.EnabledSinks = sinks
	}
	cfg.MinimumSeverity = logging.ParseSeverity(s.LogLevel)
	cfg.JSON.FilePath = s.LogJSONPath
	cfg.Fields = map[string]any{"realm": s.RealmID}
	return cfg
}
