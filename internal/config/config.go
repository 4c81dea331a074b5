package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

type Settings struct {
	ListenAddr    string `envconfig:"LISTEN_ADDR" default:":8000"`
	DataPath      string `envconfig:"DATA_PATH" default:"/app/data"`
	DatabasePath  string `envconfig:"DATABASE_PATH" default:""`
	LogPath       string `envconfig:"LOG_PATH" default:""`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	InventoryPath string `envconfig:"INVENTORY_PATH" default:""`

	// Agent simulator
	LogInterval  time.Duration `envconfig:"LOG_INTERVAL" default:"2s"`
	CommandDelay time.Duration `envconfig:"COMMAND_DELAY" default:"200ms"`

	// Terminal client settings
	ServerURL         string        `envconfig:"SERVER_URL" default:"http://localhost:8000"`
	WSPath            string        `envconfig:"WS_PATH" default:"/api/ws"`
	TerminalMaxLines  int           `envconfig:"TERMINAL_MAX_LINES" default:"0"`
	LogStreamMaxLines int           `envconfig:"LOG_STREAM_MAX_LINES" default:"50"`
	DialTimeout       time.Duration `envconfig:"DIAL_TIMEOUT" default:"0"`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("WINCVEX", &Cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
}

// DBPath returns the sqlite file, defaulting to wincvex.db under DataPath.
func (s Settings) DBPath() string {
	if s.DatabasePath != "" {
		return s.DatabasePath
	}
	return s.DataPath + "/wincvex.db"
}

// LogFile returns the server log file, defaulting to wincvex.log under DataPath.
func (s Settings) LogFile() string {
	if s.LogPath != "" {
		return s.LogPath
	}
	return s.DataPath + "/wincvex.log"
}
