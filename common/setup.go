package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config contains the common configuration data for the agents.
type Config struct {
	LogLevel string `required:"true"`
	// LogFile additionally writes logs to a rotated file when set.
	LogFile       string
	LogMaxSize    int `default:"10"`
	LogMaxBackups int `default:"10"`
	LogMaxAge     int `default:"10"`
}

// HandleSetup takes care of initializing the logger and a few other components.
// It's done in the common package so that all agents making use of this function
// can do the exact same thing.
func HandleSetup() {
	var c Config
	// Create a config struct and read in the environent variables required
	err := envconfig.Process("", &c)
	if err != nil {
		panic(fmt.Errorf("fatal error reading environment variables: %s", err.Error()))
	}

	if err := ConfigureLogger(c); err != nil {
		panic(fmt.Errorf("fatal error configuring logger: %s", err))
	}
}

// ConfigureLogger sets the global zerolog level and output. Debug level
// switches to the human readable console writer.
func ConfigureLogger(c Config) error {
	loglevel, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("reading log level: %w", err)
	}
	zerolog.SetGlobalLevel(loglevel)

	var console io.Writer = os.Stderr
	// Enable ConsoleWriter only for runmode debug
	if loglevel == zerolog.DebugLevel {
		console = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	writers := []io.Writer{console}
	if c.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(c.LogFile), 0o744); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    c.LogMaxSize,    // megabytes
			MaxBackups: c.LogMaxBackups, // files
			MaxAge:     c.LogMaxAge,     // days
		})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return nil
}
