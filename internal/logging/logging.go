package logging

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wincvex/console/internal/config"
)

var (
	logFile *os.File
	logPath string
	mu      sync.Mutex
)

// Init sets up dual logging to stdout and the configured log file.
// Must be called after config.Load().
func Init() {
	Setup(config.Cfg.LogFile(), config.Cfg.LogLevel, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
}

// Setup points the global zerolog logger at path, plus console when non-nil.
// The file always receives JSON lines. A file that cannot be opened leaves
// logging on console only.
func Setup(path, level string, console io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logPath = path

	var writers []io.Writer
	if console != nil {
		writers = append(writers, console)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		setOutput(writers)
		log.Warn().Err(err).Msg("cannot create log directory")
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		setOutput(writers)
		log.Warn().Err(err).Str("path", path).Msg("cannot open log file")
		return
	}
	logFile = f
	setOutput(append(writers, f))
	log.Info().Str("path", path).Msg("logging to file")
}

func setOutput(writers []io.Writer) {
	if len(writers) == 0 {
		log.Logger = zerolog.Nop()
		return
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
}

// Close releases the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// ReadTail returns the last n lines from the log file.
func ReadTail(n int) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	f, err := os.Open(currentPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	// Ring of the last n lines.
	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if n <= 0 {
			continue
		}
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan log file: %w", err)
	}
	return strings.Join(ring, "\n"), nil
}

// Clear truncates the log file.
func Clear() error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		if err := logFile.Truncate(0); err != nil {
			return fmt.Errorf("truncate log file: %w", err)
		}
		if _, err := logFile.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("seek log file: %w", err)
		}
		return nil
	}
	if err := os.Truncate(currentPath(), 0); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func currentPath() string {
	if logPath != "" {
		return logPath
	}
	return config.Cfg.LogFile()
}
