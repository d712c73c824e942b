package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nhle/taskclient/internal/model"
)

// Manager hands out per-package loggers that share one output.
type Manager struct {
	config         model.LogConfig
	root           zerolog.Logger
	packageLoggers map[string]zerolog.Logger
	closer         io.Closer
	mu             sync.RWMutex
}

// NewManager creates a manager writing to cfg.File. The terminal belongs
// to the TUI, so there is no console output; an empty File discards logs.
func NewManager(cfg model.LogConfig) (*Manager, error) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var (
		w      io.Writer = io.Discard
		closer io.Closer
	)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		w = lj
		closer = lj
	}

	return &Manager{
		config:         cfg,
		root:           zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp().Logger(),
		packageLoggers: make(map[string]zerolog.Logger),
		closer:         closer,
	}, nil
}

// NewManagerWithWriter creates a manager that writes JSON lines to w.
func NewManagerWithWriter(cfg model.LogConfig, w io.Writer) *Manager {
	return &Manager{
		config:         cfg,
		root:           zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp().Logger(),
		packageLoggers: make(map[string]zerolog.Logger),
	}
}

// GetLogger returns a logger for a specific package
func (m *Manager) GetLogger(pkg string) zerolog.Logger {
	m.mu.RLock()
	if l, ok := m.packageLoggers[pkg]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Check again in case it was created while waiting for lock
	if l, ok := m.packageLoggers[pkg]; ok {
		return l
	}

	level := parseLevel(m.config.Level)
	if pkgLevel, ok := m.config.Levels[pkg]; ok {
		level = parseLevel(pkgLevel)
	}

	l := m.root.With().Str("pkg", pkg).Logger().Level(level)
	m.packageLoggers[pkg] = l
	return l
}

// Close closes the rotating file writer, if any.
func (m *Manager) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer.Close()
}

// parseLevel converts string level to zerolog.Level
func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "DISABLED", "OFF":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

var (
	globalMu      sync.RWMutex
	globalManager *Manager
)

// Initialize installs the global logger manager.
func Initialize(cfg model.LogConfig) error {
	m, err := NewManager(cfg)
	if err != nil {
		return err
	}
	SetGlobal(m)
	return nil
}

// SetGlobal replaces the global manager. Tests use it to capture output.
func SetGlobal(m *Manager) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalManager = m
}

// GetLogger returns a logger for the specified package
func GetLogger(pkg string) zerolog.Logger {
	globalMu.RLock()
	m := globalManager
	globalMu.RUnlock()

	if m == nil {
		return zerolog.Nop()
	}
	return m.GetLogger(pkg)
}

// CloseGlobal closes the global logger manager
func CloseGlobal() error {
	globalMu.RLock()
	m := globalManager
	globalMu.RUnlock()

	if m != nil {
		return m.Close()
	}
	return nil
}
