// Package logger is the process-wide levelled logger, backed by zap.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel accepts debug, info, warn/warning, error and fatal in any case.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	case "FATAL":
		return FATAL, nil
	}
	return INFO, fmt.Errorf("invalid log level %q", s)
}

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Config struct {
	Level      LogLevel
	Format     string // FormatConsole or FormatJSON
	Colorize   bool
	ShowCaller bool
	TimeFormat string
	Output     io.Writer
}

// DefaultConfig logs INFO and above to stdout, coloured when stdout is a terminal.
func DefaultConfig() Config {
	return Config{
		Level:      INFO,
		Format:     FormatConsole,
		Colorize:   isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
		TimeFormat: "2006-01-02 15:04:05",
		Output:     os.Stdout,
	}
}

type Logger struct {
	mu    sync.Mutex
	cfg   Config
	level zap.AtomicLevel
	z     *zap.Logger
	s     *zap.SugaredLogger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = "2006-01-02 15:04:05"
	}
	l := &Logger{cfg: cfg, level: zap.NewAtomicLevelAt(cfg.Level.zapLevel())}
	l.rebuild()
	return l
}

// rebuild recreates the zap core from cfg. Callers hold mu or own l.
func (l *Logger) rebuild() {
	var enc zapcore.Encoder
	if l.cfg.Format == FormatJSON {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	} else {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.TimeEncoderOfLayout(l.cfg.TimeFormat)
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		if l.cfg.Colorize {
			ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		if !l.cfg.ShowCaller {
			ec.CallerKey = zapcore.OmitKey
		}
		enc = zapcore.NewConsoleEncoder(ec)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(l.cfg.Output), l.level)
	opts := []zap.Option{zap.AddStacktrace(zapcore.FatalLevel)}
	if l.cfg.ShowCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	l.z = zap.New(core, opts...)
	l.s = l.z.Sugar()
}

// GetLogger returns the process-wide logger, configured from LOG_LEVEL and
// LOG_FORMAT on first use.
func GetLogger() *Logger {
	once.Do(func() {
		cfg := DefaultConfig()
		if lvl, err := ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
			cfg.Level = lvl
		}
		if strings.EqualFold(os.Getenv("LOG_FORMAT"), FormatJSON) {
			cfg.Format = FormatJSON
		}
		defaultLogger = New(cfg)
	})
	return defaultLogger
}

func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

func (l *Logger) Level() LogLevel {
	switch l.level.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel:
		return ERROR
	case zapcore.FatalLevel:
		return FATAL
	default:
		return INFO
	}
}

func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.Output = w
	l.rebuild()
}

func (l *Logger) SetFormat(format string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.Format = format
	l.rebuild()
}

func (l *Logger) SetColorize(colorize bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.Colorize = colorize
	l.rebuild()
}

func (l *Logger) sugar() *zap.SugaredLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s
}

// Zap exposes the structured logger for callers that want fields.
func (l *Logger) Zap() *zap.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.z
}

// Sync flushes buffered output.
func (l *Logger) Sync() error {
	return l.Zap().Sync()
}

func (l *Logger) Debugf(format string, args ...any) { l.sugar().Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.sugar().Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.sugar().Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.sugar().Errorf(format, args...) }

// Fatalf logs and exits the program.
func (l *Logger) Fatalf(format string, args ...any) { l.sugar().Fatalf(format, args...) }

// Infow logs a message with alternating key/value pairs.
func (l *Logger) Infow(msg string, keysAndValues ...any) { l.sugar().Infow(msg, keysAndValues...) }
func (l *Logger) Warnw(msg string, keysAndValues ...any) { l.sugar().Warnw(msg, keysAndValues...) }

// Package-level convenience functions using the default logger

func Debugf(format string, args ...any) { GetLogger().Debugf(format, args...) }
func Infof(format string, args ...any)  { GetLogger().Infof(format, args...) }
func Warnf(format string, args ...any)  { GetLogger().Warnf(format, args...) }
func Errorf(format string, args ...any) { GetLogger().Errorf(format, args...) }
func Fatalf(format string, args ...any) { GetLogger().Fatalf(format, args...) }

// SetLevel sets the log level for the default logger
func SetLevel(level LogLevel) {
	GetLogger().SetLevel(level)
}

// SetOutput sets the output for the default logger
func SetOutput(w io.Writer) {
	GetLogger().SetOutput(w)
}

type ctxKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return GetLogger()
}
