package utils

// logger.go - настройка логирования
//
// Структурированное логирование на базе zap. Logger оборачивает
// *zap.Logger и *zap.SugaredLogger и добавляет доменные конструкторы полей
// (Exchange, Symbol, Spread, ...) и именованные дочерние логгеры.

import (
	"math"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig describes logger construction options.
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal (default: info)
	Format      string // json, text/console (default: json)
	Output      string // file path; empty means stderr
	Development bool   // zap development mode (readable stacktraces)
}

// Logger wraps zap for consistent logging across the core.
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

// InitLogger builds a Logger from cfg. Never returns nil and never panics:
// an invalid Output path falls back to stderr.
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "text" || cfg.Format == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	sink := zapcore.AddSync(os.Stderr)
	if cfg.Output != "" {
		if f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			sink = zapcore.AddSync(f)
		}
	}

	core := zapcore.NewCore(encoder, sink, level)

	var opts []zap.Option
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddCaller())
	}

	zl := zap.New(core, opts...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug", "DEBUG":
		return zapcore.DebugLevel
	case "info", "INFO":
		return zapcore.InfoLevel
	case "warn", "WARN", "warning", "WARNING":
		return zapcore.WarnLevel
	case "error", "ERROR":
		return zapcore.ErrorLevel
	case "fatal", "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// With returns a child logger with the given structured fields attached.
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.Logger.With(fields...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// WithComponent tags the logger with a component name (registry, cache,
// graph, evaluator, scanner, feed, sink, ...).
func (l *Logger) WithComponent(name string) *Logger { return l.With(Component(name)) }

// WithExchange tags the logger with an exchange id.
func (l *Logger) WithExchange(exchange string) *Logger { return l.With(Exchange(exchange)) }

// WithSymbol tags the logger with a market symbol.
func (l *Logger) WithSymbol(symbol string) *Logger { return l.With(Symbol(symbol)) }

// WithPairID tags the logger with a numeric identifier (cycle or pair id).
func (l *Logger) WithPairID(id int) *Logger { return l.With(PairID(id)) }

// Sugar returns the underlying SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *zap.SugaredLogger { return l.sugar }

// ============================================================
// Field constructors
// ============================================================

func Exchange(v string) zap.Field  { return zap.String("exchange", v) }
func Symbol(v string) zap.Field    { return zap.String("symbol", v) }
func PairID(v int) zap.Field       { return zap.Int("pair_id", v) }
func OrderID(v string) zap.Field   { return zap.String("order_id", v) }
func Price(v float64) zap.Field    { return zap.Float64("price", v) }
func Volume(v float64) zap.Field   { return zap.Float64("volume", v) }
func Spread(v float64) zap.Field   { return zap.Float64("spread", v) }
func PNL(v float64) zap.Field      { return zap.Float64("pnl", v) }
func Side(v string) zap.Field      { return zap.String("side", v) }
func State(v string) zap.Field     { return zap.String("state", v) }
func Latency(v float64) zap.Field  { return zap.Float64("latency_ms", v) }
func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func UserID(v int) zap.Field       { return zap.Int("user_id", v) }
func Component(v string) zap.Field { return zap.String("component", v) }

// Re-exported zap field constructors so callers only need this package.
var (
	String  = zap.String
	Int     = zap.Int
	Int64   = zap.Int64
	Float64 = zap.Float64
	Bool    = zap.Bool
	Err     = zap.Error
	Any     = zap.Any
)

// ============================================================
// Global logger
// ============================================================

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// GetGlobalLogger returns the process-wide logger, creating a default one
// (info/json to stderr) on first use.
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// InitGlobalLogger builds a logger from cfg and installs it globally.
func InitGlobalLogger(cfg LogConfig) *Logger {
	l := InitLogger(cfg)
	SetGlobalLogger(l)
	return l
}

// SetGlobalLogger installs an already-built logger globally (used by tests
// to capture output).
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// L returns the global logger, equivalent to GetGlobalLogger.
func L() *Logger { return GetGlobalLogger() }

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

func Debugf(format string, args ...interface{}) { L().sugar.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { L().sugar.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { L().sugar.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { L().sugar.Errorf(format, args...) }

// fieldsToInterface flattens zap fields into key/value pairs in their
// original order, for bridging into printf-style sinks.
func fieldsToInterface(fields []zap.Field) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, fieldValue(f))
	}
	return out
}

func fieldValue(f zap.Field) interface{} {
	switch f.Type {
	case zapcore.StringType:
		return f.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
		return f.Integer
	case zapcore.Float64Type:
		return math.Float64frombits(uint64(f.Integer))
	case zapcore.BoolType:
		return f.Integer == 1
	default:
		return f.Interface
	}
}
