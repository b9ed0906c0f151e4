package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

type Logger struct {
	sugar *zap.SugaredLogger
	base  *zap.Logger
}

// New writes every level at or above level to filePath. When includeStdout is set,
// Info and above are echoed to stdout as well so Debug spam stays out of the terminal.
func New(filePath string, level Level, includeStdout bool) (*Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	f, _, err := zap.Open(filePath)
	if err != nil {
		return nil, err
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), f, level.zap()),
	}

	if includeStdout {
		stdoutLevel := level.zap()
		if stdoutLevel < zapcore.InfoLevel {
			stdoutLevel = zapcore.InfoLevel
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), stdoutLevel))
	}

	return NewWithCore(zapcore.NewTee(cores...)), nil
}

// NewWithCore wraps an existing zap core. Tests pass an observer core here.
func NewWithCore(core zapcore.Core) *Logger {
	base := zap.New(core)
	return &Logger{sugar: base.Sugar(), base: base}
}

// Nop discards everything.
func Nop() *Logger {
	return NewWithCore(zapcore.NewNopCore())
}

func ParseLevel(lvl string) Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) zap() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	base := l.base.Named(component)
	return &Logger{sugar: base.Sugar(), base: base}
}

func (l *Logger) Debug(f string, v ...any) { l.sugar.Debugf(f, v...) }
func (l *Logger) Info(f string, v ...any)  { l.sugar.Infof(f, v...) }
func (l *Logger) Warn(f string, v ...any)  { l.sugar.Warnf(f, v...) }
func (l *Logger) Error(f string, v ...any) { l.sugar.Errorf(f, v...) }
func (l *Logger) Fatal(f string, v ...any) { l.sugar.Fatalf(f, v...) }

// Sync flushes buffered entries; call before exit.
func (l *Logger) Sync() error { return l.base.Sync() }

func (l *Logger) Write(p []byte) (n int, err error) {
	// Echo and other libraries often include a newline at the end
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		l.Info("%s", msg)
	}
	return len(p), nil
}
