package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It discards everything until Init is called.
var Log = zap.NewNop().Sugar()

var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Init installs a production zap logger at the given level
// ("debug", "info", "warn", "error"). An empty level means info.
func Init(lvl string) error {
	l, err := parseLevel(lvl)
	if err != nil {
		return err
	}
	level.SetLevel(l)

	cfg := zap.NewProductionConfig()
	cfg.Level = level
	built, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = built.Sugar()
	return nil
}

// SetLevel changes the level of the logger installed by Init without
// rebuilding it.
func SetLevel(lvl string) error {
	l, err := parseLevel(lvl)
	if err != nil {
		return err
	}
	level.SetLevel(l)
	return nil
}

// Level returns the current level.
func Level() string {
	return level.Level().String()
}

func parseLevel(lvl string) (zapcore.Level, error) {
	l := zapcore.InfoLevel
	if lvl == "" {
		return l, nil
	}
	if err := l.UnmarshalText([]byte(lvl)); err != nil {
		return l, err
	}
	return l, nil
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = Log.Sync()
}
