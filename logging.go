package tcmalloc

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the per-Heap logger from LogConfig, using
// go.uber.org/zap over gopkg.in/natefinch/lumberjack.v2 for rotation.
// Silent by default so embedding the allocator never surprises a host
// process with unsolicited output.
func newLogger(cfg LogConfig) *zap.Logger {
	if !cfg.Enabled {
		return zap.NewNop()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	var sink zapcore.WriteSyncer
	if cfg.FilePath != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    nonZero(cfg.MaxSizeMB, 100),
			MaxBackups: nonZero(cfg.MaxBackups, 3),
			MaxAge:     nonZero(cfg.MaxAgeDays, 28),
		})
	} else {
		sink = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(encoder, sink, zapcore.DebugLevel)
	return zap.New(core).Named("tcmalloc")
}

func nonZero(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
