// Package rlog provides the leveled, rotating logger used throughout the
// reactor, the Go rendering of log.h's DEBUGLOG/INFOLOG/ERRORLOG macros
// and LogEvent/AsyncLogger pairing, built on zap (structured logging) and
// lumberjack (size-based rotation) in place of the source's own
// hand-rolled AsyncLogger buffer-and-flush-thread.
package rlog

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New, mirroring config.Config.Log.
type Options struct {
	Level        string // DEBUG, INFO, or ERROR; unrecognized values fall back to INFO
	FileName     string
	FilePath     string
	SyncInterval time.Duration // flush cadence; lumberjack itself writes synchronously
	MaxFileSize  int64         // bytes before rotation
}

// CallContextFrom is satisfied by rapidrpc.CallContextFrom; rlog takes it
// as a function value rather than importing the root package, avoiding an
// import cycle between the reactor core and its own logger.
type CallContextFrom func(ctx context.Context) (msgID, method string, ok bool)

func levelFromString(s string) zapcore.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "INFO":
		return zapcore.InfoLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a *zap.Logger writing to a lumberjack-rotated file at
// FilePath/FileName, sized per MaxFileSize. SyncInterval drives a
// zapcore.BufferedWriteSyncer flush ticker, the structured-logging
// analogue of the source's AsyncLogger buffer-and-flush-thread.
func New(opts Options) *zap.Logger {
	rotator := &lumberjack.Logger{
		Filename: opts.FilePath + "/" + opts.FileName + ".log",
		MaxSize:  int(opts.MaxFileSize / (1024 * 1024)), // lumberjack counts MB
		Compress: true,
	}

	flushInterval := opts.SyncInterval
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	buffered := &zapcore.BufferedWriteSyncer{
		WS:            zapcore.AddSync(rotator),
		FlushInterval: flushInterval,
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		buffered,
		levelFromString(opts.Level),
	)
	return zap.New(core)
}

// WithCall annotates logger with the msg-id/method published on ctx by
// the dispatcher, the structured-logging analogue of the source's
// thread-local Runtime fields being interpolated into every log line.
func WithCall(logger *zap.Logger, ctx context.Context, fn CallContextFrom) *zap.Logger {
	msgID, method, ok := fn(ctx)
	if !ok {
		return logger
	}
	return logger.With(zap.String("msg_id", msgID), zap.String("method", method))
}
