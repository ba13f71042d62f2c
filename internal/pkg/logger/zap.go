package logger

import (
	"go.uber.org/zap"
)

// ZapLogger routes structured logs through zap. Used by the long-running
// serve path where log volume and machine readability matter.
type ZapLogger struct {
	l *zap.SugaredLogger
}

// NewZap creates a ZapLogger. Debug mode switches to the development
// encoder and enables the debug level.
func NewZap(debug bool) (*ZapLogger, error) {
	var base *zap.Logger
	var err error
	if debug {
		base, err = zap.NewDevelopment()
	} else {
		base, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return &ZapLogger{l: base.Sugar()}, nil
}

// Sync flushes buffered log entries. Call before process exit.
func (z *ZapLogger) Sync() {
	_ = z.l.Sync()
}

func (z *ZapLogger) Debug(msg string, fields map[string]interface{}) {
	z.l.Debugw(msg, flatten(fields)...)
}

func (z *ZapLogger) Info(msg string, fields map[string]interface{}) {
	z.l.Infow(msg, flatten(fields)...)
}

func (z *ZapLogger) Warn(msg string, fields map[string]interface{}) {
	z.l.Warnw(msg, flatten(fields)...)
}

func (z *ZapLogger) Error(msg string, err error, fields map[string]interface{}) {
	kv := flatten(fields)
	if err != nil {
		kv = append(kv, "error", err.Error())
	}
	z.l.Errorw(msg, kv...)
}

func flatten(fields map[string]interface{}) []interface{} {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return kv
}
