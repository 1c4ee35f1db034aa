// Package logging builds the process logger: zap underneath, ectologger on
// top so every component takes the same ectologger.Logger.
package logging

import (
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/tracing"
)

// New returns a logger writing JSON, or console output when pretty is set.
// Messages below level are dropped.
func New(level string, pretty bool) (ectologger.Logger, *zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if pretty {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	// every call site is the adapter
	cfg.DisableCaller = true

	zl, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return zapadapter.NewZapEctoLogger(zl, withTraceID), zl, nil
}

// withTraceID adds the active span's trace id when the message carries a
// context.
func withTraceID(msg ectologger.EctoLogMessage) ectologger.EctoLogMessage {
	if msg.Ctx == nil {
		return msg
	}
	traceID := tracing.GetTraceID(msg.Ctx)
	if traceID == "" {
		return msg
	}

	fields := make(map[string]any, len(msg.Fields)+1)
	for k, v := range msg.Fields {
		fields[k] = v
	}
	fields["trace_id"] = traceID
	msg.Fields = fields
	return msg
}
