package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// fixedLevelCore pins a wrapped core to its own minimum level, independent
// of the shared atomic level.
type fixedLevelCore struct {
	zapcore.Core

	// minLevel is the lowest level this core accepts.
	minLevel zapcore.Level
}

// Enabled reports whether l passes the pinned level.
func (c *fixedLevelCore) Enabled(l zapcore.Level) bool {
	return c.minLevel.Enabled(l)
}

// Check keeps ent only when the pinned level allows it.
//
//nolint:gocritic // zapcore passes Entry by value.
func (c *fixedLevelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}

	return ce.AddCore(ent, c)
}

// With keeps the pinned level on derived cores.
//
//nolint:ireturn // zapcore.Core is the integration point.
func (c *fixedLevelCore) With(fields []zapcore.Field) zapcore.Core {
	return &fixedLevelCore{Core: c.Core.With(fields), minLevel: c.minLevel}
}

// WithLevel pins the logger built with this option to lvl. Tests use it to
// silence everything below errors.
//
//nolint:ireturn // zap.Option is the integration point.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &fixedLevelCore{Core: core, minLevel: lvl}
	})
}
