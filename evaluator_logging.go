package dashprefs

import (
	"time"

	"go.uber.org/zap"
)

// RuleLogEvent describes one size rule evaluation.
type RuleLogEvent struct {
	Engine   string
	Expr     string
	Entity   string
	Result   Size
	Duration time.Duration
	Err      error
}

// RuleLogger records rule evaluations.
type RuleLogger interface {
	LogEvaluation(RuleLogEvent)
}

// RuleLoggerFunc adapts a function to RuleLogger.
type RuleLoggerFunc func(RuleLogEvent)

// LogEvaluation implements RuleLogger.
func (f RuleLoggerFunc) LogEvaluation(event RuleLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopRuleLogger struct{}

func (noopRuleLogger) LogEvaluation(RuleLogEvent) {}

// ZapRuleLogger writes successful evaluations at debug level and failures
// at warn level.
func ZapRuleLogger(logger *zap.Logger) RuleLogger {
	if logger == nil {
		return noopRuleLogger{}
	}
	return RuleLoggerFunc(func(event RuleLogEvent) {
		fields := []zap.Field{
			zap.String("engine", event.Engine),
			zap.String("expr", event.Expr),
			zap.String("entity_id", event.Entity),
			zap.Stringer("size", event.Result),
			zap.Duration("duration", event.Duration),
		}
		if event.Err != nil {
			logger.Warn("size rule failed, using regular size", append(fields, zap.Error(event.Err))...)
			return
		}
		logger.Debug("size rule evaluated", fields...)
	})
}
