package dashprefs

import (
	"fmt"
	"strings"
	"time"
)

// RuleOption configures RuleDefault.
type RuleOption func(*ruleConfig)

type ruleConfig struct {
	logger RuleLogger
	args   map[string]any
	now    func() time.Time
}

// WithRuleLogger records every evaluation on logger.
func WithRuleLogger(logger RuleLogger) RuleOption {
	return func(cfg *ruleConfig) {
		if logger == nil {
			cfg.logger = noopRuleLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithRuleArgs exposes args to the expression as `args`.
func WithRuleArgs(args map[string]any) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.args = args
	}
}

// WithRuleClock overrides the time bound to `now`.
func WithRuleClock(now func() time.Time) RuleOption {
	return func(cfg *ruleConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// RuleDefault compiles expression once and returns a DefaultSize that runs it
// for every item without an explicit override. A true result (or the strings
// "tall"/"large") means tall. Evaluation failures are logged and size the item
// as regular.
func RuleDefault(evaluator Evaluator, expression string, opts ...RuleOption) (DefaultSize, error) {
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	cfg := ruleConfig{logger: noopRuleLogger{}, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	rule, err := evaluator.Compile(expression)
	if err != nil {
		return nil, err
	}
	engine := evaluatorEngineName(evaluator)

	return func(itemID string) Size {
		now := cfg.now()
		ctx := RuleContext{EntityID: itemID, Now: &now, Args: cfg.args}
		start := time.Now()
		value, evalErr := rule.Evaluate(ctx)
		size := SizeRegular
		if evalErr == nil {
			size, evalErr = sizeFromResult(value)
		}
		cfg.logger.LogEvaluation(RuleLogEvent{
			Engine:   engine,
			Expr:     expression,
			Entity:   itemID,
			Result:   size,
			Duration: time.Since(start),
			Err:      itemError(engine, expression, itemID, evalErr),
		})
		if evalErr != nil {
			return SizeRegular
		}
		return size
	}, nil
}

func sizeFromResult(value any) (Size, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return SizeTall, nil
		}
		return SizeRegular, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "tall", "large":
			return SizeTall, nil
		case "regular", "small", "":
			return SizeRegular, nil
		}
		return SizeRegular, fmt.Errorf("%w: unrecognised size %q", ErrRuleResult, v)
	case nil:
		return SizeRegular, nil
	default:
		return SizeRegular, fmt.Errorf("%w: got %T", ErrRuleResult, value)
	}
}
