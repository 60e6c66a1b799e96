package dashprefs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoEvaluator   = errors.New("dashprefs: evaluator not configured")
	ErrUnknownEngine = errors.New("unknown rule engine")
	// ErrRuleResult reports a size rule that returned something other than a
	// bool or a size name.
	ErrRuleResult = errors.New("size rule returned an unsupported value")

	errEmptyExpression = errors.New("expression must not be empty")
)

// RuleStage tells whether a size rule failed while compiling or while being
// applied to a dashboard item.
type RuleStage string

const (
	StageCompile  RuleStage = "compile"
	StageEvaluate RuleStage = "evaluate"
)

// EvaluationError describes a size rule failure. Item and Domain are empty
// for compile failures.
type EvaluationError struct {
	Engine string
	Stage  RuleStage
	Rule   string
	Item   string
	Domain string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "dashprefs: %s size rule failed to %s", e.Engine, e.Stage)
	if e.Item != "" {
		fmt.Fprintf(&b, " for %s (domain %s)", e.Item, e.Domain)
	}
	if e.Rule == "" {
		b.WriteString(" rule=<empty>")
	} else {
		fmt.Fprintf(&b, " rule=%q", e.Rule)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// engineError prefixes failures that are not tied to a rule, such as a
// missing program or an unknown engine.
func engineError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) || strings.HasPrefix(err.Error(), "dashprefs:") {
		return err
	}
	return fmt.Errorf("dashprefs: %s evaluator: %w", engine, err)
}

func compileError(engine, rule string, err error) error {
	return ruleFailure(engine, StageCompile, rule, "", err)
}

// itemError attributes an evaluation failure to the dashboard item the rule
// was sizing.
func itemError(engine, rule, itemID string, err error) error {
	return ruleFailure(engine, StageEvaluate, rule, itemID, err)
}

func ruleFailure(engine string, stage RuleStage, rule, itemID string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Stage == "" {
			evalErr.Stage = stage
		}
		if evalErr.Rule == "" {
			evalErr.Rule = rule
		}
		if evalErr.Item == "" && itemID != "" {
			evalErr.Item = itemID
			evalErr.Domain = DomainOf(itemID)
		}
		return evalErr
	}

	out := &EvaluationError{Engine: engine, Stage: stage, Rule: rule, Item: itemID, Err: err}
	if itemID != "" {
		out.Domain = DomainOf(itemID)
	}
	return out
}
