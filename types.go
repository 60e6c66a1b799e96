package dashprefs

import "time"

// RuleContext carries the item a size rule is evaluated for.
type RuleContext struct {
	EntityID string
	Now      *time.Time
	Args     map[string]any
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaults()
	return *ctx.Now
}

// bindings exposes the item to expressions as entity_id, domain and object_id.
func (ctx RuleContext) bindings() map[string]any {
	domain := DomainOf(ctx.EntityID)
	objectID := ""
	if len(ctx.EntityID) > len(domain) {
		objectID = ctx.EntityID[len(domain)+1:]
	}
	return map[string]any{
		"entity_id": ctx.EntityID,
		"domain":    domain,
		"object_id": objectID,
	}
}

// Evaluator executes size rule expressions.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// Rule engine names accepted by NewEvaluator.
const (
	EngineCEL  = "cel"
	EngineExpr = "expr"
	EngineJS   = "js"
)

// NewEvaluator returns the evaluator registered for engine. The JS engine is
// only available when built with the js_eval tag.
func NewEvaluator(engine string, cache ProgramCache, registry *FunctionRegistry) (Evaluator, error) {
	switch engine {
	case EngineCEL, "":
		return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(registry)), nil
	case EngineExpr:
		return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry)), nil
	case EngineJS:
		evaluator := NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(registry))
		if evaluator == nil {
			return nil, ErrNoEvaluator
		}
		return evaluator, nil
	default:
		return nil, engineError(engine, ErrUnknownEngine)
	}
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case *celEvaluator:
		return EngineCEL
	case *exprEvaluator:
		return EngineExpr
	default:
		if JSAvailable() && isJSEvaluator(e) {
			return EngineJS
		}
		return "custom"
	}
}
