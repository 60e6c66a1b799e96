package dashprefs

import (
	"errors"
	"testing"
)

func TestItemErrorCarriesDashboardItem(t *testing.T) {
	base := errors.New("no such attribute")
	err := itemError(EngineExpr, `domain == "camera"`, "camera.porch", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	want := EvaluationError{Engine: EngineExpr, Stage: StageEvaluate, Rule: `domain == "camera"`, Item: "camera.porch", Domain: "camera", Err: base}
	if *evalErr != want {
		t.Fatalf("unexpected metadata %+v", *evalErr)
	}
	if !errors.Is(err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
	const msg = `dashprefs: expr size rule failed to evaluate for camera.porch (domain camera) rule="domain == \"camera\"": no such attribute`
	if err.Error() != msg {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestCompileErrorOmitsItem(t *testing.T) {
	err := compileError(EngineCEL, "", errEmptyExpression)
	const msg = "dashprefs: cel size rule failed to compile rule=<empty>: expression must not be empty"
	if err.Error() != msg {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestItemErrorFillsCompileFailure(t *testing.T) {
	existing := &EvaluationError{Engine: EngineJS, Err: ErrRuleResult}

	err := itemError(EngineCEL, "size(entity_id)", "sensor.attic_temp", existing)
	if err != existing {
		t.Fatalf("expected existing error to be reused")
	}
	if existing.Engine != EngineJS {
		t.Fatalf("existing engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Stage != StageEvaluate || existing.Rule != "size(entity_id)" {
		t.Fatalf("stage and rule should be filled, got %+v", existing)
	}
	if existing.Item != "sensor.attic_temp" || existing.Domain != "sensor" {
		t.Fatalf("item and domain should be filled, got %+v", existing)
	}

	again := itemError(EngineCEL, "other", "light.kitchen", existing)
	if again.(*EvaluationError).Item != "sensor.attic_temp" {
		t.Fatalf("item should not be replaced once set")
	}
}

func TestEngineErrorKeepsPrefixedErrors(t *testing.T) {
	if engineError(EngineCEL, nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	prefixed := errors.New("dashprefs: already wrapped")
	if got := engineError(EngineCEL, prefixed); got != prefixed {
		t.Fatalf("expected prefixed error returned as-is, got %v", got)
	}
	got := engineError(EngineJS, ErrUnknownEngine)
	if !errors.Is(got, ErrUnknownEngine) {
		t.Fatalf("expected ErrUnknownEngine to unwrap, got %v", got)
	}
	if got.Error() != "dashprefs: js evaluator: unknown rule engine" {
		t.Fatalf("unexpected message %q", got.Error())
	}
}
