//go:build !js_eval

package dashprefs

// JSAvailable reports whether the binary was built with the js_eval tag.
func JSAvailable() bool {
	return false
}

// NewJSEvaluator returns nil without the js_eval build tag; NewEvaluator
// turns that into ErrNoEvaluator.
func NewJSEvaluator(...JSEvaluatorOption) Evaluator {
	return nil
}

func isJSEvaluator(Evaluator) bool {
	return false
}
