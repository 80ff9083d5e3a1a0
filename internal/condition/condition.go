// Package condition evaluates the restricted boolean expressions that gate
// step execution.
//
// The grammar is intentionally small: a bare identifier (truthy check), a
// single comparison against a literal, or a compound expression joining
// those atoms with &&, || and unary !. Evaluation is fail-closed — any
// parse or evaluation problem yields false, never an error — so a bad
// condition can only ever skip a step, not run one.
//
// Compound expressions never reach a general-purpose interpreter. Each atom
// is resolved against the variable bindings first (word-boundary matched,
// so a longer name can never be clobbered by a shorter prefix), leaving a
// purely boolean skeleton that is handed to govaluate, a closed expression
// evaluator with no access to the host runtime.
package condition

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
)

var (
	identRe      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	comparisonRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*(===|!==|==|!=)\s*(.+)$`)

	// atomRe matches "ident OP literal" atoms inside a compound expression.
	atomRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*(===|!==|==|!=)\s*(true|false|null|undefined|'[^']*'|"[^"]*"|-?\d+(?:\.\d+)?)`)

	// tokenRe matches the remaining bare identifiers after atoms are
	// resolved.
	tokenRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

	// skeletonRe validates that substitution left nothing but boolean
	// literals, logical operators and parentheses.
	skeletonRe = regexp.MustCompile(`^(?:\s|true|false|&&|\|\||!|\(|\))+$`)

	// dangerousRe rejects member or property access into host facilities,
	// and any computed bracket indexing. Matching expressions evaluate to
	// false without ever being interpreted.
	dangerousRe = regexp.MustCompile(
		`(?:^|[^A-Za-z0-9_])(?:require|import|eval|Function|process|global|window|document|__proto__|constructor)\s*[.(\[]|\[`)
)

// Evaluate resolves a condition expression against the given variable
// bindings. It never fails: unknown grammar, rejected patterns, and
// evaluation errors all return false.
func Evaluate(expr string, vars map[string]any) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false
	}
	if dangerousRe.MatchString(expr) {
		return false
	}

	// Bare identifier: defined, not null, not false, not empty string.
	if identRe.MatchString(expr) {
		v, ok := vars[expr]
		return truthy(v, ok)
	}

	// Single comparison against a literal.
	if m := comparisonRe.FindStringSubmatch(expr); m != nil {
		if lit, ok := parseLiteral(strings.TrimSpace(m[3])); ok {
			val, defined := vars[m[1]]
			return compare(val, defined, m[2], lit)
		}
		// The right-hand side was not a literal; fall through to compound
		// handling, which fails closed on anything it cannot resolve.
	}

	return evaluateCompound(expr, vars)
}

// evaluateCompound reduces every atom to a boolean literal and evaluates
// the remaining skeleton.
func evaluateCompound(expr string, vars map[string]any) bool {
	reduced := atomRe.ReplaceAllStringFunc(expr, func(atom string) string {
		m := atomRe.FindStringSubmatch(atom)
		lit, ok := parseLiteral(m[3])
		if !ok {
			return "false"
		}
		val, defined := vars[m[1]]
		return boolLit(compare(val, defined, m[2], lit))
	})

	reduced = tokenRe.ReplaceAllStringFunc(reduced, func(tok string) string {
		switch tok {
		case "true", "false":
			return tok
		}
		v, ok := vars[tok]
		return boolLit(truthy(v, ok))
	})

	if !skeletonRe.MatchString(reduced) {
		return false
	}

	ev, err := govaluate.NewEvaluableExpression(reduced)
	if err != nil {
		return false
	}
	out, err := ev.Evaluate(nil)
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

// truthy implements the bare-identifier check: defined, not null, not
// false, not empty string. Zero numbers are truthy.
func truthy(v any, defined bool) bool {
	if !defined || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	}
	return true
}

// parseLiteral recognizes the literal forms the grammar allows on the
// right-hand side of a comparison.
func parseLiteral(s string) (any, bool) {
	switch s {
	case "true":
		return true, true
	case "false":
		return false, true
	case "null", "undefined":
		return nil, true
	}
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1], true
		}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	return nil, false
}

func compare(val any, defined bool, op string, lit any) bool {
	var eq bool
	switch op {
	case "===", "!==":
		eq = strictEqual(val, defined, lit)
	default: // "==", "!="
		eq = looseEqual(val, lit)
	}
	if op == "!=" || op == "!==" {
		return !eq
	}
	return eq
}

// strictEqual requires matching kinds: nil with nil, bool with bool,
// string with string, number with number. An undefined variable only
// equals the null/undefined literal.
func strictEqual(val any, defined bool, lit any) bool {
	if !defined || val == nil {
		return lit == nil
	}
	if lit == nil {
		return false
	}
	switch l := lit.(type) {
	case bool:
		b, ok := val.(bool)
		return ok && b == l
	case string:
		s, ok := val.(string)
		return ok && s == l
	default:
		lf, _ := toFloat(lit)
		vf, ok := toFloat(val)
		return ok && vf == lf
	}
}

// looseEqual additionally coerces numeric strings, so "5" == 5 holds.
func looseEqual(val, lit any) bool {
	if val == nil || lit == nil {
		return val == nil && lit == nil
	}
	if vf, ok := coerceFloat(val); ok {
		if lf, ok := coerceFloat(lit); ok {
			return vf == lf
		}
	}
	if vb, ok := val.(bool); ok {
		lb, ok := lit.(bool)
		return ok && vb == lb
	}
	if vs, ok := val.(string); ok {
		ls, ok := lit.(string)
		return ok && vs == ls
	}
	return false
}

// toFloat converts native numeric types only.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// coerceFloat also accepts numeric strings, mirroring loose equality.
func coerceFloat(v any) (float64, bool) {
	if f, ok := toFloat(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func boolLit(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
