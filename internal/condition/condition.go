// Package condition evaluates stage entry conditions against a document payload.
package condition

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"approval-routing/internal/payload"
	"approval-routing/pkg/models"
)

// Evaluate reports whether cond holds for doc. A nil condition always holds.
func Evaluate(cond *models.Condition, doc any) bool {
	ok, _ := Check(cond, doc)
	return ok
}

// Check evaluates cond like Evaluate and also returns a configuration warning
// when the condition cannot be evaluated as written. The warning is empty when
// the condition is well formed and its operand is present.
func Check(cond *models.Condition, doc any) (bool, string) {
	if cond == nil {
		return true, ""
	}
	if cond.Left == "" {
		return false, "condition has no left operand"
	}

	left, found := payload.Lookup(doc, cond.Left)
	warning := ""
	if !found {
		warning = fmt.Sprintf("condition operand %q missing from payload", cond.Left)
	}

	switch cond.Op {
	case models.OpEq:
		return found && strictEqual(left, cond.Right), warning
	case models.OpNeq:
		return !found || !strictEqual(left, cond.Right), warning
	case models.OpGt, models.OpLt, models.OpGte, models.OpLte:
		return compare(cond.Op, toNumber(left), toNumber(cond.Right)), warning
	case models.OpIn:
		list, ok := asList(cond.Right)
		if !ok {
			return false, fmt.Sprintf("operator in on %q needs a list operand", cond.Left)
		}
		if !found {
			return false, warning
		}
		for _, item := range list {
			if strictEqual(left, item) {
				return true, ""
			}
		}
		return false, ""
	case models.OpContains:
		needle, ok := cond.Right.(string)
		if !ok {
			return false, fmt.Sprintf("operator contains on %q needs a string operand", cond.Left)
		}
		haystack, ok := left.(string)
		return ok && strings.Contains(haystack, needle), warning
	default:
		return false, fmt.Sprintf("unknown operator %q", cond.Op)
	}
}

func compare(op models.Operator, a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	switch op {
	case models.OpGt:
		return a > b
	case models.OpLt:
		return a < b
	case models.OpGte:
		return a >= b
	case models.OpLte:
		return a <= b
	}
	return false
}

// strictEqual compares scalars by value. Numbers compare numerically whatever
// Go type the decoder produced; maps and slices are never equal.
func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := numeric(a); ok {
		y, ok := numeric(b)
		return ok && x == y
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return false
}

// toNumber coerces v to a float64, returning NaN for anything non-numeric.
func toNumber(v any) float64 {
	if n, ok := numeric(v); ok {
		return n
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return math.NaN()
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	}
	return math.NaN()
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case interface{ Float64() (float64, error) }: // json.Number
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// asList accepts any slice or array, typed or decoded.
func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
