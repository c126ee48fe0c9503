// Package conditions evaluates a rule's guard conditions against a trigger
// context.
package conditions

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/storekit/automation/pkg/models"
	"github.com/storekit/automation/pkg/template"
)

// Evaluate folds the condition list left to right. The logical operator
// attached to condition i governs how condition i+1 combines with the running
// result; the first condition always combines with the initial true
// accumulator via "and". An empty list evaluates to true.
func Evaluate(conds []models.WorkflowCondition, context map[string]any) bool {
	result := true
	logical := models.LogicalAnd

	for _, cond := range conds {
		value := template.Resolve(context, cond.Field)
		matched := compare(cond.Operator, value, cond.Value)

		if logical == models.LogicalOr {
			result = result || matched
		} else {
			result = result && matched
		}

		logical = cond.Logical
		if logical == "" {
			logical = models.LogicalAnd
		}
	}

	return result
}

func compare(op models.ComparisonOperator, actual, expected any) bool {
	switch op {
	case models.OperatorEquals:
		return equals(actual, expected)
	case models.OperatorNotEquals:
		return !equals(actual, expected)
	case models.OperatorGreaterThan, models.OperatorLessThan,
		models.OperatorGreaterEqual, models.OperatorLessEqual:
		return ordered(op, actual, expected)
	case models.OperatorIn:
		return member(actual, expected)
	case models.OperatorContains:
		return strings.Contains(template.Stringify(actual), template.Stringify(expected))
	case models.OperatorStartsWith:
		return strings.HasPrefix(template.Stringify(actual), template.Stringify(expected))
	case models.OperatorEndsWith:
		return strings.HasSuffix(template.Stringify(actual), template.Stringify(expected))
	default:
		return false
	}
}

func equals(actual, expected any) bool {
	if reflect.DeepEqual(actual, expected) {
		return true
	}

	// JSON round-trips turn ints into float64; compare numerically when
	// both sides coerce.
	a, aok := toFloat(actual)
	b, bok := toFloat(expected)

	return aok && bok && a == b
}

func ordered(op models.ComparisonOperator, actual, expected any) bool {
	a, aok := toFloat(actual)
	b, bok := toFloat(expected)

	if !aok || !bok {
		return false
	}

	switch op {
	case models.OperatorGreaterThan:
		return a > b
	case models.OperatorLessThan:
		return a < b
	case models.OperatorGreaterEqual:
		return a >= b
	case models.OperatorLessEqual:
		return a <= b
	default:
		return false
	}
}

// member tests containment of actual in the expected sequence.
func member(actual, expected any) bool {
	seq := reflect.ValueOf(expected)
	if seq.Kind() != reflect.Slice && seq.Kind() != reflect.Array {
		return false
	}

	for i := range seq.Len() {
		if equals(actual, seq.Index(i).Interface()) {
			return true
		}
	}

	return false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)

		return f, err == nil
	default:
		return 0, false
	}
}
