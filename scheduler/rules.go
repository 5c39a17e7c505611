package scheduler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// sortRules orders enabled rules by priority desc, stable by insertion order.
func sortRules(rules []RoutingRule) []RoutingRule {
	enabled := make([]RoutingRule, 0, len(rules))
	for i, r := range rules {
		if r.Enabled {
			r.insertionOrder = i
			enabled = append(enabled, r)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		if enabled[i].Priority != enabled[j].Priority {
			return enabled[i].Priority > enabled[j].Priority
		}
		return enabled[i].insertionOrder < enabled[j].insertionOrder
	})
	return enabled
}

// evaluateRule reports whether rule matches the given request fields.
func evaluateRule(rule RoutingRule, fields map[string]any) bool {
	if len(rule.Conditions) == 0 {
		return true
	}

	op := rule.LogicalOperator
	if op == "" {
		op = LogicalAnd
	}

	for _, cond := range rule.Conditions {
		matched := evaluateCondition(cond, fields[cond.Field])
		switch op {
		case LogicalOr:
			if matched {
				return true
			}
		default: // AND
			if !matched {
				return false
			}
		}
	}

	// AND: all matched (loop never returned false); OR: none matched.
	return op != LogicalOr
}

func evaluateCondition(cond Condition, value any) bool {
	switch cond.Operator {
	case OpCustom:
		if cond.Custom == nil {
			return false
		}
		return cond.Custom(value)
	case OpEquals:
		return fmt.Sprint(value) == fmt.Sprint(cond.Value)
	case OpNotEquals:
		return fmt.Sprint(value) != fmt.Sprint(cond.Value)
	case OpContains:
		return strings.Contains(fmt.Sprint(value), fmt.Sprint(cond.Value))
	case OpNotContains:
		return !strings.Contains(fmt.Sprint(value), fmt.Sprint(cond.Value))
	case OpStartsWith:
		return strings.HasPrefix(fmt.Sprint(value), fmt.Sprint(cond.Value))
	case OpEndsWith:
		return strings.HasSuffix(fmt.Sprint(value), fmt.Sprint(cond.Value))
	case OpGT, OpLT, OpGTE, OpLTE:
		return compareNumeric(cond.Operator, value, cond.Value)
	case OpIn:
		return containsAny(cond.Value, value)
	case OpNotIn:
		return !containsAny(cond.Value, value)
	case OpRegex:
		re, err := regexp.Compile(fmt.Sprint(cond.Value))
		if err != nil {
			return false
		}
		return re.MatchString(fmt.Sprint(value))
	default:
		return false
	}
}

func compareNumeric(op Operator, value, target any) bool {
	v, ok1 := toFloat(value)
	t, ok2 := toFloat(target)
	if !ok1 || !ok2 {
		return false
	}
	switch op {
	case OpGT:
		return v > t
	case OpLT:
		return v < t
	case OpGTE:
		return v >= t
	case OpLTE:
		return v <= t
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func containsAny(set any, value any) bool {
	items, ok := set.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if fmt.Sprint(item) == fmt.Sprint(value) {
			return true
		}
	}
	return false
}

// firstMatch returns the first rule (in priority order) whose conditions
// match fields, or false if none does.
func firstMatch(rules []RoutingRule, fields map[string]any) (RoutingRule, bool) {
	for _, r := range rules {
		if evaluateRule(r, fields) {
			return r, true
		}
	}
	return RoutingRule{}, false
}
