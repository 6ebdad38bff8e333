package scoring

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/willyu1007/AI-TEMPLATE-sub000/internal/types"
)

// Clause is one comparison in a recommendation condition.
type Clause struct {
	Term  string
	Op    string
	Value float64
}

// Recommendation is a rule that fires when every clause holds.
type Recommendation struct {
	Condition string
	Priority  types.Priority
	Message   string
	Actions   []string
	Clauses   []Clause

	order int
}

// Fired is a recommendation that matched a run.
type Fired struct {
	Priority types.Priority `json:"priority"`
	Message  string         `json:"message"`
	Actions  []string       `json:"actions,omitempty"`
}

var operators = []string{"<=", ">=", "==", "!=", "<", ">"}

func compileRecommendation(order int, rr rawRecommendation) (Recommendation, error) {
	rec := Recommendation{
		Condition: strings.TrimSpace(rr.Condition),
		Priority:  types.Priority(strings.ToLower(rr.Priority)),
		Message:   rr.Message,
		Actions:   rr.Actions,
		order:     order,
	}
	if rec.Priority == "" {
		rec.Priority = types.PriorityMedium
	}
	if !rec.Priority.IsValid() {
		return rec, fmt.Errorf("unknown priority %q", rr.Priority)
	}
	if rec.Message == "" {
		return rec, fmt.Errorf("message is required")
	}
	clauses, err := ParseCondition(rec.Condition)
	if err != nil {
		return rec, err
	}
	rec.Clauses = clauses
	return rec, nil
}

// ParseCondition parses "<term> <op> <number> [and ...]".
func ParseCondition(cond string) ([]Clause, error) {
	if strings.TrimSpace(cond) == "" {
		return nil, fmt.Errorf("condition is required")
	}
	var clauses []Clause
	for _, part := range splitAnd(cond) {
		c, err := parseClause(part)
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", cond, err)
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}

func splitAnd(cond string) []string {
	fields := strings.Fields(cond)
	var parts []string
	var cur []string
	for _, f := range fields {
		if strings.EqualFold(f, "and") {
			parts = append(parts, strings.Join(cur, " "))
			cur = nil
			continue
		}
		cur = append(cur, f)
	}
	return append(parts, strings.Join(cur, " "))
}

func parseClause(s string) (Clause, error) {
	for _, op := range operators {
		idx := strings.Index(s, op)
		if idx < 0 {
			continue
		}
		term := strings.TrimSpace(s[:idx])
		num := strings.TrimSpace(s[idx+len(op):])
		if term == "" {
			return Clause{}, fmt.Errorf("missing term before %s", op)
		}
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return Clause{}, fmt.Errorf("%q is not a number", num)
		}
		return Clause{Term: term, Op: op, Value: v}, nil
	}
	return Clause{}, fmt.Errorf("no comparison operator in %q", s)
}

// checkTerm verifies that a term names something the engine produces.
func (m *Model) checkTerm(term string) error {
	if term == "total_score" {
		return nil
	}
	dimID, field, ok := strings.Cut(term, ".")
	if !ok {
		return fmt.Errorf("unknown term %q", term)
	}
	dim, ok := m.Dimension(dimID)
	if !ok {
		return fmt.Errorf("unknown dimension %q", dimID)
	}
	if field == "percentage" {
		return nil
	}
	if _, ok := dim.Metric(field); !ok {
		return fmt.Errorf("unknown metric %q in dimension %s", field, dimID)
	}
	return nil
}

// Values resolves condition terms for one run.
type Values interface {
	// Lookup returns the value for total_score, <dim>.percentage or
	// <dim>.<metric>; ok is false if the run has no such value.
	Lookup(term string) (float64, bool)
}

// Holds reports whether every clause is true for vals.
func (r *Recommendation) Holds(vals Values) bool {
	for _, c := range r.Clauses {
		v, ok := vals.Lookup(c.Term)
		if !ok || !compare(v, c.Op, c.Value) {
			return false
		}
	}
	return true
}

func compare(a float64, op string, b float64) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	case "==":
		return a == b
	case "!=":
		return a != b
	}
	return false
}

// Recommend evaluates every rule and returns the fired ones, most urgent
// first, declaration order within a priority.
func (m *Model) Recommend(vals Values) []Fired {
	rules := append([]Recommendation(nil), m.Recommendations...)
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority.Rank() != rules[j].Priority.Rank() {
			return rules[i].Priority.Rank() < rules[j].Priority.Rank()
		}
		return rules[i].order < rules[j].order
	})

	var fired []Fired
	for i := range rules {
		if rules[i].Holds(vals) {
			fired = append(fired, Fired{
				Priority: rules[i].Priority,
				Message:  rules[i].Message,
				Actions:  rules[i].Actions,
			})
		}
	}
	return fired
}

// ValueMap is a Values backed by a map.
type ValueMap map[string]float64

// Lookup implements Values.
func (v ValueMap) Lookup(term string) (float64, bool) {
	x, ok := v[term]
	return x, ok
}
