// Package trigger decides whether an inbound payload is a button press.
//
// Payloads are JSON objects; their top-level fields become variables of an
// expr-lang expression, and the raw text is available as payload. The
// default expression matches the hub's button code:
//
//	string(msg?.button_pressed) == "14"
package trigger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Errors
var (
	ErrEmptyExpression = errors.New("trigger: empty expression")
	ErrInvalidPayload  = errors.New("trigger: payload is not a JSON object")
	ErrNotBool         = errors.New("trigger: expression did not return a bool")
)

// Detector evaluates a compiled expression against payloads. It is safe for
// concurrent use.
type Detector struct {
	expression string
	program    *vm.Program
}

// New compiles expression.
func New(expression string) (*Detector, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, ErrEmptyExpression
	}
	program, err := expr.Compile(expression, expr.Env(map[string]interface{}{}), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("trigger: compile %q: %w", expression, err)
	}
	return &Detector{expression: expression, program: program}, nil
}

// Expression returns the source expression.
func (d *Detector) Expression() string {
	return d.expression
}

// Match reports whether payload satisfies the expression.
func (d *Detector) Match(payload string) (bool, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if fields == nil {
		return false, ErrInvalidPayload
	}

	env := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		env[k] = v
	}
	env["payload"] = payload

	out, err := vm.Run(d.program, env)
	if err != nil {
		return false, fmt.Errorf("trigger: evaluate: %w", err)
	}
	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%w: got %T", ErrNotBool, out)
	}
	return matched, nil
}
