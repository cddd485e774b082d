package rule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	errEmptyCondition = errors.New("condition expression is empty")
	errEmptyAction    = errors.New("action expression is empty")
)

// Compiler turns condition and action strings into compiled artifacts.
// It supports a deliberately narrow grammar: one operator per expression,
// no precedence and no parentheses. Compilation never panics or returns
// an error; failures are reported on the result object.
type Compiler struct {
	now func() time.Time
}

// CompilerOption configures a Compiler
type CompilerOption func(*Compiler)

// WithClock overrides the clock used for compile metadata
func WithClock(now func() time.Time) CompilerOption {
	return func(c *Compiler) {
		c.now = now
	}
}

// NewCompiler creates a new Compiler
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompileCondition compiles a condition expression.
func (c *Compiler) CompileCondition(expr string) (result *CompiledRule) {
	start := c.now()
	defer func() {
		if r := recover(); r != nil {
			result = &CompiledRule{
				expression: expr,
				metadata:   c.failure(start, fmt.Errorf("condition compile panicked: %v", r)),
			}
		}
	}()

	cond, err := parseCondition(expr)
	if err != nil {
		return &CompiledRule{expression: expr, metadata: c.failure(start, err)}
	}
	return &CompiledRule{
		expression: expr,
		condition:  cond,
		metadata:   c.success(start),
	}
}

// CompileAction compiles an action expression of the form TYPE[:k=v,k=v].
func (c *Compiler) CompileAction(expr string) (result *CompiledActionResult) {
	start := c.now()
	defer func() {
		if r := recover(); r != nil {
			result = &CompiledActionResult{
				expression: expr,
				metadata:   c.failure(start, fmt.Errorf("action compile panicked: %v", r)),
			}
		}
	}()

	action, err := parseAction(expr)
	if err != nil {
		return &CompiledActionResult{expression: expr, metadata: c.failure(start, err)}
	}
	return &CompiledActionResult{
		expression: expr,
		action:     action,
		metadata:   c.success(start),
	}
}

func (c *Compiler) success(start time.Time) CompileMetadata {
	return CompileMetadata{
		CompiledAt:      start,
		Duration:        c.now().Sub(start),
		CompilerName:    CompilerName,
		CompilerVersion: CompilerVersion,
		Compiled:        true,
	}
}

func (c *Compiler) failure(start time.Time, err error) CompileMetadata {
	return CompileMetadata{
		CompiledAt:      start,
		Duration:        c.now().Sub(start),
		CompilerName:    CompilerName,
		CompilerVersion: CompilerVersion,
		Compiled:        false,
		ErrorMessage:    err.Error(),
		NeedsRecompile:  true,
	}
}

func parseCondition(expr string) (*CompiledCondition, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, errEmptyCondition
	}

	for _, op := range operatorScanOrder {
		left, right, found := strings.Cut(trimmed, string(op))
		if !found {
			continue
		}
		return &CompiledCondition{
			operator: op,
			left:     strings.TrimSpace(left),
			right:    strings.TrimSpace(right),
			hasRight: true,
		}, nil
	}

	return &CompiledCondition{operator: OpRef, left: trimmed}, nil
}

func parseAction(expr string) (*CompiledAction, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, errEmptyAction
	}

	typePart, paramPart, _ := strings.Cut(trimmed, ":")
	actionType := strings.TrimSpace(typePart)
	if !isActionType(actionType) {
		actionType = UnknownActionType
	}

	return &CompiledAction{
		actionType: actionType,
		parameters: parseParameters(paramPart),
		priority:   0,
		critical:   false,
		retryCount: 0,
		timeout:    DefaultActionTimeout,
	}, nil
}

// parseParameters splits "k=v,k=v". Pairs without '=' or with an empty key are skipped.
func parseParameters(s string) map[string]string {
	params := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return params
	}
	for _, pair := range strings.Split(s, ",") {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			continue
		}
		params[key] = strings.TrimSpace(value)
	}
	return params
}

func isActionType(s string) bool {
	if s == "" {
		return false
	}
	return !strings.ContainsAny(s, " \t\r\n=,")
}
