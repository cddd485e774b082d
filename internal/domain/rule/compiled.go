package rule

import (
	"maps"
	"time"
)

// Operator is the binary operator of a compiled condition.
type Operator string

const (
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpGreaterOrEqual Operator = ">="
	OpLessOrEqual    Operator = "<="
	OpGreater        Operator = ">"
	OpLess           Operator = "<"
	OpAnd            Operator = "&&"
	OpOr             Operator = "||"
	OpRef            Operator = "REF"
)

// operatorScanOrder is the order in which operators are searched for.
// The first one present in the expression wins, regardless of position.
var operatorScanOrder = []Operator{
	OpEqual,
	OpNotEqual,
	OpGreaterOrEqual,
	OpLessOrEqual,
	OpGreater,
	OpLess,
	OpAnd,
	OpOr,
}

// IsComparison returns true for the relational and equality operators
func (o Operator) IsComparison() bool {
	switch o {
	case OpEqual, OpNotEqual, OpGreaterOrEqual, OpLessOrEqual, OpGreater, OpLess:
		return true
	}
	return false
}

// IsLogical returns true for && and ||
func (o Operator) IsLogical() bool {
	return o == OpAnd || o == OpOr
}

const (
	// UnknownActionType is used when an action expression has no usable type
	UnknownActionType = "UNKNOWN"

	CompilerName    = "AttendanceRuleEngine"
	CompilerVersion = "1.0.0"

	DefaultActionTimeout = 5000 * time.Millisecond
)

// CompileMetadata describes a single compilation run.
type CompileMetadata struct {
	CompiledAt      time.Time     `json:"compiled_at"`
	Duration        time.Duration `json:"duration"`
	CompilerName    string        `json:"compiler_name"`
	CompilerVersion string        `json:"compiler_version"`
	Compiled        bool          `json:"compiled"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	NeedsRecompile  bool          `json:"needs_recompile"`
}

// CompiledCondition is a flat, single-operator condition.
type CompiledCondition struct {
	operator Operator
	left     string
	right    string
	hasRight bool
}

// Operator returns the operator that split the expression
func (c CompiledCondition) Operator() Operator {
	return c.operator
}

// Left returns the trimmed left operand token
func (c CompiledCondition) Left() string {
	return c.left
}

// Right returns the trimmed right operand token. ok is false for REF conditions.
func (c CompiledCondition) Right() (string, bool) {
	return c.right, c.hasRight
}

// CompiledRule is the output of CompileCondition. It is never mutated after creation.
type CompiledRule struct {
	expression string
	condition  *CompiledCondition
	metadata   CompileMetadata
}

// Expression returns the source expression
func (r *CompiledRule) Expression() string {
	return r.expression
}

// Condition returns the compiled condition if compilation succeeded
func (r *CompiledRule) Condition() (CompiledCondition, bool) {
	if r.condition == nil {
		return CompiledCondition{}, false
	}
	return *r.condition, true
}

// Metadata returns the compile metadata
func (r *CompiledRule) Metadata() CompileMetadata {
	return r.metadata
}

// IsCompiled reports whether compilation succeeded
func (r *CompiledRule) IsCompiled() bool {
	return r.metadata.Compiled
}

// ErrorMessage returns the compile error, or "" on success
func (r *CompiledRule) ErrorMessage() string {
	return r.metadata.ErrorMessage
}

// CompiledAction is a parsed action with its execution metadata.
type CompiledAction struct {
	actionType string
	parameters map[string]string
	priority   int
	critical   bool
	retryCount int
	timeout    time.Duration
}

func (a CompiledAction) Type() string {
	return a.actionType
}

// Parameters returns a copy of the action parameters
func (a CompiledAction) Parameters() map[string]string {
	return maps.Clone(a.parameters)
}

// Parameter returns a single parameter value
func (a CompiledAction) Parameter(key string) (string, bool) {
	v, ok := a.parameters[key]
	return v, ok
}

func (a CompiledAction) Priority() int {
	return a.priority
}

func (a CompiledAction) Critical() bool {
	return a.critical
}

func (a CompiledAction) RetryCount() int {
	return a.retryCount
}

// Timeout is advisory; it is consumed by whoever executes the action.
func (a CompiledAction) Timeout() time.Duration {
	return a.timeout
}

// TimeoutMillis returns the timeout in milliseconds
func (a CompiledAction) TimeoutMillis() int64 {
	return a.timeout.Milliseconds()
}

// CompiledActionResult is the output of CompileAction. It is never mutated after creation.
type CompiledActionResult struct {
	expression string
	action     *CompiledAction
	metadata   CompileMetadata
}

func (r *CompiledActionResult) Expression() string {
	return r.expression
}

// Action returns the compiled action if compilation succeeded
func (r *CompiledActionResult) Action() (CompiledAction, bool) {
	if r.action == nil {
		return CompiledAction{}, false
	}
	return *r.action, true
}

func (r *CompiledActionResult) Metadata() CompileMetadata {
	return r.metadata
}

func (r *CompiledActionResult) IsCompiled() bool {
	return r.metadata.Compiled
}

func (r *CompiledActionResult) ErrorMessage() string {
	return r.metadata.ErrorMessage
}
