package rule

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"maps"
	"strings"
	"time"
)

// Well-known keys exposed by ExecutionContext.Values and Lookup
const (
	KeyEmployeeID   = "employeeId"
	KeyDepartmentID = "departmentId"
	KeyDate         = "date"

	dateLayout = "2006-01-02"
)

// ExecutionContext is the key/value environment a rule is evaluated against.
// The engine never mutates it; With* methods return modified copies.
type ExecutionContext struct {
	EmployeeID   string         `json:"employee_id" yaml:"employee_id"`
	DepartmentID string         `json:"department_id" yaml:"department_id"`
	Date         time.Time      `json:"date" yaml:"date"`
	Attributes   map[string]any `json:"attributes" yaml:"attributes"`
}

// NewExecutionContext creates a context for an employee
func NewExecutionContext(employeeID string) ExecutionContext {
	return ExecutionContext{
		EmployeeID: employeeID,
		Attributes: make(map[string]any),
	}
}

// WithDepartment returns a copy with the department set
func (c ExecutionContext) WithDepartment(departmentID string) ExecutionContext {
	c.Attributes = maps.Clone(c.Attributes)
	c.DepartmentID = departmentID
	return c
}

// WithDate returns a copy with the evaluation date set
func (c ExecutionContext) WithDate(date time.Time) ExecutionContext {
	c.Attributes = maps.Clone(c.Attributes)
	c.Date = date
	return c
}

// WithAttribute returns a copy with one attribute set
func (c ExecutionContext) WithAttribute(key string, value any) ExecutionContext {
	attrs := make(map[string]any, len(c.Attributes)+1)
	maps.Copy(attrs, c.Attributes)
	attrs[key] = value
	c.Attributes = attrs
	return c
}

// WithAttributes returns a copy with all given attributes merged in
func (c ExecutionContext) WithAttributes(values map[string]any) ExecutionContext {
	attrs := make(map[string]any, len(c.Attributes)+len(values))
	maps.Copy(attrs, c.Attributes)
	maps.Copy(attrs, values)
	c.Attributes = attrs
	return c
}

// Lookup resolves a key or dotted path against the context.
func (c ExecutionContext) Lookup(path string) (any, bool) {
	switch path {
	case KeyEmployeeID:
		return c.EmployeeID, c.EmployeeID != ""
	case KeyDepartmentID:
		return c.DepartmentID, c.DepartmentID != ""
	case KeyDate:
		if c.Date.IsZero() {
			return nil, false
		}
		return c.Date.Format(dateLayout), true
	}

	if v, ok := c.Attributes[path]; ok {
		return v, true
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}

	var current any = c.Attributes
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Values returns a flat copy of the context suitable for expression engines.
func (c ExecutionContext) Values() map[string]any {
	values := make(map[string]any, len(c.Attributes)+3)
	maps.Copy(values, c.Attributes)
	if c.EmployeeID != "" {
		values[KeyEmployeeID] = c.EmployeeID
	}
	if c.DepartmentID != "" {
		values[KeyDepartmentID] = c.DepartmentID
	}
	if !c.Date.IsZero() {
		values[KeyDate] = c.Date.Format(dateLayout)
	}
	return values
}

// Fingerprint returns a deterministic hash of the context contents.
// Two contexts with equal identity and attributes share a fingerprint.
func (c ExecutionContext) Fingerprint() string {
	canonical := struct {
		Employee   string         `json:"e"`
		Department string         `json:"d"`
		Date       string         `json:"t"`
		Attributes map[string]any `json:"a"`
	}{
		Employee:   c.EmployeeID,
		Department: c.DepartmentID,
		Attributes: c.Attributes,
	}
	if !c.Date.IsZero() {
		canonical.Date = c.Date.UTC().Format(time.RFC3339Nano)
	}

	// encoding/json sorts map keys, which keeps the output stable.
	data, err := json.Marshal(canonical)
	if err != nil {
		data = []byte(fmt.Sprintf("%#v", canonical))
	}

	h := fnv.New64a()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
