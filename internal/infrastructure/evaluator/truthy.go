package evaluator

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// truthy follows loose scripting semantics: false, zero, empty, "false", "0"
// and nil are false; everything else is true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		s := strings.TrimSpace(t)
		return s != "" && s != "0" && !strings.EqualFold(s, "false")
	case decimal.Decimal:
		return !t.IsZero()
	}

	if d, ok := toDecimal(v); ok {
		return !d.IsZero()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// toDecimal converts numeric values and numeric strings to a decimal
func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int8:
		return decimal.NewFromInt(int64(t)), true
	case int16:
		return decimal.NewFromInt(int64(t)), true
	case int32:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case uint8:
		return decimal.NewFromInt(int64(t)), true
	case uint16:
		return decimal.NewFromInt(int64(t)), true
	case uint32:
		return decimal.NewFromInt(int64(t)), true
	case uint:
		return decimal.RequireFromString(strconv.FormatUint(uint64(t), 10)), true
	case uint64:
		return decimal.RequireFromString(strconv.FormatUint(t, 10)), true
	case float32:
		return decimal.NewFromFloat32(t), true
	case float64:
		return decimal.NewFromFloat(t), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	case interface{ String() string }:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	}
	return decimal.Decimal{}, false
}
