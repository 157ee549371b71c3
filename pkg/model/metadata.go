package model

import (
	"errors"
	"fmt"
)

// DataType represents the type of a property value.
type DataType uint8

const (
	DataTypeUnknown DataType = iota
	DataTypeBool
	DataTypeInt
	DataTypeInt64
	DataTypeUint64
	DataTypeFloat64
	DataTypeString
	DataTypeBytes
	DataTypeArray
	DataTypeAny
)

// String returns the data type name.
func (d DataType) String() string {
	names := []string{
		"unknown", "bool", "int", "int64", "uint64",
		"float64", "string", "bytes", "array", "any",
	}
	if int(d) < len(names) {
		return names[d]
	}
	return "unknown"
}

// PropertyMetadata describes a property's key, type and constraints.
type PropertyMetadata struct {
	// Key is the property name, unique within the subject.
	Key string

	// Type is the data type of the property value.
	Type DataType

	// Nullable indicates if nil is a valid value.
	Nullable bool

	// Default is the initial value.
	Default any

	// MinValue is the minimum allowed value (for numeric types).
	MinValue any

	// MaxValue is the maximum allowed value (for numeric types).
	MaxValue any

	// Unit is the unit of measurement (e.g., "W", "Wh", "A").
	Unit string

	// Description is a human-readable description.
	Description string
}

// Property validation errors.
var (
	ErrPropertyNotNullable = errors.New("property does not accept nil")
	ErrPropertyValueType   = errors.New("invalid value type for property")
	ErrPropertyOutOfRange  = errors.New("value out of range")
	ErrPropertyNotArray    = errors.New("property is not array-typed")
)

// Validate checks value against the metadata's type, range and nullability
// constraints.
func (m *PropertyMetadata) Validate(value any) error {
	if value == nil {
		if !m.Nullable {
			return ErrPropertyNotNullable
		}
		return nil
	}

	switch m.Type {
	case DataTypeBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: %s expects bool", ErrPropertyValueType, m.Key)
		}
	case DataTypeInt, DataTypeInt64, DataTypeUint64:
		if !isIntegerType(value) {
			return fmt.Errorf("%w: %s expects integer", ErrPropertyValueType, m.Key)
		}
	case DataTypeFloat64:
		if !isNumericType(value) {
			return fmt.Errorf("%w: %s expects number", ErrPropertyValueType, m.Key)
		}
	case DataTypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%w: %s expects string", ErrPropertyValueType, m.Key)
		}
	case DataTypeBytes:
		if _, ok := value.([]byte); !ok {
			return fmt.Errorf("%w: %s expects bytes", ErrPropertyValueType, m.Key)
		}
	case DataTypeArray:
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("%w: %s expects array", ErrPropertyValueType, m.Key)
		}
	}

	if m.MinValue != nil || m.MaxValue != nil {
		if err := m.checkRange(value); err != nil {
			return err
		}
	}

	return nil
}

// checkRange validates numeric range constraints.
func (m *PropertyMetadata) checkRange(value any) error {
	v, ok := toFloat64(value)
	if !ok {
		return nil // Not a numeric type
	}

	if m.MinValue != nil {
		min, _ := toFloat64(m.MinValue)
		if v < min {
			return fmt.Errorf("%w: %s: %v < %v", ErrPropertyOutOfRange, m.Key, value, m.MinValue)
		}
	}

	if m.MaxValue != nil {
		max, _ := toFloat64(m.MaxValue)
		if v > max {
			return fmt.Errorf("%w: %s: %v > %v", ErrPropertyOutOfRange, m.Key, value, m.MaxValue)
		}
	}

	return nil
}

// Helper functions for type checking.

func isIntegerType(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func isNumericType(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return isIntegerType(v)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
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
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
