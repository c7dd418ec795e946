// Package inspector produces bounded, lazy, type-agnostic views of live
// values. It never serializes a whole object graph eagerly: composite values
// are summarised and marked browseable, and their members are materialised
// one level at a time through Children.
package inspector

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/viant/scriptlab/model"
	"github.com/viant/toolbox"
)

// Limits bounds enumeration over arbitrary object graphs.
type Limits struct {
	// MaxItems caps members/elements returned per Children call.
	MaxItems int `json:"maxItems,omitempty" yaml:"maxItems,omitempty"`
	// MaxDepth caps recursion during JSON rendering.
	MaxDepth int `json:"maxDepth,omitempty" yaml:"maxDepth,omitempty"`
	// MaxValueLength caps the display form of a single value.
	MaxValueLength int `json:"maxValueLength,omitempty" yaml:"maxValueLength,omitempty"`
}

// DefaultLimits returns the standard inspection bounds.
func DefaultLimits() Limits {
	return Limits{MaxItems: 100, MaxDepth: 10, MaxValueLength: 512}
}

// Service renders VariableInfo views of live values.
type Service struct {
	limits Limits
}

// New creates an inspector; zero limit fields inherit the defaults.
func New(limits Limits) *Service {
	defaults := DefaultLimits()
	if limits.MaxItems <= 0 {
		limits.MaxItems = defaults.MaxItems
	}
	if limits.MaxDepth <= 0 {
		limits.MaxDepth = defaults.MaxDepth
	}
	if limits.MaxValueLength <= 0 {
		limits.MaxValueLength = defaults.MaxValueLength
	}
	return &Service{limits: limits}
}

// Describe converts an arbitrary live value into its bounded summary.
func (s *Service) Describe(name string, value interface{}) *model.VariableInfo {
	return s.DescribeWithJSON(name, value, false)
}

// DescribeWithJSON renders the summary and, when includeJSON is set, a
// serialized form tolerating non-serializable members. JSON rendering is
// opt-in since it can be expensive for arbitrary graphs.
func (s *Service) DescribeWithJSON(name string, value interface{}, includeJSON bool) *model.VariableInfo {
	info := &model.VariableInfo{
		Name:  name,
		Type:  displayType(value),
		Value: s.displayValue(value),
	}
	if isBrowseable(value) {
		info.IsBrowseable = true
		info.CanInspect = true
	}
	if includeJSON {
		info.JSON = s.JSON(value)
	}
	return info
}

// Children returns one VariableInfo per member or element, bounded by
// MaxItems, each independently marked CanInspect when its own value is
// browseable. This enables on-demand tree expansion over graphs that may be
// unbounded or cyclic.
func (s *Service) Children(value interface{}) []*model.VariableInfo {
	if value == nil {
		return nil
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	var out []*model.VariableInfo
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		count := rv.Len()
		if count > s.limits.MaxItems {
			count = s.limits.MaxItems
		}
		for i := 0; i < count; i++ {
			out = append(out, s.Describe(fmt.Sprintf("[%d]", i), exportable(rv.Index(i))))
		}
	case reflect.Map:
		keys := rv.MapKeys()
		names := make([]string, 0, len(keys))
		byName := make(map[string]reflect.Value, len(keys))
		for _, key := range keys {
			name := toolbox.AsString(key.Interface())
			names = append(names, name)
			byName[name] = key
		}
		sort.Strings(names)
		if len(names) > s.limits.MaxItems {
			names = names[:s.limits.MaxItems]
		}
		for _, name := range names {
			out = append(out, s.Describe(name, exportable(rv.MapIndex(byName[name]))))
		}
	case reflect.Struct:
		rType := rv.Type()
		for i := 0; i < rType.NumField() && len(out) < s.limits.MaxItems; i++ {
			field := rv.Field(i)
			if !field.CanInterface() {
				continue
			}
			out = append(out, s.Describe(rType.Field(i).Name, field.Interface()))
		}
	}
	return out
}

func exportable(rv reflect.Value) interface{} {
	if !rv.IsValid() || !rv.CanInterface() {
		return nil
	}
	return rv.Interface()
}

func displayType(value interface{}) string {
	if value == nil {
		return ""
	}
	return reflect.TypeOf(value).String()
}

func (s *Service) displayValue(value interface{}) string {
	if value == nil {
		return "null"
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "null"
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return fmt.Sprintf("%s(%d)", displayType(value), rv.Len())
	case reflect.Struct:
		return displayType(value) + "{...}"
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return displayType(value)
	}
	return s.truncate(toolbox.AsString(rv.Interface()))
}

func (s *Service) truncate(text string) string {
	if len(text) <= s.limits.MaxValueLength {
		return text
	}
	return text[:s.limits.MaxValueLength] + "..."
}

func isBrowseable(value interface{}) bool {
	if value == nil {
		return false
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		return true
	}
	return false
}
