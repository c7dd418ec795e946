package inspector

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/viant/toolbox"
)

// Resolve navigates a variable path against named top-level bindings and
// returns the value the path addresses. Lookup reports the binding for the
// path head; subsequent segments navigate struct fields, map entries and
// slice elements.
func Resolve(lookup func(name string) (interface{}, bool), path string) (interface{}, error) {
	segments, err := ParsePath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid variable path %q: %w", path, err)
	}
	current, ok := lookup(segments[0].Name)
	if !ok {
		return nil, fmt.Errorf("variable %q not found", segments[0].Name)
	}
	for _, segment := range segments[1:] {
		if segment.IsIndex {
			current, err = element(current, segment.Index)
		} else {
			current, err = property(current, segment.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
		}
	}
	return current, nil
}

func property(value interface{}, name string) (interface{}, error) {
	if value == nil {
		return nil, fmt.Errorf("cannot access property %q on null", name)
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("cannot access property %q on null", name)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		for _, key := range rv.MapKeys() {
			if toolbox.AsString(key.Interface()) == name {
				return exportable(rv.MapIndex(key)), nil
			}
		}
		return nil, fmt.Errorf("key %q not found", name)
	case reflect.Struct:
		field := rv.FieldByName(name)
		if !field.IsValid() {
			field = rv.FieldByNameFunc(func(candidate string) bool {
				return strings.EqualFold(candidate, name)
			})
		}
		if !field.IsValid() || !field.CanInterface() {
			return nil, fmt.Errorf("field %q not found on %s", name, rv.Type())
		}
		return field.Interface(), nil
	}
	return nil, fmt.Errorf("cannot access property %q on %s", name, rv.Kind())
}

func element(value interface{}, index int) (interface{}, error) {
	if value == nil {
		return nil, fmt.Errorf("cannot index null")
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("cannot index null")
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if index < 0 || index >= rv.Len() {
			return nil, fmt.Errorf("index %d out of range (len %d)", index, rv.Len())
		}
		return exportable(rv.Index(index)), nil
	case reflect.Map:
		name := toolbox.AsString(index)
		for _, key := range rv.MapKeys() {
			if toolbox.AsString(key.Interface()) == name {
				return exportable(rv.MapIndex(key)), nil
			}
		}
		return nil, fmt.Errorf("key %q not found", name)
	}
	return nil, fmt.Errorf("cannot index %s", rv.Kind())
}
