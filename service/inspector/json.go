package inspector

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/viant/toolbox"
)

// JSON serializes a value, stubbing non-serializable members (functions,
// channels, native handles) and breaking cycles instead of failing the whole
// request. Depth and item counts follow the inspector limits.
func (s *Service) JSON(value interface{}) string {
	plain := s.sanitize(value, map[uintptr]bool{}, 0)
	data, err := json.Marshal(plain)
	if err != nil {
		return ""
	}
	return string(data)
}

func (s *Service) sanitize(value interface{}, visited map[uintptr]bool, depth int) interface{} {
	if value == nil {
		return nil
	}
	if depth > s.limits.MaxDepth {
		return stub(value)
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if visited[ptr] {
			return "<cycle>"
		}
		visited[ptr] = true
		return s.sanitize(rv.Elem().Interface(), visited, depth+1)
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return s.sanitize(rv.Elem().Interface(), visited, depth+1)
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if visited[ptr] {
			return "<cycle>"
		}
		visited[ptr] = true
		return s.sanitizeItems(rv, visited, depth)
	case reflect.Array:
		return s.sanitizeItems(rv, visited, depth)
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if visited[ptr] {
			return "<cycle>"
		}
		visited[ptr] = true
		out := make(map[string]interface{}, rv.Len())
		count := 0
		for _, key := range rv.MapKeys() {
			if count >= s.limits.MaxItems {
				break
			}
			item := rv.MapIndex(key)
			if !item.CanInterface() {
				continue
			}
			out[toolbox.AsString(key.Interface())] = s.sanitize(item.Interface(), visited, depth+1)
			count++
		}
		return out
	case reflect.Struct:
		rType := rv.Type()
		out := make(map[string]interface{})
		for i := 0; i < rType.NumField(); i++ {
			field := rv.Field(i)
			if !field.CanInterface() {
				continue
			}
			out[rType.Field(i).Name] = s.sanitize(field.Interface(), visited, depth+1)
		}
		return out
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return stub(value)
	}
	return value
}

func (s *Service) sanitizeItems(rv reflect.Value, visited map[uintptr]bool, depth int) []interface{} {
	count := rv.Len()
	if count > s.limits.MaxItems {
		count = s.limits.MaxItems
	}
	out := make([]interface{}, 0, count)
	for i := 0; i < count; i++ {
		item := rv.Index(i)
		if !item.CanInterface() {
			out = append(out, nil)
			continue
		}
		out = append(out, s.sanitize(item.Interface(), visited, depth+1))
	}
	return out
}

func stub(value interface{}) string {
	return fmt.Sprintf("<%s>", reflect.TypeOf(value).String())
}
