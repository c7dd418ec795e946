package module

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/viant/structology/conv"
	"github.com/viant/x"
)

// Types registers Go types scripts may instantiate through the types host
// module.
type Types struct {
	x.Registry
}

// NewTypes creates a type registry.
func NewTypes(options ...x.RegistryOption) *Types {
	return &Types{Registry: *x.NewRegistry(options...)}
}

// Lookup returns a registered type, honouring "[]" and "map[string]"
// modifiers on the type name.
func (t *Types) Lookup(dataType string) *x.Type {
	typeModifier := ""
	if idx := strings.LastIndex(dataType, "]"); idx != -1 {
		typeModifier = strings.TrimSpace(dataType[:idx+1])
		dataType = dataType[idx+1:]
	}
	ret := t.Registry.Lookup(dataType)
	if ret == nil {
		return nil
	}
	rType := ret.Type
	switch typeModifier {
	case "[]":
		rType = reflect.SliceOf(rType)
	case "map[string]":
		rType = reflect.MapOf(reflect.TypeOf(""), rType)
	}
	if rType != ret.Type {
		return x.NewType(rType)
	}
	return ret
}

// TypeFactory is the host module backing types.new(name, init): it
// instantiates a registered type and populates it from the supplied state.
type TypeFactory struct {
	types     *Types
	converter *conv.Converter
}

// NewTypeFactory creates a factory over the supplied registry.
func NewTypeFactory(types *Types) *TypeFactory {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	options.AccessUnexported = true
	return &TypeFactory{
		types:     types,
		converter: conv.NewConverter(options),
	}
}

// New instantiates the named type, populated from init when supplied.
func (f *TypeFactory) New(name string, init map[string]interface{}) (interface{}, error) {
	dataType := f.types.Lookup(name)
	if dataType == nil {
		return nil, fmt.Errorf("unknown type: %v", name)
	}
	instance := reflect.New(dataType.Type).Interface()
	if len(init) > 0 {
		if err := f.converter.Convert(init, instance); err != nil {
			return nil, fmt.Errorf("failed to init %v: %w", name, err)
		}
	}
	return instance, nil
}
